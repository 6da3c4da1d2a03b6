package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
)

// defaultTopCategories bounds the analytics histogram.
const defaultTopCategories = 5

// ComplaintQuery is the client side search applied to an already scoped list.
type ComplaintQuery struct {
	Search   string
	Status   string
	Category string
}

// CountByStatus tallies complaints per status.
func CountByStatus(complaints []models.Complaint) dto.StatusCounts {
	counts := dto.StatusCounts{Total: len(complaints)}
	for _, c := range complaints {
		switch c.Status {
		case models.ComplaintStatusNew:
			counts.New++
		case models.ComplaintStatusInProgress:
			counts.InProgress++
		case models.ComplaintStatusResolved:
			counts.Resolved++
		}
	}
	return counts
}

// FilterComplaints keeps complaints whose ticket code or title contains the search text, case-insensitively,
// and that match the optional status and category exactly.
func FilterComplaints(complaints []models.Complaint, query ComplaintQuery) []models.Complaint {
	needle := strings.ToLower(strings.TrimSpace(query.Search))
	status := strings.TrimSpace(query.Status)
	category := strings.TrimSpace(query.Category)

	result := make([]models.Complaint, 0, len(complaints))
	for _, c := range complaints {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.TicketID), needle) &&
			!strings.Contains(strings.ToLower(c.Title), needle) {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		if category != "" && c.Category != category {
			continue
		}
		result = append(result, c)
	}
	return result
}

// ResolutionRate returns round(resolved/total*100), or 0 for an empty set.
func ResolutionRate(complaints []models.Complaint) int {
	if len(complaints) == 0 {
		return 0
	}
	resolved := 0
	for _, c := range complaints {
		if c.IsResolved() {
			resolved++
		}
	}
	return int(math.Round(float64(resolved) / float64(len(complaints)) * 100))
}

// AverageResolutionHours is the rounded mean of updated_at-created_at over resolved complaints.
func AverageResolutionHours(complaints []models.Complaint) int {
	var total float64
	var resolved int
	for _, c := range complaints {
		if !c.IsResolved() {
			continue
		}
		total += c.ResolutionHours()
		resolved++
	}
	if resolved == 0 {
		return 0
	}
	return int(math.Round(total / float64(resolved)))
}

// TopCategories returns the n most frequent categories; ties keep the canonical category order.
func TopCategories(complaints []models.Complaint, n int) []dto.CategoryCount {
	if n <= 0 {
		n = defaultTopCategories
	}

	counts := make(map[string]int)
	for _, c := range complaints {
		counts[c.Category]++
	}

	order := make(map[string]int, len(models.ComplaintCategories))
	for i, category := range models.ComplaintCategories {
		order[category] = i
	}

	histogram := make([]dto.CategoryCount, 0, len(counts))
	for category, count := range counts {
		percentage := 0
		if len(complaints) > 0 {
			percentage = int(math.Round(float64(count) / float64(len(complaints)) * 100))
		}
		histogram = append(histogram, dto.CategoryCount{
			Category:   category,
			Label:      models.CategoryLabel(category),
			Count:      count,
			Percentage: percentage,
		})
	}

	sort.SliceStable(histogram, func(i, j int) bool {
		if histogram[i].Count != histogram[j].Count {
			return histogram[i].Count > histogram[j].Count
		}
		oi, okI := order[histogram[i].Category]
		oj, okJ := order[histogram[j].Category]
		if okI != okJ {
			return okI
		}
		if oi != oj {
			return oi < oj
		}
		return histogram[i].Category < histogram[j].Category
	})

	if len(histogram) > n {
		histogram = histogram[:n]
	}
	return histogram
}

// BuildAnalytics assembles the analytics summary at instant now.
func BuildAnalytics(complaints []models.Complaint, now time.Time) dto.AnalyticsResponse {
	weekAgo := now.AddDate(0, 0, -7)
	recent := 0
	for _, c := range complaints {
		if !c.CreatedAt.Before(weekAgo) {
			recent++
		}
	}

	return dto.AnalyticsResponse{
		Total:               len(complaints),
		StatusCounts:        CountByStatus(complaints),
		TopCategories:       TopCategories(complaints, defaultTopCategories),
		ResolutionRate:      ResolutionRate(complaints),
		AverageResolutionHr: AverageResolutionHours(complaints),
		LastSevenDays:       recent,
		GeneratedAt:         now,
	}
}
