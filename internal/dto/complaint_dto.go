package dto

import (
	"time"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives the page count from total and pageSize.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: 1}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
		if meta.TotalPages == 0 {
			meta.TotalPages = 1
		}
	}
	return meta
}

// ComplaintCreateRequest is the student submission payload. Category accepts either the key or the label.
type ComplaintCreateRequest struct {
	Title       string `json:"title" form:"title" validate:"required,max=200"`
	Category    string `json:"category" form:"category" validate:"required"`
	Description string `json:"description" form:"description" validate:"required"`
	IsAnonymous bool   `json:"is_anonymous" form:"is_anonymous"`
}

// ComplaintUpdateRequest carries the staff-settable fields; nil means unchanged.
type ComplaintUpdateRequest struct {
	Status               *string    `json:"status" validate:"omitempty,oneof=new in_progress resolved"`
	InternalNotes        *string    `json:"internal_notes" validate:"omitempty,max=5000"`
	ResolutionNote       *string    `json:"resolution_note" validate:"omitempty,max=5000"`
	ExpectedResolutionAt *time.Time `json:"expected_resolution_at"`
}

// ComplaintListRequest holds the search and filter parameters of a complaint listing.
type ComplaintListRequest struct {
	Search   string
	Status   string
	Statuses []string
	Category string
	Page     int
	PageSize int
}

// ComplaintResponse is the wire representation of a complaint after redaction.
type ComplaintResponse struct {
	ID                   string     `json:"id"`
	TicketID             string     `json:"ticket_id"`
	UserID               string     `json:"user_id"`
	StudentName          *string    `json:"student_name"`
	Title                string     `json:"title"`
	Category             string     `json:"category"`
	CategoryLabel        string     `json:"category_label"`
	Description          string     `json:"description"`
	Status               string     `json:"status"`
	ScreenshotURL        *string    `json:"screenshot_url"`
	IsAnonymous          bool       `json:"is_anonymous"`
	ExpectedResolutionAt *time.Time `json:"expected_resolution_at"`
	ResolutionNote       *string    `json:"resolution_note"`
	InternalNotes        *string    `json:"internal_notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewComplaintResponse maps an already redacted complaint.
func NewComplaintResponse(c models.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:                   c.ID,
		TicketID:             c.TicketID,
		UserID:               c.UserID,
		StudentName:          c.StudentName,
		Title:                c.Title,
		Category:             c.Category,
		CategoryLabel:        models.CategoryLabel(c.Category),
		Description:          c.Description,
		Status:               c.Status,
		ScreenshotURL:        c.ScreenshotURL,
		IsAnonymous:          c.IsAnonymous,
		ExpectedResolutionAt: c.ExpectedResolutionAt,
		ResolutionNote:       c.ResolutionNote,
		InternalNotes:        c.InternalNotes,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

// NewComplaintResponseSlice maps a list of complaints.
func NewComplaintResponseSlice(items []models.Complaint) []ComplaintResponse {
	responses := make([]ComplaintResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewComplaintResponse(item))
	}
	return responses
}

// ComplaintListResponse wraps a page of complaints.
type ComplaintListResponse struct {
	Items      []ComplaintResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// StatusCounts is the per-status breakdown shown on dashboards.
type StatusCounts struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// DashboardResponse is the landing view for both students and staff.
type DashboardResponse struct {
	Stats  StatusCounts        `json:"stats"`
	Recent []ComplaintResponse `json:"recent"`
}

// CategoryCount is one bar of the category histogram.
type CategoryCount struct {
	Category   string `json:"category"`
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// AnalyticsResponse summarises complaint handling for staff.
type AnalyticsResponse struct {
	Total               int             `json:"total"`
	StatusCounts        StatusCounts    `json:"status_counts"`
	TopCategories       []CategoryCount `json:"top_categories"`
	ResolutionRate      int             `json:"resolution_rate"`
	AverageResolutionHr int             `json:"average_resolution_hours"`
	LastSevenDays       int             `json:"last_seven_days"`
	GeneratedAt         time.Time       `json:"generated_at"`
	CacheHit            bool            `json:"cache_hit"`
}

// ScreenshotResponse describes a stored complaint screenshot.
type ScreenshotResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"file_name"`
}
