package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

const demoEmailDomain = "demo.brovoice.dev"

// SeedSummary reports what a demo seed run inserted.
type SeedSummary struct {
	Users      int   `json:"users"`
	Complaints int64 `json:"complaints"`
}

// SeedService loads the demo dataset.
type SeedService interface {
	SeedDemo(ctx context.Context, token string) (SeedSummary, error)
}

type seedService struct {
	users      repository.UserRepository
	complaints repository.ComplaintRepository
	enabled    bool
	token      string
	password   string
	logger     zerolog.Logger
}

// NewSeedService constructs a seeding service. Demo accounts share password.
func NewSeedService(users repository.UserRepository, complaints repository.ComplaintRepository, enabled bool, token, password string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:      users,
		complaints: complaints,
		enabled:    enabled,
		token:      token,
		password:   password,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}
}

// SeedDemo is idempotent: existing accounts and ticket codes are left untouched.
func (s *seedService) SeedDemo(ctx context.Context, token string) (SeedSummary, error) {
	if !s.enabled {
		return SeedSummary{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return SeedSummary{}, ErrSeedUnauthorized
	}

	summary := SeedSummary{}
	owners := make(map[string]string)

	accounts := []struct{ name, role string }{
		{"Rajesh Mentor", models.RoleStaff},
		{"Program Admin", models.RoleAdmin},
		{"Anonymous Student", models.RoleStudent},
	}
	for _, demo := range demoComplaints {
		if !demo.anonymous {
			accounts = append(accounts, struct{ name, role string }{demo.student, models.RoleStudent})
		}
	}

	for _, account := range accounts {
		id, created, err := s.ensureUser(ctx, account.name, account.role)
		if err != nil {
			return summary, err
		}
		if created {
			summary.Users++
		}
		owners[account.name] = id
	}

	batch := make([]models.Complaint, 0, len(demoComplaints))
	for _, demo := range demoComplaints {
		owner := demo.student
		if demo.anonymous {
			owner = "Anonymous Student"
		}
		batch = append(batch, demo.complaint(owners[owner]))
	}

	affected, err := s.complaints.ImportBatch(ctx, batch)
	if err != nil {
		return summary, fmt.Errorf("import demo complaints: %w", err)
	}
	summary.Complaints = affected

	s.logger.Info().Int("users", summary.Users).Int64("complaints", affected).Msg("demo data seeded")
	return summary, nil
}

func (s *seedService) ensureUser(ctx context.Context, name, role string) (string, bool, error) {
	email := demoEmail(name)
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}

	profile, err := createProfile(ctx, s.users, email, s.password, name, role)
	if err != nil {
		return "", false, fmt.Errorf("seed user %s: %w", email, err)
	}
	return profile.ID, true, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func demoEmail(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", ".") + "@" + demoEmailDomain
}

type demoComplaint struct {
	ticket, student, title, category, description, status string
	anonymous                                             bool
	screenshot, resolution, internal                      string
	created, updated, expected                            string
}

func (d demoComplaint) complaint(ownerID string) models.Complaint {
	c := models.Complaint{
		TicketID:    d.ticket,
		UserID:      ownerID,
		Title:       d.title,
		Category:    d.category,
		Description: d.description,
		Status:      d.status,
		IsAnonymous: d.anonymous,
		CreatedAt:   demoTime(d.created),
		UpdatedAt:   demoTime(d.updated),
	}
	if !d.anonymous {
		name := d.student
		c.StudentName = &name
	}
	c.ScreenshotURL = optionalString(d.screenshot)
	c.ResolutionNote = optionalString(d.resolution)
	c.InternalNotes = optionalString(d.internal)
	if d.expected != "" {
		expected := demoTime(d.expected)
		c.ExpectedResolutionAt = &expected
	}
	return c
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func demoTime(value string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		panic(fmt.Sprintf("invalid demo time %q", value))
	}
	return t.UTC()
}

var demoComplaints = []demoComplaint{
	{
		ticket: "BRO-A2F9", student: "Rahul Sharma", title: "Mentor not responding to code review requests",
		category: models.CategoryMentorUnresponsive, status: models.ComplaintStatusInProgress,
		description: "I have been waiting for my React project review for 3 days. My mentor hasn't responded to my messages on Slack or email. This is blocking my progress to the next module.",
		screenshot:  "https://images.unsplash.com/photo-1516321318423-f06f85e504b3?w=400",
		internal:    "Assigned to Rajesh. Mentor contacted on Nov 10.",
		created:     "2025-11-09T10:30", updated: "2025-11-10T14:20", expected: "2025-11-13T18:00",
	},
	{
		ticket: "BRO-X8Y2", student: "Priya Menon", title: "JavaScript closure concept not clear after session",
		category: models.CategoryDoubtNotCleared, status: models.ComplaintStatusNew,
		description: "During yesterday's live session on closures (Module 4, Video 23, timestamp 14:30), I asked about lexical scope with nested functions. The explanation was too quick and I'm still confused.",
		screenshot:  "https://images.unsplash.com/photo-1555066931-4365d14bab8c?w=400",
		created:     "2025-11-10T16:45", updated: "2025-11-10T16:45",
	},
	{
		ticket: "BRO-K3L7", student: "Anonymous", anonymous: true, title: "Project submission portal showing error",
		category: models.CategoryPlatformBug, status: models.ComplaintStatusResolved,
		description: "When I try to submit my final project for Week 12, I get a \"Network Error\" message. I've tried different browsers and cleared cache. The deadline is tomorrow.",
		screenshot:  "https://images.unsplash.com/photo-1454165804606-c3d57bc86b40?w=400",
		resolution:  "Server issue fixed. Submission portal is now working. Deadline extended by 24 hours for affected students.",
		created:     "2025-11-08T09:15", updated: "2025-11-09T11:30",
	},
	{
		ticket: "BRO-P9Q1", student: "Arjun Nair", title: "Waiting 5 days for Node.js project feedback",
		category: models.CategoryFeedbackDelay, status: models.ComplaintStatusInProgress,
		description: "I submitted my Express REST API project on Nov 5th. Still haven't received any feedback or review. Other students in my batch got theirs within 2 days.",
		internal:    "Backlog cleared. Review scheduled for Nov 12.",
		created:     "2025-11-07T11:20", updated: "2025-11-09T09:10", expected: "2025-11-12T17:00",
	},
	{
		ticket: "BRO-T4R8", student: "Sneha Kumar", title: "MongoDB connection string not working",
		category: models.CategoryDoubtNotCleared, status: models.ComplaintStatusResolved,
		description: "I've followed the Module 8 tutorial exactly, but my MongoDB Atlas connection keeps failing with \"Authentication failed\" error. I've triple-checked my credentials.",
		resolution:  "Issue was whitelist IP address. Added 0.0.0.0/0 to MongoDB Atlas Network Access. Student confirmed it's working now.",
		created:     "2025-11-06T14:30", updated: "2025-11-07T10:15",
	},
	{
		ticket: "BRO-M5N2", student: "Vikram Singh", title: "Git merge conflict resolution not explained properly",
		category: models.CategoryDoubtNotCleared, status: models.ComplaintStatusResolved,
		description: "The Git workshop covered basic branching but skipped merge conflict resolution. Now I'm stuck with conflicts in my team project.",
		resolution:  "Conducted 1-on-1 session on Git conflicts. Shared video resource and practice repository.",
		created:     "2025-11-05T13:00", updated: "2025-11-06T16:45",
	},
	{
		ticket: "BRO-Z7W3", student: "Anonymous", anonymous: true, title: "Mentor dismissed my question as \"too basic\"",
		category: models.CategoryOther, status: models.ComplaintStatusInProgress,
		description: "During office hours, I asked about the difference between let and var. My mentor said \"You should know this by now\" without explaining. This made me feel embarrassed to ask more questions.",
		internal:    "Escalated to program manager. Mentor coaching scheduled.",
		created:     "2025-11-09T15:30", updated: "2025-11-10T10:00",
	},
	{
		ticket: "BRO-H6J9", student: "Anjali Reddy", title: "Live class video not available on LMS",
		category: models.CategoryPlatformBug, status: models.ComplaintStatusResolved,
		description: "Yesterday's React Hooks live session (Nov 9, 7 PM) is not uploaded to the LMS. Other students in different batches can see their recordings.",
		resolution:  "Recording was processed with delay due to server load. Now available on LMS under Module 6.",
		created:     "2025-11-10T08:00", updated: "2025-11-10T12:30",
	},
	{
		ticket: "BRO-C2V4", student: "Karthik Pillai", title: "Mentor changed without prior notice",
		category: models.CategoryOther, status: models.ComplaintStatusNew,
		description: "My original mentor (Suresh) was helping me with my capstone project. Today I was assigned a new mentor (Pradeep) without any transition meeting. All my project context is lost.",
		created:     "2025-11-11T09:00", updated: "2025-11-11T09:00",
	},
	{
		ticket: "BRO-L8B5", student: "Divya Krishnan", title: "TypeScript doubt from Module 10 assignment",
		category: models.CategoryDoubtNotCleared, status: models.ComplaintStatusResolved,
		description: "I'm stuck on the generics assignment (Module 10, Task 3). I don't understand how to constrain type parameters. I've rewatched the video twice but need a live explanation with examples.",
		resolution:  "Zoom call conducted. Explained generic constraints with real-world examples. Student completed assignment successfully.",
		created:     "2025-11-04T17:20", updated: "2025-11-05T14:00",
	},
}
