package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/database"
	"github.com/noah-isme/brovoice-api/internal/handler"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/session"
	"github.com/noah-isme/brovoice-api/pkg/mailer"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func as(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := session.New(userID, role, "")
		c.Locals("session", sess)
		c.SetUserContext(session.WithSession(c.UserContext(), sess))
		return c.Next()
	}
}

type contractFixture struct {
	complaints service.ComplaintService
	analytics  service.AnalyticsService
	dispatcher service.NotificationDispatcher
	notifier   service.NotificationService
}

func newContractFixture(t *testing.T) contractFixture {
	t.Helper()
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	users := repository.NewUserRepository(db)
	complaints := repository.NewComplaintRepository(db)
	seed := service.NewSeedService(users, complaints, true, "contract", "brovoice-demo", logger)
	_, err = seed.SeedDemo(context.Background(), "contract")
	require.NoError(t, err)

	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)
	analytics := service.NewAnalyticsService(complaints, nil, 0, logger)
	return contractFixture{
		complaints: service.NewComplaintService(complaints, users, nil, nil, nil, nil, validate, logger),
		analytics:  analytics,
		notifier:   notifier,
		dispatcher: service.NewNotificationDispatcher(service.NewChannelEventQueue(1), users, repository.NewMailDeliveryRepository(db), mailer.NewLog("desk@brovoice.dev", logger), notifier, analytics, validate, logger),
	}
}

func validateBody(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload), string(body))
}

func TestComplaintListContract(t *testing.T) {
	f := newContractFixture(t)
	schema := compileSchema(t, "complaint_list.schema.json")

	app := fiber.New()
	handler.NewComplaintHandler(f.complaints, zerolog.Nop(), nil).RegisterAdmin(app.Group("/api/v2/admin", as("staff-1", "staff")))

	for _, path := range []string{
		"/api/v2/admin/complaints",
		"/api/v2/admin/complaints/assigned?search=mentor",
		"/api/v2/admin/complaints/resolved?page=1&page_size=3",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		validateBody(t, schema, resp)
	}
}

func TestAnalyticsContract(t *testing.T) {
	f := newContractFixture(t)
	schema := compileSchema(t, "analytics.schema.json")

	app := fiber.New()
	handler.NewAnalyticsHandler(f.analytics, zerolog.Nop()).Register(app.Group("/api/v2/admin", as("admin-1", "admin")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v2/admin/analytics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}

func TestComplaintMailContract(t *testing.T) {
	f := newContractFixture(t)
	schema := compileSchema(t, "complaint_mail.schema.json")

	app := fiber.New()
	h := handler.NewNotificationHandler(f.notifier, f.dispatcher, zerolog.Nop(), time.Second)
	h.RegisterMail(app.Group("/api/v1/notifications", as("staff-1", "staff")))

	send := func(body map[string]string) *http.Response {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/email", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	ok := send(map[string]string{
		"to":             "divya@example.com",
		"subject":        "Complaint Update",
		"complaintTitle": "TypeScript doubt from Module 10 assignment",
		"complaintId":    "BRO-L8B5",
		"status":         "resolved",
		"message":        "Zoom call scheduled",
	})
	require.Equal(t, http.StatusOK, ok.StatusCode)
	validateBody(t, schema, ok)

	invalid := send(map[string]string{"to": "nobody"})
	require.Equal(t, http.StatusBadRequest, invalid.StatusCode)
	validateBody(t, schema, invalid)
}
