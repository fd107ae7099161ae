package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/syncforge/stripemirror/app/models"
	"github.com/syncforge/stripemirror/internal/pkg/database"
)

const testWebhookSecret = "whsec_controller_test"

func newWebhookApp(t *testing.T) *fiber.App {
	t.Helper()

	t.Setenv("DATABASE_URL", "postgres://unused-in-tests")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.WebhookEvent{}))

	database.DB = db
	t.Cleanup(func() { database.DB = nil })

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	return app
}

func signBody(body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliver(t *testing.T, app *fiber.App, body []byte) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signBody(body))
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp.StatusCode, decoded
}

// A delivery whose processing failed must not be swallowed by the dedupe
// layer: the transport retries with the same event ID, and that retry has to
// run the event again.
func TestWebhookRetryAfterFailedProcessing(t *testing.T) {
	app := newWebhookApp(t)
	body := []byte(`{"id":"evt_retry_1","type":"charge.succeeded","created":2000,` +
		`"data":{"object":{"id":"ch_1","object":"charge","status":"succeeded","amount":750}}}`)

	// The charges table does not exist yet, so applying the event fails.
	status, decoded := deliver(t, app, body)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "processing_failed", decoded["error"])

	var stored models.WebhookEvent
	require.NoError(t, database.DB.Where("provider_event_id = ?", "evt_retry_1").First(&stored).Error)
	assert.NotEmpty(t, stored.ProcessingError)

	require.NoError(t, database.DB.Exec(
		`CREATE TABLE "stripe_charges" ("id" text PRIMARY KEY, "object" text, "status" text, "amount" text, "last_synced_at" text)`,
	).Error)

	// Same body, same event ID: the retry is reprocessed, not acknowledged as
	// a duplicate.
	status, decoded = deliver(t, app, body)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, decoded, "duplicate")

	var count int64
	require.NoError(t, database.DB.Raw(`SELECT COUNT(*) FROM "stripe_charges" WHERE "id" = ?`, "ch_1").Scan(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, database.DB.Where("provider_event_id = ?", "evt_retry_1").First(&stored).Error)
	assert.True(t, stored.Processed())

	// Once processed cleanly, further redeliveries short-circuit.
	status, decoded = deliver(t, app, body)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, decoded["duplicate"])

	var events int64
	require.NoError(t, database.DB.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app := newWebhookApp(t)
	body := []byte(`{"id":"evt_sig_1","type":"charge.succeeded","created":2000,` +
		`"data":{"object":{"id":"ch_1","object":"charge","status":"succeeded"}}}`)

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var events int64
	require.NoError(t, database.DB.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}
