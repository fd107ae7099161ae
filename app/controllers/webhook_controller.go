package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/syncforge/stripemirror/app/models"
	"github.com/syncforge/stripemirror/internal/pkg/database"
	"github.com/syncforge/stripemirror/internal/pkg/stripesync"
)

const webhookTimeout = 30 * time.Second

// HandleStripeWebhook verifies, audits and applies one inbound notification.
// The signature check happens before anything touches storage. A redelivered
// event ID is acknowledged without reprocessing only once a prior delivery
// completed cleanly; after a failed attempt the retry runs the event again,
// which is safe because the whole apply path is idempotent.
func HandleStripeWebhook(c *fiber.Ctx) error {
	requestID := uuid.NewString()
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	svc, err := syncService()
	if err != nil {
		log.Errorf("[%s] webhook setup failed: %v", requestID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "service_unavailable"})
	}

	event, err := svc.VerifyWebhook(rawBody, signature)
	if err != nil {
		if errors.Is(err, stripesync.ErrInvalidSignature) {
			log.Warnf("[%s] webhook rejected: %v", requestID, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Warnf("[%s] webhook payload rejected: %v", requestID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	created, stored, err := models.CreateWebhookEventIfNotExists(database.GetDB(), &models.WebhookEvent{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
	})
	if err != nil {
		log.Errorf("[%s] webhook persist failed: %v", requestID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		if stored.Processed() {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
		}
		log.Infof("[%s] reprocessing delivery of %s after failed attempt", requestID, event.ID)
	}

	processErr := svc.ProcessEvent(ctx, event)
	processingError := ""
	if processErr != nil {
		processingError = processErr.Error()
	}
	if err := models.MarkWebhookEventProcessed(database.GetDB(), stored.ID, processingError); err != nil {
		log.Errorf("[%s] webhook audit update failed: %v", requestID, err)
	}

	if processErr != nil {
		if errors.Is(processErr, stripesync.ErrUnhandledEvent) {
			log.Warnf("[%s] %v", requestID, processErr)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unhandled_event"})
		}
		log.Errorf("[%s] webhook processing failed for %s: %v", requestID, event.Type, processErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
