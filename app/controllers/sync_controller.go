package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/syncforge/stripemirror/internal/pkg/stripesync"
)

const syncTimeout = 10 * time.Minute

// HandleSyncBackfill runs a bulk pass over one object kind, or all of them.
func HandleSyncBackfill(c *fiber.Ctx) error {
	var params stripesync.SyncBackfillParams
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
		}
	}

	svc, err := syncService()
	if err != nil {
		log.Errorf("sync setup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "service_unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	result, err := svc.SyncBackfill(ctx, params)
	if err != nil {
		if strings.Contains(err.Error(), "unknown sync object") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Errorf("sync backfill failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleSyncSingleEntity repairs one mirrored object, classified by the ID
// prefix in the path.
func HandleSyncSingleEntity(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_entity_id"})
	}

	svc, err := syncService()
	if err != nil {
		log.Errorf("sync setup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "service_unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	entity, err := svc.SyncSingleEntity(ctx, id)
	if err != nil {
		if errors.Is(err, stripesync.ErrUpstreamNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entity_not_found"})
		}
		if strings.Contains(err.Error(), "unknown id prefix") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Errorf("single entity sync failed for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(entity)
}

// HandleSyncEntitlements reconciles one customer's active entitlement set.
func HandleSyncEntitlements(c *fiber.Ctx) error {
	customerID := strings.TrimSpace(c.Params("customerID"))
	if customerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_customer_id"})
	}

	svc, err := syncService()
	if err != nil {
		log.Errorf("sync setup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "service_unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	sync, err := svc.SyncEntitlements(ctx, customerID)
	if err != nil {
		if errors.Is(err, stripesync.ErrUpstreamNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer_not_found"})
		}
		log.Errorf("entitlement sync failed for %s: %v", customerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(sync)
}
