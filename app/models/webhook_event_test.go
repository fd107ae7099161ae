package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&WebhookEvent{}))
	return db
}

func TestCreateWebhookEventIfNotExists(t *testing.T) {
	db := newTestDB(t)

	created, stored, err := CreateWebhookEventIfNotExists(db, &WebhookEvent{
		ProviderEventID: "evt_1",
		EventType:       "charge.succeeded",
		PayloadJSON:     `{"id":"evt_1"}`,
	})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, stored)
	assert.NotZero(t, stored.ID)

	// Redelivery of the same event ID is deduplicated.
	created, duplicate, err := CreateWebhookEventIfNotExists(db, &WebhookEvent{
		ProviderEventID: "evt_1",
		EventType:       "charge.succeeded",
		PayloadJSON:     `{"id":"evt_1"}`,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, duplicate.ID)

	var count int64
	require.NoError(t, db.Model(&WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMarkWebhookEventProcessed(t *testing.T) {
	db := newTestDB(t)

	_, stored, err := CreateWebhookEventIfNotExists(db, &WebhookEvent{
		ProviderEventID: "evt_2",
		EventType:       "customer.updated",
		PayloadJSON:     `{}`,
	})
	require.NoError(t, err)

	assert.False(t, stored.Processed())

	require.NoError(t, MarkWebhookEventProcessed(db, stored.ID, ""))

	var loaded WebhookEvent
	require.NoError(t, db.First(&loaded, stored.ID).Error)
	assert.NotNil(t, loaded.ProcessedAt)
	assert.Empty(t, loaded.ProcessingError)
	assert.True(t, loaded.Processed())

	require.NoError(t, MarkWebhookEventProcessed(db, stored.ID, "boom"))
	require.NoError(t, db.First(&loaded, stored.ID).Error)
	assert.Equal(t, "boom", loaded.ProcessingError)

	// A delivery that failed does not count as processed; the next retry of
	// the same event ID must run again.
	assert.False(t, loaded.Processed())
}
