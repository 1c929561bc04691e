package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventPublisher pushes notifications to connected clients. Publish must not
// block and is only called after a transaction has committed.
type EventPublisher interface {
	Publish(event string, data interface{})
}

const EventStockChanged = "stock.changed"

// StockChangedEvent is broadcast once per product whose stock moved.
type StockChangedEvent struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func parseID(entity, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s id %q", entity, raw)
	}
	return id, nil
}

// lookupErr turns a repository read failure into NotFound or a wrapped error.
func lookupErr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

// insertErr reports a unique-key clash on insert as a concurrency conflict;
// another writer took the generated number first and the caller can retry.
func insertErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Concurrency(fmt.Errorf("create %s: %w", entity, err))
	}
	return fmt.Errorf("failed to create %s: %w", entity, err)
}

// daysSince counts whole days from t to now.
func daysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

func actorID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	entry := &model.AuditLog{
		UserID:     actorID(userID),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}
