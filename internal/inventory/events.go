package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventUpserted = "inventory.product.upserted"
	EventDeleted  = "inventory.product.deleted"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Publisher --dir=. --output=./mocks --outpkg=mocks

// Publisher announces committed inventory changes. It is called after the
// collection has been persisted.
type Publisher interface {
	Publish(ctx context.Context, e ChangeEvent) error
}

type ChangeEvent struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	Code       string    `json:"codigo"`
	Name       string    `json:"nombre,omitempty"`
	Quantity   int       `json:"cantidad"`
	Action     Action    `json:"accion,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func upsertedEvent(p ProductRecord, action Action) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.NewString(),
		Type:       EventUpserted,
		Code:       p.Code,
		Name:       p.Name,
		Quantity:   p.Quantity,
		Action:     action,
		OccurredAt: p.LastUpdated,
	}
}

func deletedEvent(code string, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.NewString(),
		Type:       EventDeleted,
		Code:       code,
		OccurredAt: at,
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }
