package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeKind identifies the mutation a pending change carries.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// EntityType identifies which entity a pending change targets.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityMemory  EntityType = "memory"
)

// PendingChange is one queued, not-yet-confirmed mutation awaiting
// application against the backend. Once appended to the change log it is
// immutable; it is only ever removed after the remote operation is
// acknowledged.
type PendingChange struct {
	ID         string          `json:"id"`
	Kind       ChangeKind      `json:"kind"`
	Entity     EntityType      `json:"entity"`
	EntityID   string          `json:"entityId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// NewPendingChange builds a queueable change, serializing payload as the
// entry's JSON body. A nil payload (deletes) leaves the body empty.
func NewPendingChange(kind ChangeKind, entity EntityType, entityID string, payload any) (PendingChange, error) {
	change := PendingChange{
		ID:         uuid.NewString(),
		Kind:       kind,
		Entity:     entity,
		EntityID:   entityID,
		EnqueuedAt: time.Now().UTC(),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return PendingChange{}, fmt.Errorf("failed to encode change payload: %w", err)
		}
		change.Payload = body
	}
	return change, nil
}

// SyncStatus is the process-wide view of the sync engine, observed by the
// UI layer. IsActive and LastError reset on restart; the change log itself
// persists.
type SyncStatus struct {
	IsActive     bool
	LastSyncAt   time.Time
	PendingCount int
	LastError    string
}
