package domain

import (
	"context"
	"time"
)

// Remote is the hosted backend (database + object storage + auth) treated
// as a single fallible network dependency. Implementations must return
// ErrRemoteUnavailable for connectivity failures and timeouts, and
// *RemoteRejectedError when the backend refuses an operation.
//
// Create calls honor the client-assigned entity ID, so a memory queued
// behind its project can reference that project's ID before either has
// reached the backend.
type Remote interface {
	// Authenticate exchanges credentials for a session token.
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)

	// CurrentUser returns the identity behind the configured token.
	CurrentUser(ctx context.Context) (*User, error)

	ListProjects(ctx context.Context) ([]Project, error)
	CreateProject(ctx context.Context, p Project) (*Project, error)
	UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error)
	DeleteProject(ctx context.Context, id string) error

	ListMemories(ctx context.Context, projectID string) ([]Memory, error)
	CreateMemory(ctx context.Context, m Memory) (*Memory, error)
	UpdateMemory(ctx context.Context, id string, patch MemoryPatch) (*Memory, error)
	DeleteMemory(ctx context.Context, id string) error

	// UploadImage stores image bytes and returns a retrievable URL.
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
}

// AuthResult contains the outcome of a successful authentication
type AuthResult struct {
	Token  string
	UserID string
	Email  string
}

// User is the authenticated account behind the current session.
type User struct {
	ID    string
	Email string
	Name  string
}

// ChangeLog is the append-only, crash-durable queue of pending mutations.
// Append and RemoveApplied serialize against each other so a sync drain
// never races a fresh append.
type ChangeLog interface {
	// Append adds one change to the end of the log, writing through to
	// durable storage before returning. A write failure surfaces as a
	// *PersistenceError.
	Append(change PendingChange) error

	// ReadAll returns the current ordered log. Absent or corrupt storage
	// reads as an empty log, never an error.
	ReadAll() []PendingChange

	// RemoveApplied deletes the entries whose IDs are in ids, preserving
	// the relative order of the remainder. Unknown IDs are a no-op.
	RemoveApplied(ids []string) error

	// Clear empties the log unconditionally.
	Clear() error

	// Len returns the current number of queued changes.
	Len() int
}

// SnapshotStore caches entity snapshots and sync metadata for offline
// display across restarts.
type SnapshotStore interface {
	SaveProjects(projects []Project) error
	LoadProjects() ([]Project, bool)

	SaveMemories(memories []Memory) error
	LoadMemories() ([]Memory, bool)

	SetLastSyncAt(t time.Time) error
	LastSyncAt() (time.Time, bool)
}
