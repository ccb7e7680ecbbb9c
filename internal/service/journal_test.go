package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/timestitch/timestitch/internal/domain"
)

// memLog is an in-memory domain.ChangeLog for facade tests.
type memLog struct {
	mu      sync.Mutex
	changes []domain.PendingChange
}

func (l *memLog) Append(change domain.PendingChange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
	return nil
}

func (l *memLog) ReadAll() []domain.PendingChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.PendingChange, len(l.changes))
	copy(out, l.changes)
	return out
}

func (l *memLog) RemoveApplied(ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	var keep []domain.PendingChange
	for _, c := range l.changes {
		if !applied[c.ID] {
			keep = append(keep, c)
		}
	}
	l.changes = keep
	return nil
}

func (l *memLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = nil
	return nil
}

func (l *memLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.changes)
}

// stubRemote simulates the backend. offline makes every call fail with
// ErrRemoteUnavailable; reject makes mutations fail with a rejection.
type stubRemote struct {
	offline bool
	reject  bool
}

func (r *stubRemote) call() error {
	if r.offline {
		return domain.ErrRemoteUnavailable
	}
	if r.reject {
		return &domain.RemoteRejectedError{StatusCode: 409, Reason: "constraint violation"}
	}
	return nil
}

func (r *stubRemote) Authenticate(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	return &domain.AuthResult{Token: "t"}, r.call()
}
func (r *stubRemote) CurrentUser(ctx context.Context) (*domain.User, error) {
	return &domain.User{ID: "u"}, r.call()
}
func (r *stubRemote) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return nil, r.call()
}
func (r *stubRemote) CreateProject(ctx context.Context, p domain.Project) (*domain.Project, error) {
	if err := r.call(); err != nil {
		return nil, err
	}
	return &p, nil
}
func (r *stubRemote) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (*domain.Project, error) {
	if err := r.call(); err != nil {
		return nil, err
	}
	return &domain.Project{ID: id, Name: "updated", Description: "d", Color: domain.ColorSky}, nil
}
func (r *stubRemote) DeleteProject(ctx context.Context, id string) error { return r.call() }
func (r *stubRemote) ListMemories(ctx context.Context, projectID string) ([]domain.Memory, error) {
	return nil, r.call()
}
func (r *stubRemote) CreateMemory(ctx context.Context, m domain.Memory) (*domain.Memory, error) {
	if err := r.call(); err != nil {
		return nil, err
	}
	return &m, nil
}
func (r *stubRemote) UpdateMemory(ctx context.Context, id string, patch domain.MemoryPatch) (*domain.Memory, error) {
	if err := r.call(); err != nil {
		return nil, err
	}
	m := domain.Memory{ID: id, Title: "server", Description: "d", ImageURLs: []string{"u"}}
	return &m, nil
}
func (r *stubRemote) DeleteMemory(ctx context.Context, id string) error { return r.call() }
func (r *stubRemote) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if err := r.call(); err != nil {
		return "", err
	}
	return "https://cdn.example/" + filename, nil
}

func newTestService(remote *stubRemote) (*JournalService, *memLog) {
	log := &memLog{}
	return NewJournalService(remote, log, nil, nil, nil), log
}

func validProject() domain.Project {
	return domain.Project{Name: "Summer 2024", Description: "Trips and days out", Color: domain.ColorAmber}
}

func validMemory() domain.Memory {
	return domain.Memory{Title: "Beach day", Description: "Sand everywhere", ImageURLs: []string{"https://cdn.example/1.jpg"}}
}

func TestCreateProjectOnline(t *testing.T) {
	s, log := newTestService(&stubRemote{})

	result, err := s.CreateProject(context.Background(), validProject())
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if result.Outcome != domain.OutcomeApplied {
		t.Errorf("Expected applied, got %s", result.Outcome)
	}
	if result.EntityID == "" {
		t.Error("Expected an entity ID")
	}
	if log.Len() != 0 {
		t.Errorf("Expected nothing queued, got %d", log.Len())
	}
	if len(s.Projects()) != 1 {
		t.Errorf("Expected 1 project in memory, got %d", len(s.Projects()))
	}
}

func TestCreateProjectOfflineQueues(t *testing.T) {
	s, log := newTestService(&stubRemote{offline: true})

	var notified int
	s.OnQueued(func() { notified++ })

	result, err := s.CreateProject(context.Background(), validProject())
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if result.Outcome != domain.OutcomeQueued {
		t.Errorf("Expected queued, got %s", result.Outcome)
	}
	if log.Len() != 1 {
		t.Fatalf("Expected 1 queued change, got %d", log.Len())
	}

	change := log.ReadAll()[0]
	if change.Kind != domain.ChangeCreate || change.Entity != domain.EntityProject {
		t.Errorf("Unexpected change: kind=%s entity=%s", change.Kind, change.Entity)
	}
	if change.EntityID != result.EntityID {
		t.Errorf("Change entity ID %s does not match result %s", change.EntityID, result.EntityID)
	}
	if notified != 1 {
		t.Errorf("Expected 1 queue notification, got %d", notified)
	}

	// The optimistic project is visible with its locally assigned ID.
	if _, found := s.ProjectByID(result.EntityID); !found {
		t.Error("Expected optimistic project in memory")
	}
}

func TestValidationNeverTouchesTheLog(t *testing.T) {
	s, log := newTestService(&stubRemote{offline: true})

	_, err := s.CreateProject(context.Background(), domain.Project{Name: "", Description: "x", Color: "blue"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if log.Len() != 0 {
		t.Errorf("Expected log untouched, got %d entries", log.Len())
	}
	if len(s.Projects()) != 0 {
		t.Error("Expected no optimistic state for invalid input")
	}
}

func TestValidationMessages(t *testing.T) {
	s, _ := newTestService(&stubRemote{})

	longName := strings.Repeat("x", 101)
	_, err := s.CreateProject(context.Background(), domain.Project{Name: longName, Color: domain.ColorSky})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Errorf("Expected 2 problems (length, description), got %v", verr.Problems)
	}

	_, err = s.CreateMemory(context.Background(), domain.Memory{Title: "T", Description: "D"})
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError for missing image, got %v", err)
	}
}

func TestRejectionRollsBackOptimisticState(t *testing.T) {
	remote := &stubRemote{}
	s, log := newTestService(remote)

	created, err := s.CreateMemory(context.Background(), validMemory())
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	remote.reject = true
	title := "X"
	_, err = s.UpdateMemory(context.Background(), created.EntityID, domain.MemoryPatch{Title: &title})
	var rerr *domain.RemoteRejectedError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected *RemoteRejectedError, got %v", err)
	}

	m, found := s.MemoryByID(created.EntityID)
	if !found {
		t.Fatal("Memory vanished after rejected update")
	}
	if m.Title != "Beach day" {
		t.Errorf("Expected title unchanged, got %q", m.Title)
	}
	if log.Len() != 0 {
		t.Error("Rejected mutation must not be queued")
	}
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	s, _ := newTestService(&stubRemote{})
	title := "X"
	_, err := s.UpdateMemory(context.Background(), "nope", domain.MemoryPatch{Title: &title})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCountTracksMembership(t *testing.T) {
	s, _ := newTestService(&stubRemote{})
	ctx := context.Background()

	pa, _ := s.CreateProject(ctx, validProject())
	pb, _ := s.CreateProject(ctx, domain.Project{Name: "B", Description: "d", Color: domain.ColorRose})

	m := validMemory()
	m.ProjectID = pa.EntityID
	created, err := s.CreateMemory(ctx, m)
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	assertCount := func(projectID string, want int) {
		t.Helper()
		p, found := s.ProjectByID(projectID)
		if !found {
			t.Fatalf("Project %s not found", projectID)
		}
		if p.MemoryCount != want {
			t.Errorf("Project %s: expected count %d, got %d", projectID, want, p.MemoryCount)
		}
	}

	assertCount(pa.EntityID, 1)
	assertCount(pb.EntityID, 0)

	if _, err := s.MoveMemory(ctx, created.EntityID, pb.EntityID); err != nil {
		t.Fatalf("MoveMemory failed: %v", err)
	}
	assertCount(pa.EntityID, 0)
	assertCount(pb.EntityID, 1)

	if _, err := s.DeleteMemory(ctx, created.EntityID); err != nil {
		t.Fatalf("DeleteMemory failed: %v", err)
	}
	assertCount(pb.EntityID, 0)
}

func TestMemoryCountSurvivesOfflineMutations(t *testing.T) {
	remote := &stubRemote{}
	s, _ := newTestService(remote)
	ctx := context.Background()

	p, _ := s.CreateProject(ctx, validProject())

	remote.offline = true
	m := validMemory()
	m.ProjectID = p.EntityID
	result, err := s.CreateMemory(ctx, m)
	if err != nil {
		t.Fatalf("Offline CreateMemory failed: %v", err)
	}
	if result.Outcome != domain.OutcomeQueued {
		t.Fatalf("Expected queued, got %s", result.Outcome)
	}

	proj, _ := s.ProjectByID(p.EntityID)
	if proj.MemoryCount != 1 {
		t.Errorf("Expected count 1 after offline create, got %d", proj.MemoryCount)
	}
}

func TestToggleFavorite(t *testing.T) {
	s, _ := newTestService(&stubRemote{offline: true})
	ctx := context.Background()

	created, err := s.CreateMemory(ctx, validMemory())
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	if _, err := s.ToggleFavorite(ctx, created.EntityID); err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	m, _ := s.MemoryByID(created.EntityID)
	if !m.Favorite {
		t.Error("Expected favorite set")
	}

	if _, err := s.ToggleFavorite(ctx, created.EntityID); err != nil {
		t.Fatalf("Second ToggleFavorite failed: %v", err)
	}
	m, _ = s.MemoryByID(created.EntityID)
	if m.Favorite {
		t.Error("Expected favorite cleared")
	}
}

func TestCreateMemoryAddsSuggestedTags(t *testing.T) {
	s, _ := newTestService(&stubRemote{})

	m := validMemory()
	m.Title = "Birthday party"
	m.Tags = []string{"custom"}
	created, err := s.CreateMemory(context.Background(), m)
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	stored, _ := s.MemoryByID(created.EntityID)
	if len(stored.Tags) == 0 || stored.Tags[0] != "custom" {
		t.Fatalf("Expected user tag first, got %v", stored.Tags)
	}
	if !stored.HasTag("birthday") {
		t.Errorf("Expected suggested tag birthday in %v", stored.Tags)
	}
}

func TestBulkSetFavorite(t *testing.T) {
	s, _ := newTestService(&stubRemote{offline: true})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		created, err := s.CreateMemory(ctx, validMemory())
		if err != nil {
			t.Fatalf("CreateMemory failed: %v", err)
		}
		ids = append(ids, created.EntityID)
	}

	res := s.BulkSetFavorite(ctx, append(ids, "missing"), true)
	if res.Queued != 3 {
		t.Errorf("Expected 3 queued, got %d", res.Queued)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "missing" {
		t.Errorf("Expected missing to fail, got %v", res.Failed)
	}
	for _, id := range ids {
		m, _ := s.MemoryByID(id)
		if !m.Favorite {
			t.Errorf("Memory %s not marked favorite", id)
		}
	}
}

func TestBulkDeleteContinuesPastFailures(t *testing.T) {
	s, _ := newTestService(&stubRemote{})
	ctx := context.Background()

	a, _ := s.CreateMemory(ctx, validMemory())
	b, _ := s.CreateMemory(ctx, validMemory())

	res := s.BulkDeleteMemories(ctx, []string{a.EntityID, "missing", b.EntityID})
	if res.Applied != 2 {
		t.Errorf("Expected 2 applied, got %d", res.Applied)
	}
	if len(res.Failed) != 1 {
		t.Errorf("Expected 1 failure, got %v", res.Failed)
	}
	if len(s.Memories()) != 0 {
		t.Errorf("Expected all memories deleted, got %d", len(s.Memories()))
	}
}

func TestDeleteProjectLeavesMemoriesUnfiled(t *testing.T) {
	s, _ := newTestService(&stubRemote{})
	ctx := context.Background()

	p, _ := s.CreateProject(ctx, validProject())
	m := validMemory()
	m.ProjectID = p.EntityID
	created, _ := s.CreateMemory(ctx, m)

	if _, err := s.DeleteProject(ctx, p.EntityID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	// The memory survives with a dangling project reference.
	stored, found := s.MemoryByID(created.EntityID)
	if !found {
		t.Fatal("Memory deleted along with its project")
	}
	if stored.ProjectID != p.EntityID {
		t.Errorf("Expected dangling project ID preserved, got %q", stored.ProjectID)
	}
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestAttachImageOfflineFails(t *testing.T) {
	remote := &stubRemote{}
	s, log := newTestService(remote)
	ctx := context.Background()

	created, _ := s.CreateMemory(ctx, validMemory())

	remote.offline = true
	_, err := s.AttachImage(ctx, created.EntityID, "pic.jpg", testImage(t))
	if err == nil {
		t.Fatal("Expected offline upload to fail")
	}
	if log.Len() != 0 {
		t.Error("Raw image bytes must not be queued")
	}
}

func TestAttachImageAppendsURL(t *testing.T) {
	s, _ := newTestService(&stubRemote{})
	ctx := context.Background()

	created, _ := s.CreateMemory(ctx, validMemory())
	if _, err := s.AttachImage(ctx, created.EntityID, "pic.jpg", testImage(t)); err != nil {
		t.Fatalf("AttachImage failed: %v", err)
	}

	m, _ := s.MemoryByID(created.EntityID)
	if len(m.ImageURLs) != 2 {
		t.Fatalf("Expected 2 image URLs, got %v", m.ImageURLs)
	}
	if m.ImageURLs[1] != "https://cdn.example/pic.jpg" {
		t.Errorf("Unexpected uploaded URL %q", m.ImageURLs[1])
	}
}
