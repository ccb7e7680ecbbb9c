// Package service holds the application-facing data layer: the journal
// facade that owns the in-memory collections and the pure view helpers
// that derive display state from them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timestitch/timestitch/internal/autotag"
	"github.com/timestitch/timestitch/internal/connectivity"
	"github.com/timestitch/timestitch/internal/domain"
	"github.com/timestitch/timestitch/internal/imaging"
)

const (
	maxProjectNameLen = 100
	maxMemoryTitleLen = 200
)

// JournalService is the only way application code mutates projects and
// memories. Writes go through to the backend when it is reachable and
// fall back to the pending change log when it is not; the caller learns
// which path was taken from the MutationResult.
type JournalService struct {
	remote    domain.Remote
	log       domain.ChangeLog
	monitor   *connectivity.Monitor
	snapshots domain.SnapshotStore
	logger    *slog.Logger

	// onQueued is invoked after a change is appended to the log, so the
	// sync engine can refresh its pending count. Set by the composition
	// root.
	onQueued func()

	mu       sync.RWMutex
	projects []domain.Project
	memories []domain.Memory
}

// NewJournalService creates the data facade. snapshots may be nil when
// offline snapshot caching is not wanted.
func NewJournalService(remote domain.Remote, log domain.ChangeLog, monitor *connectivity.Monitor, snapshots domain.SnapshotStore, logger *slog.Logger) *JournalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalService{
		remote:    remote,
		log:       log,
		monitor:   monitor,
		snapshots: snapshots,
		logger:    logger,
	}
}

// OnQueued registers the callback invoked after each append to the
// change log.
func (s *JournalService) OnQueued(fn func()) {
	s.onQueued = fn
}

// Load hydrates the in-memory collections from the backend, falling back
// to the cached snapshot when the backend is unreachable.
func (s *JournalService) Load(ctx context.Context) error {
	projects, err := s.remote.ListProjects(ctx)
	if err == nil {
		var memories []domain.Memory
		memories, err = s.remote.ListMemories(ctx, "")
		if err == nil {
			s.mu.Lock()
			s.projects = projects
			s.memories = memories
			s.recountAllLocked()
			s.mu.Unlock()

			s.saveSnapshots()
			s.logger.Info("loaded journal from backend", "projects", len(projects), "memories", len(memories))
			return nil
		}
	}

	if !domain.IsRetryable(err) {
		return err
	}

	// Offline start: show whatever the last session cached.
	if s.snapshots != nil {
		cachedProjects, okP := s.snapshots.LoadProjects()
		cachedMemories, okM := s.snapshots.LoadMemories()
		if okP || okM {
			s.mu.Lock()
			s.projects = cachedProjects
			s.memories = cachedMemories
			s.recountAllLocked()
			s.mu.Unlock()

			s.logger.Info("backend unreachable, loaded cached snapshot", "projects", len(cachedProjects), "memories", len(cachedMemories))
			if s.monitor != nil {
				s.monitor.Set(false)
			}
			return nil
		}
	}

	s.logger.Warn("backend unreachable and no cached snapshot", "error", err)
	if s.monitor != nil {
		s.monitor.Set(false)
	}
	return nil
}

// Projects returns a copy of the current project collection.
func (s *JournalService) Projects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

// Memories returns a copy of the current memory collection.
func (s *JournalService) Memories() []domain.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Memory, len(s.memories))
	copy(out, s.memories)
	return out
}

// ProjectByID returns the project with the given id.
func (s *JournalService) ProjectByID(id string) (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

// MemoryByID returns the memory with the given id.
func (s *JournalService) MemoryByID(id string) (domain.Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memories {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Memory{}, false
}

// MemoriesForProject returns the memories filed under the given project.
func (s *JournalService) MemoriesForProject(projectID string) []domain.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Memory
	for _, m := range s.memories {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out
}

// CreateProject validates and creates a project. Validation failures
// return a *ValidationError before anything is stored or sent.
func (s *JournalService) CreateProject(ctx context.Context, p domain.Project) (domain.MutationResult, error) {
	if err := validateProject(p); err != nil {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}

	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	created, err := s.remote.CreateProject(ctx, p)
	switch {
	case err == nil:
		s.mu.Lock()
		s.projects = append(s.projects, *created)
		s.mu.Unlock()
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeApplied, EntityID: created.ID}, nil

	case domain.IsRetryable(err):
		if qerr := s.queueChange(domain.ChangeCreate, domain.EntityProject, p.ID, p); qerr != nil {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, qerr
		}
		s.mu.Lock()
		s.projects = append(s.projects, p)
		s.mu.Unlock()
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeQueued, EntityID: p.ID}, nil

	default:
		s.logger.Warn("project create rejected", "name", p.Name, "error", err)
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}
}

// UpdateProject applies a partial update to a project.
func (s *JournalService) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (domain.MutationResult, error) {
	s.mu.RLock()
	prior, found := s.findProjectLocked(id)
	s.mu.RUnlock()
	if !found {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, domain.ErrNotFound
	}

	if err := validateProject(patch.Apply(prior)); err != nil {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}

	_, err := s.remote.UpdateProject(ctx, id, patch)
	switch {
	case err == nil:
		s.replaceProject(patch.Apply(prior))
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeApplied, EntityID: id}, nil

	case domain.IsRetryable(err):
		if qerr := s.queueChange(domain.ChangeUpdate, domain.EntityProject, id, patch); qerr != nil {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, qerr
		}
		s.replaceProject(patch.Apply(prior))
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeQueued, EntityID: id}, nil

	default:
		s.logger.Warn("project update rejected", "id", id, "error", err)
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}
}

// DeleteProject removes a project. Memories filed under it keep their
// projectId and simply read as unfiled.
func (s *JournalService) DeleteProject(ctx context.Context, id string) (domain.MutationResult, error) {
	s.mu.RLock()
	_, found := s.findProjectLocked(id)
	s.mu.RUnlock()
	if !found {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, domain.ErrNotFound
	}

	err := s.remote.DeleteProject(ctx, id)
	switch {
	case err == nil:
		s.removeProject(id)
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeApplied, EntityID: id}, nil

	case domain.IsRetryable(err):
		if qerr := s.queueChange(domain.ChangeDelete, domain.EntityProject, id, nil); qerr != nil {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, qerr
		}
		s.removeProject(id)
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeQueued, EntityID: id}, nil

	default:
		s.logger.Warn("project delete rejected", "id", id, "error", err)
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}
}

// CreateMemory validates and creates a memory. Keyword-derived tags are
// merged into any tags the caller supplied.
func (s *JournalService) CreateMemory(ctx context.Context, m domain.Memory) (domain.MutationResult, error) {
	if err := validateMemory(m); err != nil {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}

	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Date.IsZero() {
		m.Date = m.CreatedAt
	}
	m.Tags = autotag.Merge(m.Tags, autotag.Suggest(m))

	created, err := s.remote.CreateMemory(ctx, m)
	switch {
	case err == nil:
		s.mu.Lock()
		s.memories = append(s.memories, *created)
		s.recountLocked(created.ProjectID)
		s.mu.Unlock()
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeApplied, EntityID: created.ID}, nil

	case domain.IsRetryable(err):
		if qerr := s.queueChange(domain.ChangeCreate, domain.EntityMemory, m.ID, m); qerr != nil {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, qerr
		}
		s.mu.Lock()
		s.memories = append(s.memories, m)
		s.recountLocked(m.ProjectID)
		s.mu.Unlock()
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeQueued, EntityID: m.ID}, nil

	default:
		s.logger.Warn("memory create rejected", "title", m.Title, "error", err)
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}
}

// UpdateMemory applies a partial update to a memory. Moving a memory to
// another project recounts both projects in the same step.
func (s *JournalService) UpdateMemory(ctx context.Context, id string, patch domain.MemoryPatch) (domain.MutationResult, error) {
	s.mu.RLock()
	prior, found := s.findMemoryLocked(id)
	s.mu.RUnlock()
	if !found {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, domain.ErrNotFound
	}

	if err := validateMemory(patch.Apply(prior)); err != nil {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}

	_, err := s.remote.UpdateMemory(ctx, id, patch)
	switch {
	case err == nil:
		s.replaceMemory(patch.Apply(prior), prior.ProjectID)
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeApplied, EntityID: id}, nil

	case domain.IsRetryable(err):
		if qerr := s.queueChange(domain.ChangeUpdate, domain.EntityMemory, id, patch); qerr != nil {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, qerr
		}
		s.replaceMemory(patch.Apply(prior), prior.ProjectID)
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeQueued, EntityID: id}, nil

	default:
		s.logger.Warn("memory update rejected", "id", id, "error", err)
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}
}

// DeleteMemory removes a memory and recounts its owning project.
func (s *JournalService) DeleteMemory(ctx context.Context, id string) (domain.MutationResult, error) {
	s.mu.RLock()
	prior, found := s.findMemoryLocked(id)
	s.mu.RUnlock()
	if !found {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, domain.ErrNotFound
	}

	err := s.remote.DeleteMemory(ctx, id)
	switch {
	case err == nil:
		s.removeMemory(id, prior.ProjectID)
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeApplied, EntityID: id}, nil

	case domain.IsRetryable(err):
		if qerr := s.queueChange(domain.ChangeDelete, domain.EntityMemory, id, nil); qerr != nil {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, qerr
		}
		s.removeMemory(id, prior.ProjectID)
		s.saveSnapshots()
		return domain.MutationResult{Outcome: domain.OutcomeQueued, EntityID: id}, nil

	default:
		s.logger.Warn("memory delete rejected", "id", id, "error", err)
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}
}

// ToggleFavorite flips the favorite flag on a memory.
func (s *JournalService) ToggleFavorite(ctx context.Context, id string) (domain.MutationResult, error) {
	s.mu.RLock()
	prior, found := s.findMemoryLocked(id)
	s.mu.RUnlock()
	if !found {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, domain.ErrNotFound
	}

	flipped := !prior.Favorite
	return s.UpdateMemory(ctx, id, domain.MemoryPatch{Favorite: &flipped})
}

// MoveMemory refiles a memory under another project. An empty projectID
// unfiles it.
func (s *JournalService) MoveMemory(ctx context.Context, id, projectID string) (domain.MutationResult, error) {
	return s.UpdateMemory(ctx, id, domain.MemoryPatch{ProjectID: &projectID})
}

// BulkResult summarizes a bulk operation.
type BulkResult struct {
	Applied int
	Queued  int
	Failed  []string // IDs whose mutation was rejected
}

// BulkDeleteMemories deletes each listed memory, continuing past
// rejections.
func (s *JournalService) BulkDeleteMemories(ctx context.Context, ids []string) BulkResult {
	var res BulkResult
	for _, id := range ids {
		result, err := s.DeleteMemory(ctx, id)
		s.tally(&res, id, result, err)
	}
	s.logger.Info("bulk delete finished", "applied", res.Applied, "queued", res.Queued, "failed", len(res.Failed))
	return res
}

// BulkSetFavorite sets the favorite flag on each listed memory.
func (s *JournalService) BulkSetFavorite(ctx context.Context, ids []string, favorite bool) BulkResult {
	var res BulkResult
	for _, id := range ids {
		result, err := s.UpdateMemory(ctx, id, domain.MemoryPatch{Favorite: &favorite})
		s.tally(&res, id, result, err)
	}
	return res
}

// BulkMoveMemories refiles each listed memory under the given project.
func (s *JournalService) BulkMoveMemories(ctx context.Context, ids []string, projectID string) BulkResult {
	var res BulkResult
	for _, id := range ids {
		result, err := s.MoveMemory(ctx, id, projectID)
		s.tally(&res, id, result, err)
	}
	return res
}

func (s *JournalService) tally(res *BulkResult, id string, result domain.MutationResult, err error) {
	switch {
	case err != nil:
		res.Failed = append(res.Failed, id)
		s.logger.Warn("bulk operation entry failed", "id", id, "error", err)
	case result.Outcome == domain.OutcomeQueued:
		res.Queued++
	default:
		res.Applied++
	}
}

// AttachImage uploads image bytes and appends the resulting URL to the
// memory's image list. Uploads need the backend; there is no offline
// queueing for raw image bytes.
func (s *JournalService) AttachImage(ctx context.Context, memoryID, filename string, data []byte) (domain.MutationResult, error) {
	s.mu.RLock()
	prior, found := s.findMemoryLocked(memoryID)
	s.mu.RUnlock()
	if !found {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, domain.ErrNotFound
	}

	optimized, err := imaging.Optimize(data)
	if err != nil {
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}

	url, err := s.remote.UploadImage(ctx, filename, optimized)
	if err != nil {
		if domain.IsRetryable(err) {
			return domain.MutationResult{Outcome: domain.OutcomeRejected}, fmt.Errorf("image upload needs a connection: %w", err)
		}
		return domain.MutationResult{Outcome: domain.OutcomeRejected}, err
	}

	urls := append(append([]string{}, prior.ImageURLs...), url)
	return s.UpdateMemory(ctx, memoryID, domain.MemoryPatch{ImageURLs: &urls})
}

// queueChange appends one pending change to the durable log.
func (s *JournalService) queueChange(kind domain.ChangeKind, entity domain.EntityType, entityID string, payload any) error {
	change, err := domain.NewPendingChange(kind, entity, entityID, payload)
	if err != nil {
		return err
	}
	if err := s.log.Append(change); err != nil {
		// The edit is neither remote nor durable; it must not look saved.
		s.logger.Error("failed to queue change", "kind", kind, "entity", entity, "id", entityID, "error", err)
		return err
	}

	s.logger.Info("change queued for sync", "kind", kind, "entity", entity, "id", entityID)
	if s.onQueued != nil {
		s.onQueued()
	}
	return nil
}

func (s *JournalService) saveSnapshots() {
	if s.snapshots == nil {
		return
	}
	s.mu.RLock()
	projects := make([]domain.Project, len(s.projects))
	copy(projects, s.projects)
	memories := make([]domain.Memory, len(s.memories))
	copy(memories, s.memories)
	s.mu.RUnlock()

	if err := s.snapshots.SaveProjects(projects); err != nil {
		s.logger.Warn("failed to cache project snapshot", "error", err)
	}
	if err := s.snapshots.SaveMemories(memories); err != nil {
		s.logger.Warn("failed to cache memory snapshot", "error", err)
	}
}

func (s *JournalService) findProjectLocked(id string) (domain.Project, bool) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

func (s *JournalService) findMemoryLocked(id string) (domain.Memory, bool) {
	for _, m := range s.memories {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Memory{}, false
}

func (s *JournalService) replaceProject(p domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			p.MemoryCount = s.projects[i].MemoryCount
			s.projects[i] = p
			return
		}
	}
}

func (s *JournalService) removeProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			return
		}
	}
}

// replaceMemory swaps in the updated memory and recounts the projects on
// both sides of a move.
func (s *JournalService) replaceMemory(m domain.Memory, priorProjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.memories {
		if s.memories[i].ID == m.ID {
			s.memories[i] = m
			break
		}
	}
	s.recountLocked(priorProjectID)
	if m.ProjectID != priorProjectID {
		s.recountLocked(m.ProjectID)
	}
}

func (s *JournalService) removeMemory(id, projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.memories {
		if s.memories[i].ID == id {
			s.memories = append(s.memories[:i], s.memories[i+1:]...)
			break
		}
	}
	s.recountLocked(projectID)
}

// recountLocked recomputes one project's memory count. Callers hold mu.
func (s *JournalService) recountLocked(projectID string) {
	if projectID == "" {
		return
	}
	count := 0
	for _, m := range s.memories {
		if m.ProjectID == projectID {
			count++
		}
	}
	for i := range s.projects {
		if s.projects[i].ID == projectID {
			s.projects[i].MemoryCount = count
			return
		}
	}
}

func (s *JournalService) recountAllLocked() {
	for i := range s.projects {
		count := 0
		for _, m := range s.memories {
			if m.ProjectID == s.projects[i].ID {
				count++
			}
		}
		s.projects[i].MemoryCount = count
	}
}

func validateProject(p domain.Project) error {
	var problems []string
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if len(p.Name) > maxProjectNameLen {
		problems = append(problems, fmt.Sprintf("name must be %d characters or fewer", maxProjectNameLen))
	}
	if p.Description == "" {
		problems = append(problems, "description is required")
	}
	if !p.Color.IsValid() {
		problems = append(problems, fmt.Sprintf("color must be one of %v", domain.ProjectColors))
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}

func validateMemory(m domain.Memory) error {
	var problems []string
	if m.Title == "" {
		problems = append(problems, "title is required")
	}
	if len(m.Title) > maxMemoryTitleLen {
		problems = append(problems, fmt.Sprintf("title must be %d characters or fewer", maxMemoryTitleLen))
	}
	if m.Description == "" {
		problems = append(problems, "description is required")
	}
	if len(m.ImageURLs) == 0 {
		problems = append(problems, "at least one image is required")
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}
