package matching

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"AOTF-backend/internal/model"
)

// MemoryStore keeps everything in process memory. One writer at a time runs inside Atomic;
// readers share the lock, so they see either the state before a unit of work or after it.
type MemoryStore struct {
	mu sync.RWMutex

	postings      map[uint]model.Posting
	applications  map[uint]model.Application
	archive       []model.ArchiveEntry
	notifications map[uint]model.Notification

	lastPostingID      uint
	lastApplicationID  uint
	lastArchiveID      uint
	lastNotificationID uint
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		postings:      make(map[uint]model.Posting),
		applications:  make(map[uint]model.Application),
		notifications: make(map[uint]model.Notification),
	}
}

// Atomic runs fn against a staging area that is merged only when fn succeeds and ctx is still live.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:             s,
		postings:      make(map[uint]model.Posting),
		applications:  make(map[uint]model.Application),
		notifications: make(map[uint]model.Notification),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range tx.postings {
		s.postings[id] = p
	}
	for id, a := range tx.applications {
		s.applications[id] = a
	}
	s.archive = append(s.archive, tx.archive...)
	for id, n := range tx.notifications {
		s.notifications[id] = n
	}
	return nil
}

// GetPosting returns the posting or ErrNotFound
func (s *MemoryStore) GetPosting(_ context.Context, id uint) (*model.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.postings[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePosting(p)
	return &p, nil
}

// ListPostings returns matching postings, newest first
func (s *MemoryStore) ListPostings(_ context.Context, filter model.PostingFilter) ([]model.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Posting{}
	for _, p := range s.postings {
		if filter.Match(&p) {
			out = append(out, clonePosting(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// GetApplication returns the record or ErrNotFound
func (s *MemoryStore) GetApplication(_ context.Context, id uint) (*model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// ListApplications returns the posting's records ordered by applied time
func (s *MemoryStore) ListApplications(_ context.Context, postingID uint, filter model.ApplicationFilter) ([]model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Application{}
	for _, a := range s.applications {
		if a.PostingID == postingID && filter.Match(&a) {
			out = append(out, a)
		}
	}
	sortByAppliedAt(out)
	return out, nil
}

// ListCandidateApplications returns the candidate's records, most recent first
func (s *MemoryStore) ListCandidateApplications(_ context.Context, candidateID uuid.UUID) ([]model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Application{}
	for _, a := range s.applications {
		if a.CandidateID == candidateID {
			out = append(out, a)
		}
	}
	sortByAppliedAt(out)
	slices.Reverse(out)
	return out, nil
}

// ListArchive returns the posting's archive entries in archival order
func (s *MemoryStore) ListArchive(_ context.Context, postingID uint) ([]model.ArchiveEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.ArchiveEntry{}
	for _, e := range s.archive {
		if e.PostingID == postingID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListNotifications returns matching notifications, newest first
func (s *MemoryStore) ListNotifications(_ context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Notification{}
	for _, n := range s.notifications {
		if filter.Match(&n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// memTx stages writes; reads see staged rows first
type memTx struct {
	s *MemoryStore

	postings      map[uint]model.Posting
	applications  map[uint]model.Application
	archive       []model.ArchiveEntry
	notifications map[uint]model.Notification
}

func (tx *memTx) posting(id uint) (model.Posting, bool) {
	if p, ok := tx.postings[id]; ok {
		return p, true
	}
	p, ok := tx.s.postings[id]
	return p, ok
}

func (tx *memTx) LockPosting(id uint) (*model.Posting, error) {
	p, ok := tx.posting(id)
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePosting(p)
	return &p, nil
}

func (tx *memTx) CreatePosting(p *model.Posting) error {
	tx.s.lastPostingID++
	now := time.Now().UTC()
	p.ID = tx.s.lastPostingID
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = model.PostingStatusOpen
	}
	tx.postings[p.ID] = clonePosting(*p)
	return nil
}

func (tx *memTx) SavePosting(p *model.Posting) error {
	if _, ok := tx.posting(p.ID); !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	tx.postings[p.ID] = clonePosting(*p)
	return nil
}

func (tx *memTx) application(id uint) (model.Application, bool) {
	if a, ok := tx.applications[id]; ok {
		return a, true
	}
	a, ok := tx.s.applications[id]
	return a, ok
}

func (tx *memTx) GetApplication(id uint) (*model.Application, error) {
	a, ok := tx.application(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (tx *memTx) ListApplications(postingID uint, filter model.ApplicationFilter) ([]model.Application, error) {
	out := []model.Application{}
	for id, a := range tx.s.applications {
		if staged, ok := tx.applications[id]; ok {
			a = staged
		}
		if a.PostingID == postingID && filter.Match(&a) {
			out = append(out, a)
		}
	}
	for id, a := range tx.applications {
		if _, existed := tx.s.applications[id]; existed {
			continue
		}
		if a.PostingID == postingID && filter.Match(&a) {
			out = append(out, a)
		}
	}
	sortByAppliedAt(out)
	return out, nil
}

func (tx *memTx) CreateApplication(a *model.Application) error {
	if _, ok := tx.posting(a.PostingID); !ok {
		return ErrNotFound
	}
	existing, err := tx.ListApplications(a.PostingID, model.ApplicationFilter{CandidateID: &a.CandidateID})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return ErrDuplicate
	}

	tx.s.lastApplicationID++
	a.ID = tx.s.lastApplicationID
	if a.AppliedAt.IsZero() {
		a.AppliedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.AppliedAt
	tx.applications[a.ID] = *a
	return nil
}

func (tx *memTx) SaveApplication(a *model.Application) error {
	if _, ok := tx.application(a.ID); !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	tx.applications[a.ID] = *a
	return nil
}

func (tx *memTx) CreateArchiveEntry(e *model.ArchiveEntry) error {
	for _, entries := range [][]model.ArchiveEntry{tx.s.archive, tx.archive} {
		for _, existing := range entries {
			if existing.OriginalApplicationID == e.OriginalApplicationID {
				return ErrDuplicate
			}
		}
	}
	tx.s.lastArchiveID++
	e.ID = tx.s.lastArchiveID
	tx.archive = append(tx.archive, *e)
	return nil
}

func (tx *memTx) notification(id uint) (model.Notification, bool) {
	if n, ok := tx.notifications[id]; ok {
		return n, true
	}
	n, ok := tx.s.notifications[id]
	return n, ok
}

func (tx *memTx) GetNotification(id uint) (*model.Notification, error) {
	n, ok := tx.notification(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (tx *memTx) PendingNotification(applicationID uint) (*model.Notification, error) {
	var found *model.Notification
	consider := func(n model.Notification) {
		if n.ApplicationID != applicationID || n.Status != model.NotificationStatusPending {
			return
		}
		if found == nil || n.ID > found.ID {
			found = &n
		}
	}
	for id, n := range tx.s.notifications {
		if staged, ok := tx.notifications[id]; ok {
			n = staged
		}
		consider(n)
	}
	for id, n := range tx.notifications {
		if _, existed := tx.s.notifications[id]; !existed {
			consider(n)
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (tx *memTx) CreateNotification(n *model.Notification) error {
	tx.s.lastNotificationID++
	n.ID = tx.s.lastNotificationID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	tx.notifications[n.ID] = *n
	return nil
}

func (tx *memTx) SaveNotification(n *model.Notification) error {
	if _, ok := tx.notification(n.ID); !ok {
		return ErrNotFound
	}
	tx.notifications[n.ID] = *n
	return nil
}

func clonePosting(p model.Posting) model.Posting {
	p.Candidates = slices.Clone(p.Candidates)
	p.Tags = slices.Clone(p.Tags)
	return p
}

func sortByAppliedAt(apps []model.Application) {
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].AppliedAt.Equal(apps[j].AppliedAt) {
			return apps[i].AppliedAt.Before(apps[j].AppliedAt)
		}
		return apps[i].ID < apps[j].ID
	})
}
