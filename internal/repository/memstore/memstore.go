// Package memstore keeps happenings and registrations in process memory.
// Atomic units are serialized per happening slug with a keyed mutex and
// undone on failure, so it honours the same contracts as the PostgreSQL
// repository for a single instance.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
)

type regKey struct {
	slug  string
	email string
}

// Store is an in-memory implementation of repository.Store and
// repository.HappeningStore.
type Store struct {
	mu         sync.Mutex
	happenings map[string]model.Happening
	ranges     map[string][]model.SpotRange
	regs       map[regKey]model.Registration
	lastSubmit time.Time
	now        func() time.Time

	slugLocks *keyedMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp SubmittedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		happenings: make(map[string]model.Happening),
		ranges:     make(map[string][]model.SpotRange),
		regs:       make(map[regKey]model.Registration),
		now:        time.Now,
		slugLocks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinHappening runs fn while holding the slug's lock. If fn fails, every
// write it made is reverted before the lock is released.
func (s *Store) WithinHappening(ctx context.Context, slug string, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.slugLocks.Lock(slug)
	defer unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// nextSubmitTime returns a timestamp strictly after every previous one.
// Callers hold s.mu.
func (s *Store) nextSubmitTime() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastSubmit) {
		t = s.lastSubmit.Add(time.Nanosecond)
	}
	s.lastSubmit = t
	return t
}

func cloneRegistration(r model.Registration) *model.Registration {
	if r.Answers != nil {
		r.Answers = append([]model.Answer(nil), r.Answers...)
	} else {
		r.Answers = []model.Answer{}
	}
	return &r
}

// submittedBefore orders registrations by submission time, then email.
func submittedBefore(a, b model.Registration) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.Email < b.Email
}

func (s *Store) getBySlug(slug string) (*model.Happening, error) {
	h, ok := s.happenings[slug]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &h, nil
}

func (s *Store) spotRanges(slug string) []model.SpotRange {
	return append([]model.SpotRange(nil), s.ranges[slug]...)
}

func (s *Store) count(slug string, degreeYears *model.DegreeYearRange, onWaitList bool) int {
	n := 0
	for k, r := range s.regs {
		if k.slug != slug || r.OnWaitList != onWaitList {
			continue
		}
		if degreeYears != nil && !degreeYears.Contains(r.DegreeYear) {
			continue
		}
		n++
	}
	return n
}

// GetBySlug returns a happening or repository.ErrNotFound.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*model.Happening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBySlug(slug)
}

// GetByLink resolves a registrations link to its happening.
func (s *Store) GetByLink(ctx context.Context, link string) (*model.Happening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.happenings {
		if h.RegistrationsLink == link {
			return &h, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetSpotRanges returns the happening's spot ranges in configured order.
func (s *Store) GetSpotRanges(ctx context.Context, slug string) ([]model.SpotRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spotRanges(slug), nil
}

// Create stores a new happening. It returns repository.ErrDuplicateKey when
// the slug is taken.
func (s *Store) Create(ctx context.Context, h *model.Happening, ranges []model.SpotRange) error {
	unlock := s.slugLocks.Lock(h.Slug)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.happenings[h.Slug]; ok {
		return repository.ErrDuplicateKey
	}
	s.happenings[h.Slug] = *h
	s.ranges[h.Slug] = append([]model.SpotRange(nil), ranges...)
	return nil
}

// Update overwrites a happening's mutable fields and replaces its ranges.
func (s *Store) Update(ctx context.Context, h *model.Happening, ranges []model.SpotRange) error {
	unlock := s.slugLocks.Lock(h.Slug)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.happenings[h.Slug]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *h
	updated.RegistrationsLink = old.RegistrationsLink
	updated.VerificationToken = old.VerificationToken
	s.happenings[h.Slug] = updated
	s.ranges[h.Slug] = append([]model.SpotRange(nil), ranges...)
	return nil
}

// Delete removes a happening with its spot ranges and registrations.
func (s *Store) Delete(ctx context.Context, slug string) error {
	unlock := s.slugLocks.Lock(slug)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.happenings[slug]; !ok {
		return repository.ErrNotFound
	}
	delete(s.happenings, slug)
	delete(s.ranges, slug)
	for k := range s.regs {
		if k.slug == slug {
			delete(s.regs, k)
		}
	}
	return nil
}

// ListRegistrations returns a happening's registrations ordered by
// submission time.
func (s *Store) ListRegistrations(ctx context.Context, slug string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regs []model.Registration
	for k, r := range s.regs {
		if k.slug == slug {
			regs = append(regs, *cloneRegistration(r))
		}
	}
	sort.Slice(regs, func(i, j int) bool { return submittedBefore(regs[i], regs[j]) })
	return regs, nil
}

// CountRegistrations counts registrations by wait list flag.
func (s *Store) CountRegistrations(ctx context.Context, slug string, degreeYears *model.DegreeYearRange, onWaitList bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(slug, degreeYears, onWaitList), nil
}

var (
	_ repository.Store          = (*Store)(nil)
	_ repository.HappeningStore = (*Store)(nil)
)
