package memstore

import (
	"context"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
)

// memTx is the repository.Tx handed to WithinHappening callbacks. Every
// write pushes its inverse onto undo.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetBySlug(ctx context.Context, slug string) (*model.Happening, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.getBySlug(slug)
}

func (t *memTx) GetSpotRanges(ctx context.Context, slug string) ([]model.SpotRange, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.spotRanges(slug), nil
}

func (t *memTx) FindOne(ctx context.Context, slug, email string) (*model.Registration, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.regs[regKey{slug, model.NormalizeEmail(email)}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRegistration(r), nil
}

func (t *memTx) CountWhere(ctx context.Context, slug string, degreeYears model.DegreeYearRange, onWaitList bool) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.count(slug, &degreeYears, onWaitList), nil
}

func (t *memTx) Insert(ctx context.Context, reg *model.Registration) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := regKey{reg.HappeningSlug, model.NormalizeEmail(reg.Email)}
	if _, ok := t.s.regs[key]; ok {
		return repository.ErrDuplicateKey
	}
	reg.Email = key.email
	reg.SubmittedAt = t.s.nextSubmitTime()
	t.s.regs[key] = *cloneRegistration(*reg)
	t.undo = append(t.undo, func() { delete(t.s.regs, key) })
	return nil
}

func (t *memTx) Delete(ctx context.Context, slug, email string) (*model.Registration, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := regKey{slug, model.NormalizeEmail(email)}
	r, ok := t.s.regs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(t.s.regs, key)
	t.undo = append(t.undo, func() { t.s.regs[key] = r })
	return cloneRegistration(r), nil
}

func (t *memTx) FindOldestWaitListed(ctx context.Context, scope repository.WaitListScope) (*model.Registration, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	var oldest *model.Registration
	for k, r := range t.s.regs {
		if !r.OnWaitList {
			continue
		}
		if scope.Slug != "" && k.slug != scope.Slug {
			continue
		}
		if scope.DegreeYears != nil && !scope.DegreeYears.Contains(r.DegreeYear) {
			continue
		}
		if oldest == nil || submittedBefore(r, *oldest) {
			oldest = cloneRegistration(r)
		}
	}
	if oldest == nil {
		return nil, repository.ErrNotFound
	}
	return oldest, nil
}

func (t *memTx) UpdateWaitListFlag(ctx context.Context, slug, email string, onWaitList bool) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := regKey{slug, model.NormalizeEmail(email)}
	r, ok := t.s.regs[key]
	if !ok {
		return repository.ErrNotFound
	}
	previous := r.OnWaitList
	r.OnWaitList = onWaitList
	t.s.regs[key] = r
	t.undo = append(t.undo, func() {
		if cur, ok := t.s.regs[key]; ok {
			cur.OnWaitList = previous
			t.s.regs[key] = cur
		}
	})
	return nil
}

var _ repository.Tx = (*memTx)(nil)
