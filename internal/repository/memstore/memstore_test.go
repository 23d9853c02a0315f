package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
)

func seedHappening(t *testing.T, s *Store, slug string) {
	t.Helper()
	h := &model.Happening{
		Slug:              slug,
		Title:             "Talk with Someone",
		Type:              model.HappeningTalk,
		RegistrationsLink: slug + "-link",
		VerificationToken: slug + "-token",
	}
	require.NoError(t, s.Create(context.Background(), h, []model.SpotRange{{Spots: 1, MinDegreeYear: 1, MaxDegreeYear: 5}}))
}

func insert(t *testing.T, s *Store, slug, email string, onWaitList bool) {
	t.Helper()
	err := s.WithinHappening(context.Background(), slug, func(tx repository.Tx) error {
		return tx.Insert(context.Background(), &model.Registration{
			HappeningSlug: slug,
			Email:         email,
			DegreeYear:    3,
			OnWaitList:    onWaitList,
		})
	})
	require.NoError(t, err)
}

func TestInsertRejectsDuplicateCaseInsensitive(t *testing.T) {
	s := New()
	seedHappening(t, s, "talk")
	insert(t, s, "talk", "a@test.com", false)

	err := s.WithinHappening(context.Background(), "talk", func(tx repository.Tx) error {
		return tx.Insert(context.Background(), &model.Registration{HappeningSlug: "talk", Email: "A@Test.com"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}

func TestSubmittedAtIsStrictlyMonotonic(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	seedHappening(t, s, "talk")

	insert(t, s, "talk", "b@test.com", false)
	insert(t, s, "talk", "a@test.com", false)

	regs, err := s.ListRegistrations(context.Background(), "talk")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "b@test.com", regs[0].Email)
	assert.True(t, regs[0].SubmittedAt.Before(regs[1].SubmittedAt))
}

func TestWithinHappeningRollsBackOnError(t *testing.T) {
	s := New()
	seedHappening(t, s, "talk")
	insert(t, s, "talk", "a@test.com", false)
	insert(t, s, "talk", "b@test.com", true)

	boom := errors.New("boom")
	err := s.WithinHappening(context.Background(), "talk", func(tx repository.Tx) error {
		ctx := context.Background()
		if _, err := tx.Delete(ctx, "talk", "a@test.com"); err != nil {
			return err
		}
		if err := tx.UpdateWaitListFlag(ctx, "talk", "b@test.com", false); err != nil {
			return err
		}
		if err := tx.Insert(ctx, &model.Registration{HappeningSlug: "talk", Email: "c@test.com"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	confirmed, _ := s.CountRegistrations(context.Background(), "talk", nil, false)
	waitListed, _ := s.CountRegistrations(context.Background(), "talk", nil, true)
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 1, waitListed)

	regs, _ := s.ListRegistrations(context.Background(), "talk")
	require.Len(t, regs, 2)
	assert.Equal(t, "a@test.com", regs[0].Email)
	assert.False(t, regs[0].OnWaitList)
	assert.True(t, regs[1].OnWaitList)
}

func TestFindOldestWaitListedScopes(t *testing.T) {
	s := New()
	seedHappening(t, s, "first")
	seedHappening(t, s, "second")
	insert(t, s, "second", "old@test.com", true)
	insert(t, s, "first", "new@test.com", true)

	err := s.WithinHappening(context.Background(), "first", func(tx repository.Tx) error {
		ctx := context.Background()

		global, err := tx.FindOldestWaitListed(ctx, repository.WaitListScope{})
		require.NoError(t, err)
		assert.Equal(t, "old@test.com", global.Email)

		scoped, err := tx.FindOldestWaitListed(ctx, repository.WaitListScope{Slug: "first"})
		require.NoError(t, err)
		assert.Equal(t, "new@test.com", scoped.Email)

		_, err = tx.FindOldestWaitListed(ctx, repository.WaitListScope{
			Slug:        "first",
			DegreeYears: &model.DegreeYearRange{Min: 4, Max: 5},
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteHappeningCascades(t *testing.T) {
	s := New()
	seedHappening(t, s, "talk")
	insert(t, s, "talk", "a@test.com", false)

	require.NoError(t, s.Delete(context.Background(), "talk"))
	assert.ErrorIs(t, s.Delete(context.Background(), "talk"), repository.ErrNotFound)

	_, err := s.GetBySlug(context.Background(), "talk")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	ranges, _ := s.GetSpotRanges(context.Background(), "talk")
	assert.Empty(t, ranges)
	n, _ := s.CountRegistrations(context.Background(), "talk", nil, false)
	assert.Zero(t, n)
}

func TestUpdateKeepsCapabilityTokens(t *testing.T) {
	s := New()
	seedHappening(t, s, "talk")

	err := s.Update(context.Background(), &model.Happening{Slug: "talk", Title: "Renamed"}, []model.SpotRange{
		{Spots: 5, MinDegreeYear: 1, MaxDegreeYear: 2},
		{Spots: 5, MinDegreeYear: 3, MaxDegreeYear: 5},
	})
	require.NoError(t, err)

	h, err := s.GetByLink(context.Background(), "talk-link")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", h.Title)
	assert.Equal(t, "talk-token", h.VerificationToken)
	ranges, _ := s.GetSpotRanges(context.Background(), "talk")
	assert.Len(t, ranges, 2)
}

func TestWithinHappeningSerializesSameSlug(t *testing.T) {
	s := New()
	seedHappening(t, s, "talk")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinHappening(context.Background(), "talk", func(tx repository.Tx) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, s.slugLocks.locks)
}

func TestWithinHappeningHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinHappening(ctx, "talk", func(tx repository.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
