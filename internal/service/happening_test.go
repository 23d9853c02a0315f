package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository/memstore"
)

func happeningInput() HappeningInput {
	return HappeningInput{
		Title:               "Bedriftspresentasjon",
		Type:                model.HappeningTalk,
		RegistrationOpensAt: testNow.Add(-time.Hour),
		HappeningStartsAt:   testNow.Add(24 * time.Hour),
		SpotRanges:          []model.SpotRange{allYears(2)},
		OrganizerEmail:      "Org@Test.com",
	}
}

func newHappeningService(cfg HappeningConfig) (*HappeningService, *memstore.Store, *recordingNotifier) {
	store := memstore.New()
	notifier := &recordingNotifier{}
	cfg.SendRegistrationsLinks = true
	return NewHappeningService(store, notifier, zerolog.Nop(), cfg), store, notifier
}

func TestPutCreatesUpdatesAndDetectsNoop(t *testing.T) {
	svc, store, notifier := newHappeningService(HappeningConfig{})
	ctx := context.Background()

	res, err := svc.Put(ctx, "talk", happeningInput())
	require.NoError(t, err)
	assert.Equal(t, Created, res)

	h, err := store.GetBySlug(ctx, "talk")
	require.NoError(t, err)
	assert.Len(t, h.RegistrationsLink, registrationsLinkLength)
	assert.Len(t, h.VerificationToken, verificationTokenLength)
	assert.Equal(t, "org@test.com", h.OrganizerEmail)
	assert.Equal(t, []string{"talk"}, notifier.links)

	res, err = svc.Put(ctx, "talk", happeningInput())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)

	in := happeningInput()
	in.SpotRanges = []model.SpotRange{{Spots: 5, MinDegreeYear: 1, MaxDegreeYear: 3}}
	res, err = svc.Put(ctx, "talk", in)
	require.NoError(t, err)
	assert.Equal(t, Updated, res)
	assert.Len(t, notifier.links, 1)

	updated, err := store.GetBySlug(ctx, "talk")
	require.NoError(t, err)
	assert.Equal(t, h.RegistrationsLink, updated.RegistrationsLink)
	assert.Equal(t, h.VerificationToken, updated.VerificationToken)

	in.OrganizerEmail = "new@test.com"
	res, err = svc.Put(ctx, "talk", in)
	require.NoError(t, err)
	assert.Equal(t, Updated, res)
	assert.Len(t, notifier.links, 2)
}

func TestPutDevModeUsesSlug(t *testing.T) {
	svc, store, _ := newHappeningService(HappeningConfig{Dev: true})
	ctx := context.Background()

	_, err := svc.Put(ctx, "talk", happeningInput())
	require.NoError(t, err)

	h, err := store.GetBySlug(ctx, "talk")
	require.NoError(t, err)
	assert.Equal(t, "talk", h.RegistrationsLink)
	assert.Equal(t, "talk", h.VerificationToken)

	found, err := svc.ByLink(ctx, "talk")
	require.NoError(t, err)
	assert.Equal(t, "talk", found.Slug)
}

func TestPutRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newHappeningService(HappeningConfig{})

	tests := []struct {
		name   string
		slug   string
		mutate func(*HappeningInput)
	}{
		{"no spot ranges", "talk", func(in *HappeningInput) { in.SpotRanges = nil }},
		{"inverted range", "talk", func(in *HappeningInput) {
			in.SpotRanges = []model.SpotRange{{Spots: 1, MinDegreeYear: 4, MaxDegreeYear: 2}}
		}},
		{"negative spots", "talk", func(in *HappeningInput) { in.SpotRanges[0].Spots = -1 }},
		{"unknown type", "talk", func(in *HappeningInput) { in.Type = "PARTY" }},
		{"bad organizer", "talk", func(in *HappeningInput) { in.OrganizerEmail = "nobody" }},
		{"bad slug", "Talk With Spaces", func(*HappeningInput) {}},
		{"starts before opening", "talk", func(in *HappeningInput) {
			in.HappeningStartsAt = in.RegistrationOpensAt.Add(-time.Minute)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := happeningInput()
			tt.mutate(&in)
			_, err := svc.Put(context.Background(), tt.slug, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestInfoAndCounts(t *testing.T) {
	svc, store, _ := newHappeningService(HappeningConfig{})
	ctx := context.Background()
	_, err := svc.Put(ctx, "talk", happeningInput())
	require.NoError(t, err)

	admission := NewAdmissionService(store, nil, zerolog.Nop(), AdmissionConfig{Now: func() time.Time { return testNow }})
	for _, email := range []string{"a@test.com", "b@test.com", "c@test.com"} {
		_, err := admission.Submit(ctx, "talk", submission(email, model.DegreeDTEK, 1))
		require.NoError(t, err)
	}

	info, err := svc.Info(ctx, "talk")
	require.NoError(t, err)
	require.Len(t, info.SpotRanges, 1)
	assert.Equal(t, 2, info.SpotRanges[0].Confirmed)
	assert.Equal(t, 1, info.SpotRanges[0].WaitListed)
	assert.Len(t, info.VerificationToken, verificationTokenLength)

	counts, err := svc.Counts(ctx, []string{"talk", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []RegistrationCount{
		{Slug: "talk", Confirmed: 2, WaitListed: 1},
		{Slug: "missing"},
	}, counts)

	_, err = svc.Info(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRegistrationsByLink(t *testing.T) {
	svc, store, _ := newHappeningService(HappeningConfig{})
	ctx := context.Background()
	_, err := svc.Put(ctx, "talk", happeningInput())
	require.NoError(t, err)
	h, err := store.GetBySlug(ctx, "talk")
	require.NoError(t, err)

	admission := NewAdmissionService(store, nil, zerolog.Nop(), AdmissionConfig{Now: func() time.Time { return testNow }})
	_, err = admission.Submit(ctx, "talk", submission("a@test.com", model.DegreeDTEK, 1))
	require.NoError(t, err)

	got, regs, err := svc.Registrations(ctx, h.RegistrationsLink)
	require.NoError(t, err)
	assert.Equal(t, "talk", got.Slug)
	require.Len(t, regs, 1)
	assert.Equal(t, "a@test.com", regs[0].Email)

	_, _, err = svc.Registrations(ctx, "talk")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteHappening(t *testing.T) {
	svc, _, _ := newHappeningService(HappeningConfig{})
	ctx := context.Background()
	_, err := svc.Put(ctx, "talk", happeningInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "talk"))
	assert.ErrorIs(t, svc.Delete(ctx, "talk"), repository.ErrNotFound)
}

func TestRandomToken(t *testing.T) {
	a, b := randomToken(128), randomToken(128)
	assert.Len(t, a, 128)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[0-9a-f]+$`, a)
}
