package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
	"github.com/Shivanand-hulikatti/happening-registration/pkg/validator"
)

const (
	registrationsLinkLength = 128
	verificationTokenLength = 16
)

// PutResult reports what Put did with the submitted definition.
type PutResult string

const (
	Created   PutResult = "Created"
	Updated   PutResult = "Updated"
	Unchanged PutResult = "Unchanged"
)

// HappeningInput is the administrative definition of a happening.
type HappeningInput struct {
	Title               string              `json:"title" validate:"required,max=500"`
	Type                model.HappeningType `json:"type" validate:"required,oneof=TALK EVENT"`
	RegistrationOpensAt time.Time           `json:"registrationDate" validate:"required"`
	HappeningStartsAt   time.Time           `json:"happeningDate" validate:"required"`
	SpotRanges          []model.SpotRange   `json:"spotRanges" validate:"required,min=1,dive"`
	OrganizerEmail      string              `json:"organizerEmail" validate:"required,email"`
}

// SpotRangeCount is a spot range with its current occupancy.
type SpotRangeCount struct {
	model.SpotRange
	Confirmed  int `json:"regCount"`
	WaitListed int `json:"waitListCount"`
}

// HappeningInfo is what a registration form needs to render.
type HappeningInfo struct {
	SpotRanges        []SpotRangeCount `json:"spotRanges"`
	VerificationToken string           `json:"regVerifyToken,omitempty"`
}

// RegistrationCount is the occupancy of one happening.
type RegistrationCount struct {
	Slug       string `json:"slug"`
	Confirmed  int    `json:"count"`
	WaitListed int    `json:"waitListCount"`
}

// HappeningConfig tunes HappeningService.
type HappeningConfig struct {
	// Dev uses the slug as registrations link and verification token and
	// skips the link length check.
	Dev bool
	// SendRegistrationsLinks enables organizer notifications.
	SendRegistrationsLinks bool
}

// HappeningService handles administrative operations on happenings.
type HappeningService struct {
	happenings repository.HappeningStore
	notifier   Notifier
	log        zerolog.Logger
	cfg        HappeningConfig
}

// NewHappeningService constructs a HappeningService with its dependencies.
func NewHappeningService(happenings repository.HappeningStore, notifier Notifier, log zerolog.Logger, cfg HappeningConfig) *HappeningService {
	return &HappeningService{
		happenings: happenings,
		notifier:   notifier,
		log:        log.With().Str("component", "happening").Logger(),
		cfg:        cfg,
	}
}

// Put creates the happening identified by slug or brings it in line with in.
func (s *HappeningService) Put(ctx context.Context, slug string, in HappeningInput) (PutResult, error) {
	if !validator.Slug(slug) {
		return "", fmt.Errorf("%w: malformed slug %q", ErrInvalidInput, slug)
	}
	if err := validator.Validate(ctx, in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.HappeningStartsAt.Before(in.RegistrationOpensAt) {
		return "", fmt.Errorf("%w: happening starts before registration opens", ErrInvalidInput)
	}

	h := model.Happening{
		Slug:                slug,
		Title:               strings.TrimSpace(in.Title),
		Type:                in.Type,
		RegistrationOpensAt: in.RegistrationOpensAt.UTC(),
		HappeningStartsAt:   in.HappeningStartsAt.UTC(),
		OrganizerEmail:      model.NormalizeEmail(in.OrganizerEmail),
	}

	current, err := s.happenings.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return s.create(ctx, &h, in.SpotRanges)
	}
	if err != nil {
		return "", fmt.Errorf("get happening: %w", err)
	}

	ranges, err := s.happenings.GetSpotRanges(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("get spot ranges: %w", err)
	}
	if sameDefinition(current, ranges, &h, in.SpotRanges) {
		return Unchanged, nil
	}

	h.RegistrationsLink = current.RegistrationsLink
	h.VerificationToken = current.VerificationToken
	if err := s.happenings.Update(ctx, &h, in.SpotRanges); err != nil {
		return "", fmt.Errorf("update happening: %w", err)
	}
	s.log.Info().Str("slug", slug).Msg("happening updated")

	if current.OrganizerEmail != h.OrganizerEmail {
		s.sendRegistrationsLink(ctx, h)
	}
	return Updated, nil
}

func (s *HappeningService) create(ctx context.Context, h *model.Happening, ranges []model.SpotRange) (PutResult, error) {
	if s.cfg.Dev {
		h.RegistrationsLink = h.Slug
		h.VerificationToken = h.Slug
	} else {
		h.RegistrationsLink = randomToken(registrationsLinkLength)
		h.VerificationToken = randomToken(verificationTokenLength)
	}
	if err := s.happenings.Create(ctx, h, ranges); err != nil {
		return "", fmt.Errorf("create happening: %w", err)
	}
	s.log.Info().Str("slug", h.Slug).Str("type", string(h.Type)).Msg("happening created")

	s.sendRegistrationsLink(ctx, *h)
	return Created, nil
}

func sameDefinition(current *model.Happening, currentRanges []model.SpotRange, next *model.Happening, nextRanges []model.SpotRange) bool {
	return current.Title == next.Title &&
		current.Type == next.Type &&
		current.RegistrationOpensAt.Equal(next.RegistrationOpensAt) &&
		current.HappeningStartsAt.Equal(next.HappeningStartsAt) &&
		current.OrganizerEmail == next.OrganizerEmail &&
		slices.Equal(currentRanges, nextRanges)
}

// randomToken returns n random alphanumeric characters.
func randomToken(n int) string {
	var b strings.Builder
	for b.Len() < n {
		id := uuid.New()
		b.WriteString(strings.ReplaceAll(id.String(), "-", ""))
	}
	return b.String()[:n]
}

func (s *HappeningService) sendRegistrationsLink(ctx context.Context, h model.Happening) {
	if !s.cfg.SendRegistrationsLinks || s.notifier == nil {
		return
	}
	if err := s.notifier.SendRegistrationsLink(ctx, h); err != nil {
		s.log.Warn().Err(err).Str("slug", h.Slug).Msg("failed to send registrations link")
	}
}

// Delete removes a happening with everything registered to it.
func (s *HappeningService) Delete(ctx context.Context, slug string) error {
	if err := s.happenings.Delete(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("delete happening: %w", err)
	}
	s.log.Info().Str("slug", slug).Msg("happening deleted")
	return nil
}

// Info returns the spot ranges of a happening with their occupancy.
func (s *HappeningService) Info(ctx context.Context, slug string) (*HappeningInfo, error) {
	h, err := s.happenings.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get happening: %w", err)
	}
	ranges, err := s.happenings.GetSpotRanges(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get spot ranges: %w", err)
	}

	info := &HappeningInfo{
		SpotRanges:        make([]SpotRangeCount, 0, len(ranges)),
		VerificationToken: h.VerificationToken,
	}
	for _, sr := range ranges {
		bounds := sr.Bounds()
		confirmed, err := s.happenings.CountRegistrations(ctx, slug, &bounds, false)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		waitListed, err := s.happenings.CountRegistrations(ctx, slug, &bounds, true)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		info.SpotRanges = append(info.SpotRanges, SpotRangeCount{
			SpotRange:  sr,
			Confirmed:  confirmed,
			WaitListed: waitListed,
		})
	}
	return info, nil
}

// ByLink resolves a registrations link. Links of the wrong length are
// rejected without a lookup outside dev mode.
func (s *HappeningService) ByLink(ctx context.Context, link string) (*model.Happening, error) {
	if link == "" || (!s.cfg.Dev && len(link) != registrationsLinkLength) {
		return nil, repository.ErrNotFound
	}
	h, err := s.happenings.GetByLink(ctx, link)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get happening by link: %w", err)
	}
	return h, nil
}

// Registrations lists the registrations of the happening behind link,
// oldest first.
func (s *HappeningService) Registrations(ctx context.Context, link string) (*model.Happening, []model.Registration, error) {
	h, err := s.ByLink(ctx, link)
	if err != nil {
		return nil, nil, err
	}
	regs, err := s.happenings.ListRegistrations(ctx, h.Slug)
	if err != nil {
		return nil, nil, fmt.Errorf("list registrations: %w", err)
	}
	return h, regs, nil
}

// Counts returns confirmed and waitlisted totals for each slug. Unknown
// slugs count as empty.
func (s *HappeningService) Counts(ctx context.Context, slugs []string) ([]RegistrationCount, error) {
	counts := make([]RegistrationCount, 0, len(slugs))
	for _, slug := range slugs {
		confirmed, err := s.happenings.CountRegistrations(ctx, slug, nil, false)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		waitListed, err := s.happenings.CountRegistrations(ctx, slug, nil, true)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		counts = append(counts, RegistrationCount{Slug: slug, Confirmed: confirmed, WaitListed: waitListed})
	}
	return counts, nil
}
