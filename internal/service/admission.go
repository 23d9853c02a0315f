package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/happening-registration/internal/eligibility"
	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
)

// PromotionScope selects which waitlisted registration is promoted when a
// confirmed one is cancelled.
type PromotionScope string

const (
	// PromoteGlobal promotes the oldest waitlisted registration across all
	// happenings.
	PromoteGlobal PromotionScope = "global"
	// PromoteRange promotes the oldest waitlisted registration in the same
	// happening and spot range as the cancelled one.
	PromoteRange PromotionScope = "range"
)

// ParsePromotionScope validates a configured scope name.
func ParsePromotionScope(s string) (PromotionScope, error) {
	switch PromotionScope(s) {
	case PromoteGlobal, PromoteRange:
		return PromotionScope(s), nil
	}
	return "", fmt.Errorf("unknown promotion scope %q", s)
}

// Outcome is the result of a submission. Fields beyond Code are set only
// for the codes that need them.
type Outcome struct {
	Code          model.Code
	HappeningType model.HappeningType
	// RegistrationOpensAt is set for TooEarly.
	RegistrationOpensAt *time.Time
	// SpotRanges is set for NotInRange.
	SpotRanges []model.SpotRange
	// WaitListPosition is 1-based and set for WaitList.
	WaitListPosition int
}

// CancelOutcome is the result of a cancellation.
type CancelOutcome struct {
	Code          model.Code
	Slug          string
	Email         string
	PromotedSlug  string
	PromotedEmail string
}

// AdmissionConfig tunes AdmissionService.
type AdmissionConfig struct {
	// VerifyRegistrations requires every submission to present the
	// happening's verification token.
	VerifyRegistrations bool
	// SendConfirmations enables registrant notifications.
	SendConfirmations bool
	PromotionScope    PromotionScope
	// Now defaults to time.Now.
	Now func() time.Time
}

// AdmissionService admits submissions and processes cancellations.
type AdmissionService struct {
	store    repository.Store
	notifier Notifier
	log      zerolog.Logger
	cfg      AdmissionConfig
}

// NewAdmissionService constructs an AdmissionService with its dependencies.
func NewAdmissionService(store repository.Store, notifier Notifier, log zerolog.Logger, cfg AdmissionConfig) *AdmissionService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PromotionScope == "" {
		cfg.PromotionScope = PromoteGlobal
	}
	return &AdmissionService{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "admission").Logger(),
		cfg:      cfg,
	}
}

// Submit decides whether sub is confirmed, waitlisted or rejected for the
// happening identified by slug, and stores it when admitted.
//
// Eligibility runs first and never touches storage. Everything after it,
// from the happening lookup to the insert, runs in one atomic unit per
// happening so that concurrent submissions cannot overfill a spot range or
// register the same email twice. A non-nil error means storage failed and
// nothing was written.
func (s *AdmissionService) Submit(ctx context.Context, slug string, sub model.Submission) (Outcome, error) {
	out := Outcome{HappeningType: sub.Type}
	if code := eligibility.Check(sub); code != model.Eligible {
		out.Code = code
		return out, nil
	}

	email := model.NormalizeEmail(sub.Email)
	err := s.store.WithinHappening(ctx, slug, func(tx repository.Tx) error {
		out = Outcome{HappeningType: sub.Type}
		return s.admit(ctx, tx, slug, email, sub, &out)
	})
	if err != nil {
		s.log.Error().Err(err).Str("slug", slug).Str("email", email).Msg("submission failed")
		return Outcome{}, fmt.Errorf("submit registration: %w", err)
	}

	s.log.Info().
		Str("slug", slug).
		Str("email", email).
		Str("code", string(out.Code)).
		Int("wait_list_position", out.WaitListPosition).
		Msg("submission processed")

	if out.Code.Admitted() {
		s.sendConfirmation(ctx, sub, slug, out)
	}
	return out, nil
}

func (s *AdmissionService) admit(ctx context.Context, tx repository.Tx, slug, email string, sub model.Submission, out *Outcome) error {
	h, err := tx.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		out.Code = model.HappeningNotFound
		return nil
	}
	if err != nil {
		return err
	}
	out.HappeningType = h.Type

	if s.cfg.VerifyRegistrations && sub.VerificationToken != h.VerificationToken {
		out.Code = model.NotViaForm
		return nil
	}

	now := s.cfg.Now()
	if now.Before(h.RegistrationOpensAt) {
		opens := h.RegistrationOpensAt
		out.Code = model.TooEarly
		out.RegistrationOpensAt = &opens
		return nil
	}
	if now.After(h.HappeningStartsAt) {
		out.Code = model.TooLate
		return nil
	}

	ranges, err := tx.GetSpotRanges(ctx, slug)
	if err != nil {
		return err
	}
	matched, ok := matchSpotRange(ranges, sub.DegreeYear)
	if !ok {
		out.Code = model.NotInRange
		out.SpotRanges = ranges
		return nil
	}

	confirmed, err := tx.CountWhere(ctx, slug, matched.Bounds(), false)
	if err != nil {
		return err
	}
	waitListed, err := tx.CountWhere(ctx, slug, matched.Bounds(), true)
	if err != nil {
		return err
	}
	// Once anyone in the range is waitlisted, later submissions queue behind
	// them even if a spot has been freed; freed spots go out by promotion.
	onWaitList := (!matched.Unlimited() && confirmed >= matched.Spots) || waitListed > 0

	existing, err := tx.FindOne(ctx, slug, email)
	if err == nil {
		out.Code = alreadySubmitted(existing)
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	reg := sub.Registration(slug, onWaitList)
	if err := tx.Insert(ctx, &reg); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}
		existing, ferr := tx.FindOne(ctx, slug, email)
		if ferr != nil {
			return fmt.Errorf("re-read after duplicate key: %w", ferr)
		}
		out.Code = alreadySubmitted(existing)
		return nil
	}

	if onWaitList {
		out.Code = model.WaitList
		out.WaitListPosition = waitListed + 1
	} else {
		out.Code = model.OK
	}
	return nil
}

// matchSpotRange returns the first range containing year.
func matchSpotRange(ranges []model.SpotRange, year int) (model.SpotRange, bool) {
	for _, sr := range ranges {
		if sr.Contains(year) {
			return sr, true
		}
	}
	return model.SpotRange{}, false
}

func alreadySubmitted(existing *model.Registration) model.Code {
	if existing.OnWaitList {
		return model.AlreadySubmittedWaitList
	}
	return model.AlreadySubmitted
}

func (s *AdmissionService) sendConfirmation(ctx context.Context, sub model.Submission, slug string, out Outcome) {
	if !s.cfg.SendConfirmations || s.notifier == nil {
		return
	}
	var position *int
	if out.Code == model.WaitList {
		p := out.WaitListPosition
		position = &p
	}
	if err := s.notifier.SendConfirmation(ctx, sub, slug, position); err != nil {
		s.log.Warn().Err(err).Str("slug", slug).Str("email", model.NormalizeEmail(sub.Email)).
			Msg("failed to send confirmation")
	}
}

// CancelAndPromote deletes the registration for (slug, email). When the
// deleted registration held a confirmed spot, the oldest waitlisted
// registration within the configured PromotionScope is confirmed in the
// same atomic unit.
func (s *AdmissionService) CancelAndPromote(ctx context.Context, slug, email string) (CancelOutcome, error) {
	email = model.NormalizeEmail(email)
	var out CancelOutcome
	err := s.store.WithinHappening(ctx, slug, func(tx repository.Tx) error {
		out = CancelOutcome{Slug: slug, Email: email}
		return s.cancel(ctx, tx, slug, email, &out)
	})
	if err != nil {
		s.log.Error().Err(err).Str("slug", slug).Str("email", email).Msg("cancellation failed")
		return CancelOutcome{}, fmt.Errorf("cancel registration: %w", err)
	}

	s.log.Info().
		Str("slug", slug).
		Str("email", email).
		Str("code", string(out.Code)).
		Str("promoted_slug", out.PromotedSlug).
		Str("promoted_email", out.PromotedEmail).
		Msg("cancellation processed")
	return out, nil
}

func (s *AdmissionService) cancel(ctx context.Context, tx repository.Tx, slug, email string, out *CancelOutcome) error {
	removed, err := tx.Delete(ctx, slug, email)
	if errors.Is(err, repository.ErrNotFound) {
		out.Code = model.RegistrationNotFound
		return nil
	}
	if err != nil {
		return err
	}
	out.Code = model.Deleted
	if removed.OnWaitList {
		return nil
	}

	scope, err := s.promotionScope(ctx, tx, removed)
	if err != nil {
		return err
	}
	next, err := tx.FindOldestWaitListed(ctx, scope)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.UpdateWaitListFlag(ctx, next.HappeningSlug, next.Email, false); err != nil {
		return err
	}

	out.Code = model.DeletedAndPromoted
	out.PromotedSlug = next.HappeningSlug
	out.PromotedEmail = next.Email
	return nil
}

func (s *AdmissionService) promotionScope(ctx context.Context, tx repository.Tx, removed *model.Registration) (repository.WaitListScope, error) {
	if s.cfg.PromotionScope != PromoteRange {
		return repository.WaitListScope{}, nil
	}
	scope := repository.WaitListScope{Slug: removed.HappeningSlug}
	ranges, err := tx.GetSpotRanges(ctx, removed.HappeningSlug)
	if err != nil {
		return scope, err
	}
	if matched, ok := matchSpotRange(ranges, removed.DegreeYear); ok {
		bounds := matched.Bounds()
		scope.DegreeYears = &bounds
	}
	return scope, nil
}
