package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// HappeningRepository handles persistence for happenings and their spot
// ranges.
type HappeningRepository struct {
	db *pgxpool.Pool
}

// NewHappeningRepository constructs a HappeningRepository.
func NewHappeningRepository(db *pgxpool.Pool) *HappeningRepository {
	return &HappeningRepository{db: db}
}

// GetBySlug returns a single happening or ErrNotFound.
func (r *HappeningRepository) GetBySlug(ctx context.Context, slug string) (*model.Happening, error) {
	return getHappening(ctx, r.db, "slug", slug)
}

// GetByLink resolves a registrations link to its happening or ErrNotFound.
func (r *HappeningRepository) GetByLink(ctx context.Context, link string) (*model.Happening, error) {
	return getHappening(ctx, r.db, "registrations_link", link)
}

// GetSpotRanges returns the happening's spot ranges in configured order.
func (r *HappeningRepository) GetSpotRanges(ctx context.Context, slug string) ([]model.SpotRange, error) {
	return getSpotRanges(ctx, r.db, slug)
}

// Create inserts a happening together with its spot ranges.
func (r *HappeningRepository) Create(ctx context.Context, h *model.Happening, ranges []model.SpotRange) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO happening (`+happeningColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.Slug, h.Title, h.Type, h.RegistrationOpensAt, h.HappeningStartsAt,
		h.OrganizerEmail, h.RegistrationsLink, h.VerificationToken,
	)
	if err != nil {
		return fmt.Errorf("insert happening: %w", err)
	}
	if err := insertSpotRanges(ctx, tx, h.Slug, ranges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Update overwrites a happening's mutable fields and replaces its spot
// ranges. The registrations link and verification token are kept.
func (r *HappeningRepository) Update(ctx context.Context, h *model.Happening, ranges []model.SpotRange) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE happening
		 SET title = $2, happening_type = $3, registration_date = $4,
		     happening_date = $5, organizer_email = $6
		 WHERE slug = $1`,
		h.Slug, h.Title, h.Type, h.RegistrationOpensAt, h.HappeningStartsAt, h.OrganizerEmail,
	)
	if err != nil {
		return fmt.Errorf("update happening: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM spot_range WHERE happening_slug = $1`, h.Slug); err != nil {
		return fmt.Errorf("delete spot ranges: %w", err)
	}
	if err := insertSpotRanges(ctx, tx, h.Slug, ranges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a happening. Spot ranges, registrations and answers go
// with it through ON DELETE CASCADE.
func (r *HappeningRepository) Delete(ctx context.Context, slug string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM happening WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete happening: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRegistrations returns all registrations for a happening ordered by
// submission time, answers included.
func (r *HappeningRepository) ListRegistrations(ctx context.Context, slug string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registration
		 WHERE happening_slug = $1
		 ORDER BY submit_date ASC, email ASC`,
		slug,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	answers, err := r.answersByEmail(ctx, slug)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		regs[i].Answers = answers[regs[i].Email]
		if regs[i].Answers == nil {
			regs[i].Answers = []model.Answer{}
		}
	}
	return regs, nil
}

func (r *HappeningRepository) answersByEmail(ctx context.Context, slug string) (map[string][]model.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT registration_email, question, answer
		 FROM answer
		 WHERE happening_slug = $1
		 ORDER BY registration_email, position ASC`,
		slug,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := make(map[string][]model.Answer)
	for rows.Next() {
		var (
			email string
			a     model.Answer
		)
		if err := rows.Scan(&email, &a.Question, &a.Answer); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers[email] = append(answers[email], a)
	}
	return answers, rows.Err()
}

// CountRegistrations counts a happening's registrations by wait list flag.
func (r *HappeningRepository) CountRegistrations(ctx context.Context, slug string, degreeYears *model.DegreeYearRange, onWaitList bool) (int, error) {
	return countRegistrations(ctx, r.db, slug, degreeYears, onWaitList)
}
