package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// WithinHappening runs fn inside a transaction that holds an exclusive row
// lock on the happening.
//
// ─────────────────────────────────────────────────────────────────────────────
// WHY THE HAPPENING ROW IS LOCKED
// ─────────────────────────────────────────────────────────────────────────────
//
// Admission counts confirmed and waitlisted registrations in a spot range and
// then inserts. Two submissions reading the counts at the same time would
// both see a free spot:
//
//	tx A: COUNT confirmed in [1,5] → 0   (capacity 1)
//	tx B: COUNT confirmed in [1,5] → 0
//	tx A: INSERT wait_list = false
//	tx B: INSERT wait_list = false       → two confirmed, capacity 1
//
// SELECT … FOR UPDATE on the happening row makes every WithinHappening call
// for the same slug queue behind the one holding the lock until it commits
// or rolls back. Different happenings lock different rows and proceed in
// parallel. When the slug does not exist nothing is locked and fn sees
// ErrNotFound from GetBySlug.
// ─────────────────────────────────────────────────────────────────────────────
func (r *RegistrationRepository) WithinHappening(ctx context.Context, slug string, fn func(tx Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT 1 FROM happening WHERE slug = $1 FOR UPDATE`, slug); err != nil {
		return fmt.Errorf("lock happening row: %w", err)
	}

	if err := fn(&registrationTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// registrationTx implements Tx on top of an open pgx transaction.
type registrationTx struct {
	tx pgx.Tx
}

func (t *registrationTx) GetBySlug(ctx context.Context, slug string) (*model.Happening, error) {
	return getHappening(ctx, t.tx, "slug", slug)
}

func (t *registrationTx) GetSpotRanges(ctx context.Context, slug string) ([]model.SpotRange, error) {
	return getSpotRanges(ctx, t.tx, slug)
}

func (t *registrationTx) FindOne(ctx context.Context, slug, email string) (*model.Registration, error) {
	reg, err := scanRegistration(t.tx.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registration
		 WHERE happening_slug = $1 AND email = $2`,
		slug, model.NormalizeEmail(email),
	))
	if err != nil {
		return nil, err
	}
	if reg.Answers, err = getAnswers(ctx, t.tx, reg.HappeningSlug, reg.Email); err != nil {
		return nil, err
	}
	return reg, nil
}

func (t *registrationTx) CountWhere(ctx context.Context, slug string, degreeYears model.DegreeYearRange, onWaitList bool) (int, error) {
	return countRegistrations(ctx, t.tx, slug, &degreeYears, onWaitList)
}

// Insert writes the registration and its answers inside a savepoint, so a
// unique violation leaves the enclosing transaction usable for a re-read.
func (t *registrationTx) Insert(ctx context.Context, reg *model.Registration) error {
	reg.Email = model.NormalizeEmail(reg.Email)
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	defer func() { _ = sp.Rollback(ctx) }()

	err = sp.QueryRow(ctx,
		`INSERT INTO registration
		     (happening_slug, email, first_name, last_name, degree, degree_year, terms, wait_list)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING submit_date`,
		reg.HappeningSlug, reg.Email, reg.FirstName, reg.LastName, reg.Degree,
		reg.DegreeYear, reg.TermsAccepted, reg.OnWaitList,
	).Scan(&reg.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	for i, a := range reg.Answers {
		_, err := sp.Exec(ctx,
			`INSERT INTO answer (happening_slug, registration_email, position, question, answer)
			 VALUES ($1, $2, $3, $4, $5)`,
			reg.HappeningSlug, reg.Email, i, a.Question, a.Answer,
		)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *registrationTx) Delete(ctx context.Context, slug, email string) (*model.Registration, error) {
	reg, err := t.FindOne(ctx, slug, email)
	if err != nil {
		return nil, err
	}
	// Answers are removed by ON DELETE CASCADE.
	if _, err := t.tx.Exec(ctx,
		`DELETE FROM registration WHERE happening_slug = $1 AND email = $2`,
		reg.HappeningSlug, reg.Email,
	); err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	return reg, nil
}

// FindOldestWaitListed locks and returns the waitlisted registration with
// the earliest submission time within scope, ties broken by email. Rows
// already locked by another promotion are skipped.
func (t *registrationTx) FindOldestWaitListed(ctx context.Context, scope WaitListScope) (*model.Registration, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + registrationColumns + ` FROM registration WHERE wait_list`)
	if scope.Slug != "" {
		args = append(args, scope.Slug)
		fmt.Fprintf(&sb, ` AND happening_slug = $%d`, len(args))
	}
	if scope.DegreeYears != nil {
		args = append(args, scope.DegreeYears.Min, scope.DegreeYears.Max)
		fmt.Fprintf(&sb, ` AND degree_year BETWEEN $%d AND $%d`, len(args)-1, len(args))
	}
	sb.WriteString(` ORDER BY submit_date ASC, email ASC LIMIT 1 FOR UPDATE SKIP LOCKED`)

	reg, err := scanRegistration(t.tx.QueryRow(ctx, sb.String(), args...))
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (t *registrationTx) UpdateWaitListFlag(ctx context.Context, slug, email string, onWaitList bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE registration SET wait_list = $3 WHERE happening_slug = $1 AND email = $2`,
		slug, model.NormalizeEmail(email), onWaitList,
	)
	if err != nil {
		return fmt.Errorf("update wait list flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface checks
var (
	_ Store          = (*RegistrationRepository)(nil)
	_ Tx             = (*registrationTx)(nil)
	_ HappeningStore = (*HappeningRepository)(nil)
)
