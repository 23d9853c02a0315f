package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// queries run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const happeningColumns = `slug, title, happening_type, registration_date, happening_date,
	organizer_email, registrations_link, reg_verify_token`

func scanHappening(row pgx.Row) (*model.Happening, error) {
	var h model.Happening
	err := row.Scan(
		&h.Slug, &h.Title, &h.Type, &h.RegistrationOpensAt, &h.HappeningStartsAt,
		&h.OrganizerEmail, &h.RegistrationsLink, &h.VerificationToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan happening: %w", err)
	}
	return &h, nil
}

func getHappening(ctx context.Context, q querier, where string, arg any) (*model.Happening, error) {
	return scanHappening(q.QueryRow(ctx,
		`SELECT `+happeningColumns+` FROM happening WHERE `+where+` = $1`, arg))
}

func getSpotRanges(ctx context.Context, q querier, slug string) ([]model.SpotRange, error) {
	rows, err := q.Query(ctx,
		`SELECT spots, min_degree_year, max_degree_year
		 FROM spot_range
		 WHERE happening_slug = $1
		 ORDER BY position ASC`,
		slug,
	)
	if err != nil {
		return nil, fmt.Errorf("list spot ranges: %w", err)
	}
	defer rows.Close()

	var ranges []model.SpotRange
	for rows.Next() {
		var sr model.SpotRange
		if err := rows.Scan(&sr.Spots, &sr.MinDegreeYear, &sr.MaxDegreeYear); err != nil {
			return nil, fmt.Errorf("scan spot range: %w", err)
		}
		ranges = append(ranges, sr)
	}
	return ranges, rows.Err()
}

func insertSpotRanges(ctx context.Context, q querier, slug string, ranges []model.SpotRange) error {
	for i, sr := range ranges {
		_, err := q.Exec(ctx,
			`INSERT INTO spot_range (happening_slug, position, spots, min_degree_year, max_degree_year)
			 VALUES ($1, $2, $3, $4, $5)`,
			slug, i, sr.Spots, sr.MinDegreeYear, sr.MaxDegreeYear,
		)
		if err != nil {
			return fmt.Errorf("insert spot range: %w", err)
		}
	}
	return nil
}

const registrationColumns = `happening_slug, email, first_name, last_name, degree, degree_year,
	terms, submit_date, wait_list`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.HappeningSlug, &reg.Email, &reg.FirstName, &reg.LastName, &reg.Degree,
		&reg.DegreeYear, &reg.TermsAccepted, &reg.SubmittedAt, &reg.OnWaitList,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return &reg, nil
}

func getAnswers(ctx context.Context, q querier, slug, email string) ([]model.Answer, error) {
	rows, err := q.Query(ctx,
		`SELECT question, answer
		 FROM answer
		 WHERE happening_slug = $1 AND registration_email = $2
		 ORDER BY position ASC`,
		slug, email,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.Question, &a.Answer); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func countRegistrations(ctx context.Context, q querier, slug string, degreeYears *model.DegreeYearRange, onWaitList bool) (int, error) {
	var (
		sb   strings.Builder
		args = []any{slug, onWaitList}
	)
	sb.WriteString(`SELECT COUNT(*) FROM registration WHERE happening_slug = $1 AND wait_list = $2`)
	if degreeYears != nil {
		sb.WriteString(` AND degree_year BETWEEN $3 AND $4`)
		args = append(args, degreeYears.Min, degreeYears.Max)
	}

	var count int
	if err := q.QueryRow(ctx, sb.String(), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}
