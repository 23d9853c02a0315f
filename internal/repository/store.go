// Package repository defines the storage contracts the registration service
// depends on and implements them on PostgreSQL with pgx.
package repository

import (
	"context"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// HappeningReader looks up happenings and their spot ranges.
type HappeningReader interface {
	GetBySlug(ctx context.Context, slug string) (*model.Happening, error)
	// GetSpotRanges returns the ranges in the order they were configured.
	GetSpotRanges(ctx context.Context, slug string) ([]model.SpotRange, error)
}

// WaitListScope narrows FindOldestWaitListed. The zero value searches every
// happening.
type WaitListScope struct {
	Slug        string
	DegreeYears *model.DegreeYearRange
}

// RegistrationStore is the durable record of registrations.
type RegistrationStore interface {
	FindOne(ctx context.Context, slug, email string) (*model.Registration, error)
	CountWhere(ctx context.Context, slug string, degreeYears model.DegreeYearRange, onWaitList bool) (int, error)
	// Insert assigns SubmittedAt and returns ErrDuplicateKey if the
	// (slug, email) pair is taken.
	Insert(ctx context.Context, reg *model.Registration) error
	// Delete removes the registration with its answers and returns it.
	Delete(ctx context.Context, slug, email string) (*model.Registration, error)
	FindOldestWaitListed(ctx context.Context, scope WaitListScope) (*model.Registration, error)
	UpdateWaitListFlag(ctx context.Context, slug, email string, onWaitList bool) error
}

// Tx is the view of storage available inside an atomic unit.
type Tx interface {
	HappeningReader
	RegistrationStore
}

// Store runs read-modify-write sequences on registrations atomically.
//
// Calls to WithinHappening for the same slug are serialized and fn's writes
// commit together or not at all. Calls for different slugs do not block
// each other.
type Store interface {
	WithinHappening(ctx context.Context, slug string, fn func(tx Tx) error) error
}

// HappeningStore manages happening definitions and the read models built
// on top of their registrations.
type HappeningStore interface {
	HappeningReader
	GetByLink(ctx context.Context, link string) (*model.Happening, error)
	Create(ctx context.Context, h *model.Happening, ranges []model.SpotRange) error
	// Update overwrites the mutable fields and replaces the spot ranges.
	Update(ctx context.Context, h *model.Happening, ranges []model.SpotRange) error
	// Delete removes the happening with its spot ranges, registrations and
	// answers.
	Delete(ctx context.Context, slug string) error
	// ListRegistrations returns registrations ordered by submission time.
	ListRegistrations(ctx context.Context, slug string) ([]model.Registration, error)
	// CountRegistrations counts registrations with the given wait list
	// flag, optionally restricted to a degree-year range.
	CountRegistrations(ctx context.Context, slug string, degreeYears *model.DegreeYearRange, onWaitList bool) (int, error)
}
