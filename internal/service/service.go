// Package service implements the registration business logic: admission of
// submissions, cancellation with waitlist promotion, and the administrative
// operations on happenings.
package service

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// ErrInvalidInput is returned when an administrative request fails
// validation. The wrapped message names the offending field.
var ErrInvalidInput = errors.New("invalid input")

// Notifier delivers registrant and organizer notifications. Calls are
// best-effort: a failure is logged by the caller and never changes the
// outcome of the operation that triggered it.
type Notifier interface {
	// SendConfirmation tells a registrant they got a spot, or their wait
	// list position when waitListPosition is non-nil.
	SendConfirmation(ctx context.Context, sub model.Submission, slug string, waitListPosition *int) error
	// SendRegistrationsLink gives the organizer the capability link for
	// reading the registration list.
	SendRegistrationsLink(ctx context.Context, h model.Happening) error
}
