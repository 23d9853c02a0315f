// Package notify delivers registration notifications. The API publishes
// messages to RabbitMQ and a separate worker turns them into email.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// Kind identifies what a Message asks the worker to send.
type Kind string

const (
	KindConfirmation      Kind = "registration.confirmation"
	KindRegistrationsLink Kind = "happening.registrations_link"
)

// Message is the queued description of one email.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`

	// Confirmation fields.
	FirstName        string `json:"firstName,omitempty"`
	WaitListPosition *int   `json:"waitListPosition,omitempty"`

	// Registrations link fields.
	Title             string `json:"title,omitempty"`
	RegistrationsLink string `json:"registrationsLink,omitempty"`
}

// NewConfirmation builds the message confirming a submission. A non-nil
// position means the registrant is on the wait list.
func NewConfirmation(sub model.Submission, slug string, position *int) Message {
	return Message{
		ID:               uuid.NewString(),
		Kind:             KindConfirmation,
		To:               model.NormalizeEmail(sub.Email),
		Slug:             slug,
		CreatedAt:        time.Now().UTC(),
		FirstName:        sub.FirstName,
		WaitListPosition: position,
	}
}

// NewRegistrationsLink builds the message handing an organizer the link to
// their happening's registration list.
func NewRegistrationsLink(h model.Happening) Message {
	return Message{
		ID:                uuid.NewString(),
		Kind:              KindRegistrationsLink,
		To:                h.OrganizerEmail,
		Slug:              h.Slug,
		CreatedAt:         time.Now().UTC(),
		Title:             h.Title,
		RegistrationsLink: h.RegistrationsLink,
	}
}
