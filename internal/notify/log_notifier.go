package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// LogNotifier records notifications in the log instead of sending them.
// It is used when no broker is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) SendConfirmation(_ context.Context, sub model.Submission, slug string, position *int) error {
	ev := n.log.Info().Str("slug", slug).Str("email", model.NormalizeEmail(sub.Email))
	if position != nil {
		ev = ev.Int("wait_list_position", *position)
	}
	ev.Msg("confirmation not sent, messaging disabled")
	return nil
}

func (n *LogNotifier) SendRegistrationsLink(_ context.Context, h model.Happening) error {
	n.log.Info().Str("slug", h.Slug).Str("email", h.OrganizerEmail).
		Msg("registrations link not sent, messaging disabled")
	return nil
}
