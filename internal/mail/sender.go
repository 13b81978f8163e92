package mail

import "log/slog"

type Message struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
	IsHTML  bool
}

// MailSender is an external collaborator; delivery is fire-and-forget from
// the caller's point of view.
type MailSender interface {
	Send(message *Message) error
}

// NullSender drops messages, used when no mail backend is configured.
type NullSender struct{}

func (NullSender) Send(message *Message) error {
	slog.Debug("No mail backend configured, dropping message", "subject", message.Subject)
	return nil
}
