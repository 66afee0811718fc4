package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/consentlab/takeout-agent/internal/models"
)

// Notifier sends processing notifications to the study team. Send
// failures propagate to the caller: losing a notification silently is a
// reportable condition.
type Notifier struct {
	mailer             Mailer
	from               string
	admins             []string
	participantSubject string
	digestSubject      string
}

func NewNotifier(mailer Mailer, from string, admins []string, participantSubject, digestSubject string) *Notifier {
	return &Notifier{
		mailer:             mailer,
		from:               from,
		admins:             admins,
		participantSubject: participantSubject,
		digestSubject:      digestSubject,
	}
}

// NotifyProcessed mails the consent's log trail to the study team once
// processing reaches a terminal outcome.
func (n *Notifier) NotifyProcessed(ctx context.Context, consent *models.Consent, logs []models.LogEntry) error {
	body, err := RenderParticipant(consent, logs)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, n.from, n.admins, n.participantSubject, body)
}

// SendDigest mails the daily summary. The subject may carry a "{today}"
// placeholder which is replaced with the digest date.
func (n *Notifier) SendDigest(ctx context.Context, d Digest) error {
	body, err := RenderDigest(d)
	if err != nil {
		return err
	}

	subject := n.digestSubject
	if strings.Contains(subject, "{today}") {
		subject = strings.ReplaceAll(subject, "{today}", d.Today)
	} else {
		subject = fmt.Sprintf("%s %s", subject, d.Today)
	}
	return n.mailer.Send(ctx, n.from, n.admins, subject, body)
}
