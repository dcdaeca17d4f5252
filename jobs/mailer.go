package jobs

import (
	"context"
	"fmt"

	"github.com/clubs-council/members-service/internal/certificates"
)

// MailEnqueuer adapts the jobs client to the certificate notification port.
type MailEnqueuer struct {
	client *Client
}

// NewMailEnqueuer constructs a MailEnqueuer.
func NewMailEnqueuer(client *Client) *MailEnqueuer {
	return &MailEnqueuer{client: client}
}

// SendCertificateUpdate enqueues a state-change email for the certificate
// owner.
func (m *MailEnqueuer) SendCertificateUpdate(ctx context.Context, uid, number string, state certificates.State) error {
	_, err := m.client.EnqueueSendEmail(ctx, SendEmailPayload{
		UID:     uid,
		Subject: fmt.Sprintf("Certificate %s: %s", number, state),
		Body:    fmt.Sprintf("Your membership certificate %s is now %s.", number, state),
	})
	return err
}
