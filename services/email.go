package services

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendPaymentFailedEmail tells a workspace owner their subscription has
// entered dunning. Email is best effort; the workspace row is the source of
// truth and was already updated by the caller.
func SendPaymentFailedEmail(ownerEmail string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("payment email panic recovered")
		}
	}()

	apiKey := os.Getenv("SENDGRID_API_KEY")
	fromEmail := os.Getenv("BILLING_FROM_EMAIL")
	if apiKey == "" || fromEmail == "" || ownerEmail == "" {
		log.Info().Msg("missing SendGrid config, skipping payment email")
		return
	}

	subject := "[Flyr Pro] Payment failed - action needed"
	body := `Your latest subscription payment did not go through.

Your workspace is now marked past due. Team dashboards stay available while
we retry the charge, but access will lapse if payment keeps failing.

Update your card from the billing page to restore your subscription.`

	from := mail.NewEmail("Flyr Pro", fromEmail)
	to := mail.NewEmail("Workspace owner", ownerEmail)
	message := mail.NewSingleEmail(from, subject, to, body, body)
	client := sendgrid.NewSendClient(apiKey)

	response, err := client.Send(message)
	if err != nil {
		log.Error().Err(err).Msg("send payment failed email")
	} else {
		log.Info().Int("status", response.StatusCode).Str("to", ownerEmail).Msg("payment failed email sent")
	}
}
