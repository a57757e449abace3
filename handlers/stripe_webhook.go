package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"flyrpro/config"
	"flyrpro/db"
	"flyrpro/metrics"
	"flyrpro/services"
)

const stripeWebhookBodyLimit = 1024 * 1024 // 1 MiB

// stripeCheckoutSession is the slice of a checkout.session.completed payload
// we consume. client_reference_id carries our user id through checkout.
type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// StripeWebhook verifies the delivery signature and dispatches the event.
// Signature verification is the authentication mechanism for this endpoint.
func StripeWebhook(c *gin.Context) {
	start := time.Now()
	eventType := "unknown"
	outcome := "ok"
	defer func() {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	billing := config.LoadBilling()
	if strings.TrimSpace(billing.StripeWebhookSecret) == "" {
		outcome = "unconfigured"
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook secret not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, stripeWebhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		outcome = "bad_body"
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, billing.StripeWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		outcome = "invalid_signature"
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Stripe signature"})
		return
	}
	eventType = string(event.Type)

	if err := handleStripeEvent(&event, billing); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID).
			Str("type", eventType).
			Msg("stripe webhook processing failed")
		outcome = "failed"
		// Non-2xx makes Stripe redeliver; eventual consistency rides on that.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func handleStripeEvent(event *stripelib.Event, billing config.Billing) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return handleCheckoutCompleted(session)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub services.StripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}

		userID, err := resolveUserForSubscription(sub)
		if err != nil {
			return err
		}
		return services.ApplyStripeSubscriptionUpdate(userID, sub, billing)

	default:
		log.Info().
			Str("type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("stripe webhook ignored (unhandled type)")
		return nil
	}
}

// handleCheckoutCompleted seeds the customer id onto the entitlement so later
// subscription events can be routed to the user. Identifiers are not
// contested fields, so this bypasses the merge policy on purpose.
func handleCheckoutCompleted(session stripeCheckoutSession) error {
	userID := strings.TrimSpace(session.ClientReferenceID)
	if userID == "" {
		userID = strings.TrimSpace(session.Metadata["user_id"])
	}
	if userID == "" {
		log.Warn().Str("session", session.ID).Msg("checkout completed without user reference")
		return nil
	}

	// Ensure the row exists before patching it.
	if _, err := services.GetEntitlementForUser(userID); err != nil {
		return err
	}

	patch := services.EntitlementUpdate{}
	if customer := strings.TrimSpace(session.Customer); customer != "" {
		patch.StripeCustomerID = &customer
	}
	if subID := strings.TrimSpace(session.Subscription); subID != "" {
		patch.StripeSubscriptionID = &subID
	}
	return services.ApplyEntitlementPatch(userID, patch)
}

// resolveUserForSubscription maps a subscription event to a user: the
// customer id recorded at checkout time, else the metadata stamped on the
// subscription. Failing both is an error so Stripe retries until the
// checkout.session.completed event has seeded the mapping.
func resolveUserForSubscription(sub services.StripeSubscription) (string, error) {
	customerID := strings.TrimSpace(sub.Customer)
	if customerID != "" {
		var userID string
		err := db.GetDB().QueryRow(
			`SELECT user_id FROM entitlements WHERE stripe_customer_id = $1`,
			customerID,
		).Scan(&userID)
		if err == nil {
			return userID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("lookup customer %s: %w", customerID, err)
		}
	}

	if userID := strings.TrimSpace(sub.Metadata["user_id"]); userID != "" {
		return userID, nil
	}
	return "", fmt.Errorf("no user mapping for customer %q", customerID)
}
