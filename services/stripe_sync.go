package services

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"flyrpro/config"
	"flyrpro/metrics"
	"flyrpro/models"
)

// StripeSubscription is a minimal representation of a Stripe subscription
// webhook payload. Decoding into our own struct keeps us independent of SDK
// API-version churn; only the consumed fields are declared.
type StripeSubscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	TrialEnd          int64             `json:"trial_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			Quantity int64 `json:"quantity"`
			Price    struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// FirstPriceID returns the price id from the first subscription item.
func (s *StripeSubscription) FirstPriceID() string {
	for _, item := range s.Items.Data {
		if priceID := strings.TrimSpace(item.Price.ID); priceID != "" {
			return priceID
		}
	}
	return ""
}

// FirstQuantity returns the quantity of the first subscription item, 0 when
// the subscription has no items.
func (s *StripeSubscription) FirstQuantity() int64 {
	if len(s.Items.Data) == 0 {
		return 0
	}
	return s.Items.Data[0].Quantity
}

// IsActiveStatus reports whether a Stripe status grants entitlement access.
func IsActiveStatus(status string) bool {
	return status == "active" || status == "trialing"
}

// BuildStripeUpdate translates a Stripe subscription snapshot into the common
// entitlement update shape. An unresolvable price id leaves Plan nil so the
// existing plan survives the merge (never regress to free on unknown prices).
func BuildStripeUpdate(sub StripeSubscription, billing config.Billing) EntitlementUpdate {
	isActive := IsActiveStatus(sub.Status)
	update := EntitlementUpdate{
		Source:   models.SourceStripe,
		IsActive: &isActive,
	}

	if plan := billing.PlanForStripePrice(sub.FirstPriceID()); plan != "" {
		update.Plan = &plan
	}
	if customer := strings.TrimSpace(sub.Customer); customer != "" {
		update.StripeCustomerID = &customer
	}
	if id := strings.TrimSpace(sub.ID); id != "" {
		update.StripeSubscriptionID = &id
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		update.CurrentPeriodEnd = &end
	}
	return update
}

// ApplyStripeSubscriptionUpdate routes a Stripe subscription snapshot through
// the merge policy and mirrors the raw status onto the user's workspace. The
// workspace mirror is written even when the entitlement merge rejects the
// update: workspace state follows Stripe alone and is not contested between
// providers.
func ApplyStripeSubscriptionUpdate(userID string, sub StripeSubscription, billing config.Billing) error {
	existing, err := GetEntitlementForUser(userID)
	if err != nil {
		return err
	}

	update := BuildStripeUpdate(sub, billing)
	patch := MergeEntitlementUpdate(existing, update, time.Now())
	if patch.IsEmpty() {
		metrics.EntitlementMergesTotal.WithLabelValues(models.SourceStripe, "rejected").Inc()
		log.Info().
			Str("user_id", userID).
			Str("subscription", sub.ID).
			Str("status", sub.Status).
			Msg("stripe update dropped by merge policy")
	} else {
		metrics.EntitlementMergesTotal.WithLabelValues(models.SourceStripe, "applied").Inc()
		if err := ApplyEntitlementPatch(userID, patch); err != nil {
			return err
		}
		go NotifySubscriptionChange(userID, models.SourceStripe, sub.Status)
	}

	return SyncWorkspaceSubscriptionFromStripe(userID, sub)
}
