package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"flyrpro/db"
	"flyrpro/models"
)

// EntitlementUpdate is a sparse patch against an entitlement row. Nil fields
// are left untouched, which is what keeps provider identifiers sticky: an
// Apple update simply never mentions the Stripe ids.
type EntitlementUpdate struct {
	Plan                 *string
	IsActive             *bool
	Source               string
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CurrentPeriodEnd     *time.Time
}

// IsEmpty reports whether applying the update would change nothing.
// Callers must treat an empty patch as a successful no-op.
func (u EntitlementUpdate) IsEmpty() bool {
	return u.Plan == nil &&
		u.IsActive == nil &&
		u.Source == "" &&
		u.StripeCustomerID == nil &&
		u.StripeSubscriptionID == nil &&
		u.CurrentPeriodEnd == nil
}

// ActiveAt reports whether the update, taken alone, would grant access at the
// given time.
func (u EntitlementUpdate) ActiveAt(now time.Time) bool {
	return u.IsActive != nil && *u.IsActive &&
		u.CurrentPeriodEnd != nil && u.CurrentPeriodEnd.After(now)
}

// GetEntitlementForUser returns the user's entitlement, lazily creating the
// default row (free, inactive, no source) on first read. Losing the insert
// race is fine, the winner wrote the same defaults.
func GetEntitlementForUser(userID string) (models.Entitlement, error) {
	ent, err := scanEntitlement(userID)
	if err == nil {
		return ent, nil
	}
	if err != sql.ErrNoRows {
		return models.Entitlement{}, fmt.Errorf("load entitlement: %w", err)
	}

	_, err = db.GetDB().Exec(
		`INSERT INTO entitlements (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("create default entitlement: %w", err)
	}

	ent, err = scanEntitlement(userID)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("reload entitlement: %w", err)
	}
	return ent, nil
}

func scanEntitlement(userID string) (models.Entitlement, error) {
	var ent models.Entitlement
	err := db.GetDB().QueryRow(`
		SELECT user_id, plan, is_active, source,
		       stripe_customer_id, stripe_subscription_id,
		       current_period_end, updated_at
		FROM entitlements WHERE user_id = $1
	`, userID).Scan(
		&ent.UserID, &ent.Plan, &ent.IsActive, &ent.Source,
		&ent.StripeCustomerID, &ent.StripeSubscriptionID,
		&ent.CurrentPeriodEnd, &ent.UpdatedAt,
	)
	return ent, err
}

// MergeEntitlementUpdate reconciles an incoming provider update against the
// stored entitlement and returns the patch to apply. An empty patch means the
// update lost and nothing should be written.
func MergeEntitlementUpdate(existing models.Entitlement, update EntitlementUpdate, now time.Time) EntitlementUpdate {
	existingActive := existing.ActiveAt(now)
	incomingActive := update.ActiveAt(now)

	if isCrossProviderDowngrade(existing, update, existingActive, incomingActive) {
		return EntitlementUpdate{}
	}
	if isStaleAppleUpdate(existing, update, existingActive) {
		return EntitlementUpdate{}
	}
	if existingActive && incomingActive {
		// Both providers claim an active grant: the longer runway wins,
		// everything else the update says passes through.
		merged := update
		active := true
		merged.IsActive = &active
		end := laterTime(*existing.CurrentPeriodEnd, *update.CurrentPeriodEnd)
		merged.CurrentPeriodEnd = &end
		return merged
	}
	return update
}

// isCrossProviderDowngrade: a currently-active grant from one provider is
// never cancelled by an inactive signal from the other. Webhooks arrive out
// of order, and a transient Apple re-validation failure must not kill a live
// Stripe subscription (or vice versa).
func isCrossProviderDowngrade(existing models.Entitlement, update EntitlementUpdate, existingActive, incomingActive bool) bool {
	return existingActive && !incomingActive && isDifferentProvider(existing.Source, update.Source)
}

func isDifferentProvider(a, b string) bool {
	if a == b {
		return false
	}
	return (a == models.SourceStripe || a == models.SourceApple) &&
		(b == models.SourceStripe || b == models.SourceApple)
}

// isStaleAppleUpdate: Apple receipts are not authoritative for period
// extension. While a grant is active, an Apple update that does not push the
// period end strictly later is dropped. Stripe carries no such guard.
func isStaleAppleUpdate(existing models.Entitlement, update EntitlementUpdate, existingActive bool) bool {
	if !existingActive || update.Source != models.SourceApple {
		return false
	}
	if update.CurrentPeriodEnd == nil {
		return true
	}
	return !update.CurrentPeriodEnd.After(*existing.CurrentPeriodEnd)
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// ApplyEntitlementPatch writes a merged patch to the entitlement row.
// Empty patches are a no-op by contract.
func ApplyEntitlementPatch(userID string, patch EntitlementUpdate) error {
	if patch.IsEmpty() {
		return nil
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Plan != nil {
		add("plan", *patch.Plan)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.Source != "" {
		add("source", patch.Source)
	}
	if patch.StripeCustomerID != nil {
		add("stripe_customer_id", *patch.StripeCustomerID)
	}
	if patch.StripeSubscriptionID != nil {
		add("stripe_subscription_id", *patch.StripeSubscriptionID)
	}
	if patch.CurrentPeriodEnd != nil {
		add("current_period_end", *patch.CurrentPeriodEnd)
	}

	args = append(args, userID)
	query := fmt.Sprintf(
		"UPDATE entitlements SET %s WHERE user_id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	if _, err := db.GetDB().Exec(query, args...); err != nil {
		return fmt.Errorf("apply entitlement patch: %w", err)
	}
	return nil
}
