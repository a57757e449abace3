package models

import (
	"time"
)

// Plan tiers.
const (
	PlanFree = "free"
	PlanPro  = "pro"
	PlanTeam = "team"
)

// Entitlement sources.
const (
	SourceNone   = "none"
	SourceStripe = "stripe"
	SourceApple  = "apple"
)

// Workspace subscription statuses (mirror of the latest Stripe state).
const (
	WorkspaceInactive = "inactive"
	WorkspaceTrialing = "trialing"
	WorkspaceActive   = "active"
	WorkspacePastDue  = "past_due"
)

type Entitlement struct {
	UserID               string     `json:"user_id"`
	Plan                 string     `json:"plan"`
	IsActive             bool       `json:"is_active"`
	Source               string     `json:"source"`
	StripeCustomerID     *string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the entitlement grants access at the given time.
// An active flag without a future period end does not count.
func (e Entitlement) ActiveAt(now time.Time) bool {
	return e.IsActive && e.CurrentPeriodEnd != nil && e.CurrentPeriodEnd.After(now)
}

type Workspace struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"owner_id"`
	Name               string     `json:"name"`
	InviteCode         string     `json:"invite_code"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	MaxSeats           int        `json:"max_seats"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type WorkspaceMember struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}
