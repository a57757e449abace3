package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"flyrpro/db"
	"flyrpro/models"
)

// WorkspacePatch is the derived subscription mirror written to a workspace.
// MaxSeats is only set when the subscription carried a line item; quantities
// below one clamp to a single seat.
type WorkspacePatch struct {
	Status      string
	TrialEndsAt *time.Time
	MaxSeats    *int
}

// MapStripeStatus converts a Stripe subscription status to the workspace
// mirror status. Unknown statuses fail closed (inactive); Stripe owns this
// state machine, so any status may replace any other.
func MapStripeStatus(status string) string {
	switch status {
	case "trialing":
		return models.WorkspaceTrialing
	case "active":
		return models.WorkspaceActive
	case "past_due", "unpaid":
		return models.WorkspacePastDue
	default:
		return models.WorkspaceInactive
	}
}

// ComputeWorkspacePatch derives the workspace mirror fields from a Stripe
// subscription snapshot.
func ComputeWorkspacePatch(sub StripeSubscription) WorkspacePatch {
	patch := WorkspacePatch{Status: MapStripeStatus(sub.Status)}

	if patch.Status == models.WorkspaceTrialing && sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0).UTC()
		patch.TrialEndsAt = &t
	}
	if len(sub.Items.Data) > 0 {
		seats := int(sub.FirstQuantity())
		if seats < 1 {
			seats = 1
		}
		patch.MaxSeats = &seats
	}
	return patch
}

// SyncWorkspaceSubscriptionFromStripe overwrites the subscription mirror on
// the user's primary workspace. A user without a workspace is a valid
// transient state (mid-onboarding) and is skipped, not an error.
func SyncWorkspaceSubscriptionFromStripe(userID string, sub StripeSubscription) error {
	workspaceID, err := ResolvePrimaryWorkspace(userID)
	if err != nil {
		return err
	}
	if workspaceID == "" {
		log.Info().Str("user_id", userID).Msg("workspace sync skipped: user has no workspace")
		return nil
	}

	patch := ComputeWorkspacePatch(sub)

	var prevStatus, ownerEmail string
	err = db.GetDB().QueryRow(`
		SELECT w.subscription_status, u.email
		FROM workspaces w JOIN users u ON u.id = w.owner_id
		WHERE w.id = $1
	`, workspaceID).Scan(&prevStatus, &ownerEmail)
	if err != nil {
		return fmt.Errorf("load workspace %s: %w", workspaceID, err)
	}

	if patch.MaxSeats != nil {
		_, err = db.GetDB().Exec(`
			UPDATE workspaces
			SET subscription_status = $1, trial_ends_at = $2, max_seats = $3, updated_at = NOW()
			WHERE id = $4
		`, patch.Status, patch.TrialEndsAt, *patch.MaxSeats, workspaceID)
	} else {
		_, err = db.GetDB().Exec(`
			UPDATE workspaces
			SET subscription_status = $1, trial_ends_at = $2, updated_at = NOW()
			WHERE id = $3
		`, patch.Status, patch.TrialEndsAt, workspaceID)
	}
	if err != nil {
		return fmt.Errorf("sync workspace %s: %w", workspaceID, err)
	}

	// Best-effort: tell the owner when their workspace drops into dunning.
	if patch.Status == models.WorkspacePastDue && prevStatus != models.WorkspacePastDue {
		go SendPaymentFailedEmail(ownerEmail)
	}

	return nil
}

// ResolvePrimaryWorkspace returns the workspace the user owns (earliest
// created), falling back to the workspace of their earliest membership.
// Returns "" when the user belongs to no workspace at all.
func ResolvePrimaryWorkspace(userID string) (string, error) {
	var id string
	err := db.GetDB().QueryRow(`
		SELECT id FROM workspaces WHERE owner_id = $1
		ORDER BY created_at ASC LIMIT 1
	`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolve owned workspace: %w", err)
	}

	err = db.GetDB().QueryRow(`
		SELECT workspace_id FROM workspace_members WHERE user_id = $1
		ORDER BY created_at ASC LIMIT 1
	`, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve workspace membership: %w", err)
	}
	return id, nil
}
