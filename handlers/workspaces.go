package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flyrpro/db"
	"flyrpro/models"
	"flyrpro/services"
)

func CreateWorkspace(c *gin.Context) {
	userID, _ := c.Get("userID")
	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workspace name is required"})
		return
	}

	inviteCode := uuid.NewString()

	var ws models.Workspace
	err := db.GetDB().QueryRow(`
		INSERT INTO workspaces (owner_id, name, invite_code)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, name, invite_code, subscription_status, trial_ends_at, max_seats, created_at, updated_at
	`, userID, req.Name, inviteCode).Scan(
		&ws.ID, &ws.OwnerID, &ws.Name, &ws.InviteCode,
		&ws.SubscriptionStatus, &ws.TrialEndsAt, &ws.MaxSeats, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// Owner is also a member; propagation and seat counting rely on it.
	_, err = db.GetDB().Exec(`
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, 'owner')
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, ws.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, ws)
}

// GetMyWorkspace returns the caller's primary workspace with its subscription
// mirror. The frontend gates the team dashboard on dashboard_access.
func GetMyWorkspace(c *gin.Context) {
	userID, _ := c.Get("userID")

	workspaceID, err := services.ResolvePrimaryWorkspace(userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if workspaceID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No workspace yet"})
		return
	}

	ws, err := loadWorkspace(workspaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workspace": ws,
		"dashboard_access": ws.SubscriptionStatus == models.WorkspaceActive ||
			ws.SubscriptionStatus == models.WorkspaceTrialing,
	})
}

func JoinWorkspace(c *gin.Context) {
	userID, _ := c.Get("userID")
	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invite code is required"})
		return
	}

	var ws models.Workspace
	err := db.GetDB().QueryRow(`
		SELECT id, name, subscription_status, max_seats FROM workspaces WHERE invite_code = $1
	`, req.InviteCode).Scan(&ws.ID, &ws.Name, &ws.SubscriptionStatus, &ws.MaxSeats)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// The seat check and the insert happen in one statement so concurrent
	// joins cannot overshoot max_seats.
	res, err := db.GetDB().Exec(`
		INSERT INTO workspace_members (workspace_id, user_id)
		SELECT $1, $2
		WHERE (SELECT COUNT(*) FROM workspace_members WHERE workspace_id = $1) < $3
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, ws.ID, userID, ws.MaxSeats)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		// Zero rows means either the caller already holds a seat or the
		// workspace is full.
		var alreadyMember bool
		if err := db.GetDB().QueryRow(
			`SELECT EXISTS (SELECT 1 FROM workspace_members WHERE workspace_id = $1 AND user_id = $2)`,
			ws.ID, userID,
		).Scan(&alreadyMember); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if !alreadyMember {
			c.JSON(http.StatusForbidden, gin.H{"error": "Workspace has no free seats"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Joined workspace", "workspace_id": ws.ID})
}

func loadWorkspace(id string) (models.Workspace, error) {
	var ws models.Workspace
	err := db.GetDB().QueryRow(`
		SELECT id, owner_id, name, invite_code, subscription_status, trial_ends_at, max_seats, created_at, updated_at
		FROM workspaces WHERE id = $1
	`, id).Scan(
		&ws.ID, &ws.OwnerID, &ws.Name, &ws.InviteCode,
		&ws.SubscriptionStatus, &ws.TrialEndsAt, &ws.MaxSeats, &ws.CreatedAt, &ws.UpdatedAt,
	)
	return ws, err
}
