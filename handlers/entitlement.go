package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"flyrpro/config"
	"flyrpro/models"
	"flyrpro/services"
)

// GetEntitlement serves the resolved entitlement to both clients: the web app
// authenticates with the session cookie, mobile with a bearer token. The
// middleware accepts either.
func GetEntitlement(c *gin.Context) {
	userID, _ := c.Get("userID")

	ent, err := services.GetEntitlementForUser(userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load entitlement"})
		return
	}

	c.JSON(http.StatusOK, entitlementResponse(ent, config.LoadBilling()))
}

func entitlementResponse(ent models.Entitlement, billing config.Billing) gin.H {
	// is_active is the effective flag, not the stored bit: a grant whose
	// period end has passed reads inactive even before the provider's
	// cancellation webhook clears the row.
	resp := gin.H{
		"plan":               ent.Plan,
		"is_active":          ent.ActiveAt(time.Now()),
		"source":             ent.Source,
		"current_period_end": ent.CurrentPeriodEnd,
	}
	// Free users get the price to upgrade to so clients can render the CTA
	// without hardcoding price ids.
	if ent.Plan == models.PlanFree && billing.StripePricePro != "" {
		resp["upgrade_price_id"] = billing.StripePricePro
	}
	return resp
}
