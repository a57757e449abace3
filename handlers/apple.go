package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"flyrpro/config"
	"flyrpro/services"
)

// ConfirmApplePurchase handles the mobile client's post-purchase receipt
// submission. The receipt is validated with Apple and the result goes through
// the same merge policy as Stripe webhooks.
func ConfirmApplePurchase(c *gin.Context) {
	features := config.LoadFeatures()
	if !features.AppleBillingEnabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "Apple billing not enabled"})
		return
	}

	userID, _ := c.Get("userID")
	var req struct {
		ReceiptData string `json:"receipt_data" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	billing := config.LoadBilling()
	ent, err := services.ApplyAppleReceipt(userID.(string), req.ReceiptData, billing)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.(string)).Msg("apple receipt confirmation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Receipt validation failed"})
		return
	}

	c.JSON(http.StatusOK, entitlementResponse(ent, billing))
}
