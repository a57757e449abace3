package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"flyrpro/config"
	"flyrpro/models"
	"flyrpro/services"
)

// CreateCheckout starts a Stripe Checkout session for a paid plan. The user
// id rides along as client_reference_id and subscription metadata so the
// webhook can route events back to this account.
func CreateCheckout(c *gin.Context) {
	// Feature Flag Check
	features := config.LoadFeatures()
	if !features.BillingEnabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "Billing not enabled"})
		return
	}

	userID, _ := c.Get("userID")
	var req struct {
		Plan string `json:"plan"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if !services.IsPaidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan. Must be 'pro' or 'team'."})
		return
	}

	billing := config.LoadBilling()
	priceID := billing.StripePricePro
	if req.Plan == models.PlanTeam {
		priceID = billing.StripePriceTeam
	}
	if billing.StripeSecretKey == "" || priceID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe not configured"})
		return
	}

	stripelib.Key = billing.StripeSecretKey
	params := &stripelib.CheckoutSessionParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripelib.String(userID.(string)),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(priceID),
				Quantity: stripelib.Int64(1),
			},
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID.(string)},
		},
		SuccessURL: stripelib.String(billing.CheckoutSuccessURL),
		CancelURL:  stripelib.String(billing.CheckoutCancelURL),
	}

	sess, err := stripesession.New(params)
	if err != nil {
		log.Error().Err(err).Str("plan", req.Plan).Msg("create checkout session")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout_url": sess.URL})
}
