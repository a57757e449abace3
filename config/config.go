package config

import (
	"os"
	"strings"
)

type Features struct {
	BillingEnabled      bool
	AppleBillingEnabled bool
}

func LoadFeatures() Features {
	return Features{
		BillingEnabled:      os.Getenv("BILLING_ENABLED") == "true",
		AppleBillingEnabled: os.Getenv("APPLE_BILLING_ENABLED") == "true",
	}
}

// Billing holds the provider configuration read from the environment.
type Billing struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	AppleSharedSecret   string

	// Price/product identifiers mapped to plan tiers. Unknown ids never
	// downgrade an existing plan.
	StripePricePro  string
	StripePriceTeam string
	AppleProductPro string

	CheckoutSuccessURL string
	CheckoutCancelURL  string
	ClientURL          string
}

func LoadBilling() Billing {
	return Billing{
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AppleSharedSecret:   os.Getenv("APPLE_SHARED_SECRET"),
		StripePricePro:      os.Getenv("STRIPE_PRICE_PRO"),
		StripePriceTeam:     os.Getenv("STRIPE_PRICE_TEAM"),
		AppleProductPro:     os.Getenv("APPLE_PRODUCT_PRO"),
		CheckoutSuccessURL:  withDefault(os.Getenv("CHECKOUT_SUCCESS_URL"), "http://localhost:3000/dashboard?upgraded=1"),
		CheckoutCancelURL:   withDefault(os.Getenv("CHECKOUT_CANCEL_URL"), "http://localhost:3000/pricing"),
		ClientURL:           withDefault(os.Getenv("CLIENT_URL"), "http://localhost:3000"),
	}
}

// PlanForStripePrice resolves a Stripe price id to a plan tier.
// Returns "" when the price is not recognised.
func (b Billing) PlanForStripePrice(priceID string) string {
	switch strings.TrimSpace(priceID) {
	case "":
		return ""
	case b.StripePricePro:
		return "pro"
	case b.StripePriceTeam:
		return "team"
	default:
		return ""
	}
}

// PlanForAppleProduct resolves an App Store product id to a plan tier.
// Mobile only sells the pro tier.
func (b Billing) PlanForAppleProduct(productID string) string {
	if productID != "" && productID == b.AppleProductPro {
		return "pro"
	}
	return ""
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
