package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyrpro/config"
	"flyrpro/models"
)

var testBilling = config.Billing{
	StripePricePro:  "price_pro",
	StripePriceTeam: "price_team",
	AppleProductPro: "com.flyrpro.pro.monthly",
}

func TestBuildStripeUpdateActiveSubscription(t *testing.T) {
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	sub := subWithItems("active", 1, "price_pro")
	sub.CurrentPeriodEnd = periodEnd.Unix()

	update := BuildStripeUpdate(sub, testBilling)

	assert.Equal(t, models.SourceStripe, update.Source)
	require.NotNil(t, update.IsActive)
	assert.True(t, *update.IsActive)
	require.NotNil(t, update.Plan)
	assert.Equal(t, models.PlanPro, *update.Plan)
	require.NotNil(t, update.CurrentPeriodEnd)
	assert.True(t, update.CurrentPeriodEnd.Equal(periodEnd))
	require.NotNil(t, update.StripeCustomerID)
	assert.Equal(t, "cus_123", *update.StripeCustomerID)
	require.NotNil(t, update.StripeSubscriptionID)
	assert.Equal(t, "sub_123", *update.StripeSubscriptionID)
}

func TestBuildStripeUpdateTrialingIsActive(t *testing.T) {
	update := BuildStripeUpdate(subWithItems("trialing", 1, "price_team"), testBilling)

	require.NotNil(t, update.IsActive)
	assert.True(t, *update.IsActive)
	require.NotNil(t, update.Plan)
	assert.Equal(t, models.PlanTeam, *update.Plan)
}

func TestBuildStripeUpdateUnknownPriceKeepsPlan(t *testing.T) {
	// Unknown prices leave Plan nil so the merge never regresses the
	// stored plan to free.
	update := BuildStripeUpdate(subWithItems("active", 1, "price_legacy_2023"), testBilling)
	assert.Nil(t, update.Plan)
}

func TestBuildStripeUpdateInactiveStatuses(t *testing.T) {
	for _, status := range []string{"canceled", "past_due", "unpaid", "incomplete"} {
		update := BuildStripeUpdate(subWithItems(status, 1, "price_pro"), testBilling)
		require.NotNil(t, update.IsActive, "status %q", status)
		assert.False(t, *update.IsActive, "status %q", status)
	}
}

func TestBuildStripeUpdateMissingPeriodEnd(t *testing.T) {
	update := BuildStripeUpdate(subWithItems("active", 1, "price_pro"), testBilling)
	assert.Nil(t, update.CurrentPeriodEnd)
}

func TestFirstPriceIDAndQuantity(t *testing.T) {
	sub := subWithItems("active", 7, "price_team")
	assert.Equal(t, "price_team", sub.FirstPriceID())
	assert.Equal(t, int64(7), sub.FirstQuantity())

	empty := StripeSubscription{}
	assert.Equal(t, "", empty.FirstPriceID())
	assert.Equal(t, int64(0), empty.FirstQuantity())
}

func TestIsActiveStatus(t *testing.T) {
	assert.True(t, IsActiveStatus("active"))
	assert.True(t, IsActiveStatus("trialing"))
	assert.False(t, IsActiveStatus("past_due"))
	assert.False(t, IsActiveStatus("canceled"))
	assert.False(t, IsActiveStatus(""))
}
