package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyrpro/models"
)

func msString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func appleServer(t *testing.T, status int, infos []AppleReceiptInfo) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req appleVerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.ReceiptData)

		resp := appleVerifyResponse{Status: status, LatestReceiptInfo: infos}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestVerifyAppleReceiptPicksLatestTransaction(t *testing.T) {
	now := time.Now()
	infos := []AppleReceiptInfo{
		{ProductID: "com.flyrpro.pro.monthly", ExpiresDateMS: msString(now.Add(24 * time.Hour)), OriginalTransactionID: "txn_1"},
		{ProductID: "com.flyrpro.pro.monthly", ExpiresDateMS: msString(now.Add(30 * 24 * time.Hour)), OriginalTransactionID: "txn_2"},
		{ProductID: "com.flyrpro.pro.monthly", ExpiresDateMS: msString(now.Add(-24 * time.Hour)), OriginalTransactionID: "txn_0"},
	}

	srv := appleServer(t, appleStatusOK, infos)
	defer srv.Close()
	prev := appleProductionURL
	appleProductionURL = srv.URL
	defer func() { appleProductionURL = prev }()

	latest, err := VerifyAppleReceipt("cmVjZWlwdA==", "secret")
	require.NoError(t, err)
	assert.Equal(t, "txn_2", latest.OriginalTransactionID)
}

func TestVerifyAppleReceiptSandboxFallback(t *testing.T) {
	now := time.Now()
	sandbox := appleServer(t, appleStatusOK, []AppleReceiptInfo{
		{ProductID: "com.flyrpro.pro.monthly", ExpiresDateMS: msString(now.Add(24 * time.Hour)), OriginalTransactionID: "txn_sandbox"},
	})
	defer sandbox.Close()
	production := appleServer(t, appleStatusSandboxReceipt, nil)
	defer production.Close()

	prevProd, prevSandbox := appleProductionURL, appleSandboxURL
	appleProductionURL = production.URL
	appleSandboxURL = sandbox.URL
	defer func() {
		appleProductionURL = prevProd
		appleSandboxURL = prevSandbox
	}()

	latest, err := VerifyAppleReceipt("cmVjZWlwdA==", "secret")
	require.NoError(t, err)
	assert.Equal(t, "txn_sandbox", latest.OriginalTransactionID)
}

func TestVerifyAppleReceiptRejectedStatus(t *testing.T) {
	srv := appleServer(t, 21003, nil) // receipt could not be authenticated
	defer srv.Close()
	prev := appleProductionURL
	appleProductionURL = srv.URL
	defer func() { appleProductionURL = prev }()

	_, err := VerifyAppleReceipt("cmVjZWlwdA==", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21003")
}

func TestVerifyAppleReceiptEmptyTransactions(t *testing.T) {
	srv := appleServer(t, appleStatusOK, nil)
	defer srv.Close()
	prev := appleProductionURL
	appleProductionURL = srv.URL
	defer func() { appleProductionURL = prev }()

	_, err := VerifyAppleReceipt("cmVjZWlwdA==", "secret")
	require.Error(t, err)
}

func TestBuildAppleUpdateActiveReceipt(t *testing.T) {
	now := time.Now()
	expiry := now.Add(30 * 24 * time.Hour)
	info := AppleReceiptInfo{
		ProductID:     "com.flyrpro.pro.monthly",
		ExpiresDateMS: msString(expiry),
	}

	update := BuildAppleUpdate(info, testBilling, now)

	assert.Equal(t, models.SourceApple, update.Source)
	require.NotNil(t, update.IsActive)
	assert.True(t, *update.IsActive)
	require.NotNil(t, update.Plan)
	assert.Equal(t, models.PlanPro, *update.Plan)
	require.NotNil(t, update.CurrentPeriodEnd)
	assert.Nil(t, update.StripeCustomerID, "apple updates never touch stripe identifiers")
	assert.Nil(t, update.StripeSubscriptionID)
}

func TestBuildAppleUpdateExpiredReceipt(t *testing.T) {
	now := time.Now()
	info := AppleReceiptInfo{
		ProductID:     "com.flyrpro.pro.monthly",
		ExpiresDateMS: msString(now.Add(-time.Hour)),
	}

	update := BuildAppleUpdate(info, testBilling, now)

	require.NotNil(t, update.IsActive)
	assert.False(t, *update.IsActive)
}

func TestBuildAppleUpdateUnknownProductKeepsPlan(t *testing.T) {
	now := time.Now()
	info := AppleReceiptInfo{
		ProductID:     "com.flyrpro.discontinued",
		ExpiresDateMS: msString(now.Add(time.Hour)),
	}

	update := BuildAppleUpdate(info, testBilling, now)
	assert.Nil(t, update.Plan)
}

func TestAppleReceiptInfoExpiresAt(t *testing.T) {
	assert.True(t, AppleReceiptInfo{}.ExpiresAt().IsZero())
	assert.True(t, AppleReceiptInfo{ExpiresDateMS: "not-a-number"}.ExpiresAt().IsZero())

	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := AppleReceiptInfo{ExpiresDateMS: msString(want)}.ExpiresAt()
	assert.True(t, got.Equal(want))
}
