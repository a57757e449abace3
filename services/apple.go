package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"flyrpro/config"
	"flyrpro/metrics"
	"flyrpro/models"
)

// Overridable so tests can point at a local server.
var (
	appleProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	appleSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
)

const (
	appleStatusOK = 0
	// Apple returns 21007 when a sandbox receipt is sent to production;
	// the documented flow is to retry against the sandbox endpoint.
	appleStatusSandboxReceipt = 21007
)

type appleVerifyRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

// AppleReceiptInfo is the slice of a verifyReceipt response we consume.
type AppleReceiptInfo struct {
	ProductID             string `json:"product_id"`
	ExpiresDateMS         string `json:"expires_date_ms"`
	OriginalTransactionID string `json:"original_transaction_id"`
}

type appleVerifyResponse struct {
	Status            int                `json:"status"`
	LatestReceiptInfo []AppleReceiptInfo `json:"latest_receipt_info"`
}

// ExpiresAt converts Apple's millisecond-epoch string into a time. Returns a
// zero time when the field is missing or malformed.
func (i AppleReceiptInfo) ExpiresAt() time.Time {
	ms, err := strconv.ParseInt(i.ExpiresDateMS, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// VerifyAppleReceipt validates a base64 receipt against Apple, retrying
// against the sandbox endpoint for sandbox receipts, and returns the
// transaction with the latest expiry.
func VerifyAppleReceipt(receiptData, sharedSecret string) (*AppleReceiptInfo, error) {
	resp, err := postAppleVerify(appleProductionURL, receiptData, sharedSecret)
	if err != nil {
		return nil, err
	}
	if resp.Status == appleStatusSandboxReceipt {
		resp, err = postAppleVerify(appleSandboxURL, receiptData, sharedSecret)
		if err != nil {
			return nil, err
		}
	}
	if resp.Status != appleStatusOK {
		return nil, fmt.Errorf("apple receipt rejected: status %d", resp.Status)
	}
	if len(resp.LatestReceiptInfo) == 0 {
		return nil, fmt.Errorf("apple receipt has no transactions")
	}

	latest := resp.LatestReceiptInfo[0]
	for _, info := range resp.LatestReceiptInfo[1:] {
		if info.ExpiresAt().After(latest.ExpiresAt()) {
			latest = info
		}
	}
	return &latest, nil
}

func postAppleVerify(url, receiptData, sharedSecret string) (*appleVerifyResponse, error) {
	payload, err := json.Marshal(appleVerifyRequest{
		ReceiptData:            receiptData,
		Password:               sharedSecret,
		ExcludeOldTransactions: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal verifyReceipt request: %w", err)
	}

	httpResp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("call verifyReceipt: %w", err)
	}
	defer httpResp.Body.Close()

	var resp appleVerifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode verifyReceipt response: %w", err)
	}
	return &resp, nil
}

// BuildAppleUpdate translates a validated receipt transaction into the common
// entitlement update shape. An expired receipt yields an inactive update,
// which the merge policy may still drop in favour of a live Stripe grant.
func BuildAppleUpdate(info AppleReceiptInfo, billing config.Billing, now time.Time) EntitlementUpdate {
	expiry := info.ExpiresAt()
	isActive := !expiry.IsZero() && expiry.After(now)

	update := EntitlementUpdate{
		Source:   models.SourceApple,
		IsActive: &isActive,
	}
	if plan := billing.PlanForAppleProduct(info.ProductID); plan != "" {
		update.Plan = &plan
	}
	if !expiry.IsZero() {
		update.CurrentPeriodEnd = &expiry
	}
	return update
}

// ApplyAppleReceipt verifies a client-submitted receipt and routes it through
// the merge policy. Returns the entitlement as stored after the merge so the
// mobile client sees the resolved state, not just its own purchase.
func ApplyAppleReceipt(userID, receiptData string, billing config.Billing) (models.Entitlement, error) {
	info, err := VerifyAppleReceipt(receiptData, billing.AppleSharedSecret)
	if err != nil {
		return models.Entitlement{}, err
	}

	existing, err := GetEntitlementForUser(userID)
	if err != nil {
		return models.Entitlement{}, err
	}

	update := BuildAppleUpdate(*info, billing, time.Now())
	patch := MergeEntitlementUpdate(existing, update, time.Now())
	if patch.IsEmpty() {
		metrics.EntitlementMergesTotal.WithLabelValues(models.SourceApple, "rejected").Inc()
		log.Info().
			Str("user_id", userID).
			Str("product_id", info.ProductID).
			Msg("apple update dropped by merge policy")
		return existing, nil
	}

	if err := ApplyEntitlementPatch(userID, patch); err != nil {
		return models.Entitlement{}, err
	}
	metrics.EntitlementMergesTotal.WithLabelValues(models.SourceApple, "applied").Inc()
	go NotifySubscriptionChange(userID, models.SourceApple, "purchase_confirmed")

	return GetEntitlementForUser(userID)
}
