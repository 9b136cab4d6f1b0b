package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/types"
)

// Event is one payment status notification from the provider, either pulled
// by the reconciliation worker or pushed through the webhook.
type Event struct {
	PaymentID string            `json:"payment_id"`
	Status    string            `json:"status"`
	Amount    types.FlexDecimal `json:"amount,omitempty"`
}

// Client polls the payment provider for settlement status.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a provider client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchStatus retrieves the current status of the payment with the given
// external reference.
func (c *Client) FetchStatus(ctx context.Context, paymentID string) (Event, error) {
	url := fmt.Sprintf("%s/api/payments/%s", c.baseURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Event{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Event{}, fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Event{}, fmt.Errorf("payment %s unknown to provider", paymentID)
	}
	if resp.StatusCode != http.StatusOK {
		return Event{}, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Event{}, err
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, fmt.Errorf("failed to decode provider response: %w", err)
	}
	if event.PaymentID == "" {
		event.PaymentID = paymentID
	}

	return event, nil
}

// MapStatus normalizes a provider status string onto the ledger status set.
// Unknown statuses map to pending so an unrecognized event never forces an
// illegal transition.
func MapStatus(providerStatus string) string {
	switch providerStatus {
	case "confirmed", "succeeded", "completed", "paid":
		return models.DonationStatusCompleted
	case "failed", "declined", "expired", "canceled", "cancelled":
		return models.DonationStatusFailed
	case "refunded", "reversed":
		return models.DonationStatusRefunded
	default:
		return models.DonationStatusPending
	}
}
