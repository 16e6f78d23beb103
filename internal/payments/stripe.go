// Package payments integrates Stripe Checkout for cosmetic purchases:
// creating checkout sessions and fulfilling them from signed webhook events.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/config"
	"shipwars/internal/store"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeClient calls the Stripe REST API with a secret key.
type StripeClient struct {
	cfg  config.StripeConfig
	http *http.Client
}

// NewStripeClient creates a Stripe client from configuration.
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckoutSession is the subset of Stripe's session object we use.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession opens a payment session for one item. The user and
// item ids ride along as metadata so the webhook can fulfill the purchase.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, item store.Item) (CheckoutSession, error) {
	if item.StripePriceID == "" {
		return CheckoutSession{}, fmt.Errorf("payments: item %s has no price", item.ID)
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", item.StripePriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.cfg.SuccessURL)
	form.Set("cancel_url", c.cfg.CancelURL)
	form.Set("metadata[user_id]", userID.String())
	form.Set("metadata[item_id]", item.ID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		stripeAPIBase+"/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return CheckoutSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payments: create session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CheckoutSession{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return CheckoutSession{}, fmt.Errorf("payments: stripe status %d: %s", resp.StatusCode, body)
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("payments: decode session: %w", err)
	}
	return session, nil
}
