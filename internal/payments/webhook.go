package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/store"
)

// SignatureTolerance bounds how old a webhook timestamp may be. Matches
// Stripe's recommended replay window.
const SignatureTolerance = 5 * time.Minute

// ErrBadSignature is returned for webhooks that fail verification.
var ErrBadSignature = fmt.Errorf("payments: invalid webhook signature")

// VerifySignature checks a Stripe-Signature header ("t=...,v1=...") against
// the payload using HMAC-SHA256 over "<t>.<payload>".
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if timestamp == "" || len(sigs) == 0 {
		return ErrBadSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrBadSignature
}

// webhookEvent is the envelope of a Stripe event.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Fulfiller completes verified purchases against the inventory.
type Fulfiller struct {
	inventory store.InventoryStore
}

// NewFulfiller creates a webhook fulfiller.
func NewFulfiller(inventory store.InventoryStore) *Fulfiller {
	return &Fulfiller{inventory: inventory}
}

// HandleEvent processes one verified webhook payload. Only completed
// checkout sessions are acted on; granting is idempotent so Stripe retries
// are safe.
func (f *Fulfiller) HandleEvent(ctx context.Context, payload []byte) error {
	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("payments: decode event: %w", err)
	}
	if ev.Type != "checkout.session.completed" {
		return nil
	}

	meta := ev.Data.Object.Metadata
	userID, err := uuid.Parse(meta["user_id"])
	if err != nil {
		return fmt.Errorf("payments: event %s: bad user_id metadata", ev.Data.Object.ID)
	}
	itemID, err := uuid.Parse(meta["item_id"])
	if err != nil {
		return fmt.Errorf("payments: event %s: bad item_id metadata", ev.Data.Object.ID)
	}

	if err := f.inventory.Grant(ctx, userID, itemID); err != nil {
		return fmt.Errorf("payments: grant item %s to %s: %w", itemID, userID, err)
	}
	log.Printf("💰 Purchase fulfilled: item %s for user %s", itemID, userID)
	return nil
}
