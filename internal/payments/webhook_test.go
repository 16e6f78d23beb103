package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/store"
)

const webhookSecret = "whsec_test"

// signPayload produces a Stripe-Signature header for the payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// TestVerifySignature covers the accept and reject paths of webhook
// signature checking.
func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	now := time.Now()

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{name: "valid", header: signPayload(payload, webhookSecret, now)},
		{name: "wrong secret", header: signPayload(payload, "whsec_other", now), wantErr: true},
		{name: "stale timestamp", header: signPayload(payload, webhookSecret, now.Add(-10*time.Minute)), wantErr: true},
		{name: "future timestamp", header: signPayload(payload, webhookSecret, now.Add(10*time.Minute)), wantErr: true},
		{name: "missing signature", header: "t=12345", wantErr: true},
		{name: "garbage", header: "nonsense", wantErr: true},
		{name: "empty", header: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, webhookSecret, now)
			if tt.wantErr && !errors.Is(err, ErrBadSignature) {
				t.Fatalf("err = %v, want ErrBadSignature", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("VerifySignature: %v", err)
			}
		})
	}
}

// TestVerifySignatureTamperedPayload verifies a body swap under a valid
// header is caught.
func TestVerifySignatureTamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":100}`)
	header := signPayload(payload, webhookSecret, time.Now())

	tampered := []byte(`{"amount":1}`)
	if err := VerifySignature(tampered, header, webhookSecret, time.Now()); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func checkoutEvent(eventType string, userID, itemID string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"data":{"object":{"id":"cs_test_1","metadata":{"user_id":%q,"item_id":%q}}}}`,
		eventType, userID, itemID))
}

// TestHandleEventGrants verifies a completed checkout grants the item and
// replays stay idempotent.
func TestHandleEventGrants(t *testing.T) {
	userID := uuid.New()
	item := store.Item{ID: uuid.New(), Name: "Corsair Hull", Kind: "ship_skin"}
	inv := store.NewMemInventory([]store.Item{item})
	f := NewFulfiller(inv)

	payload := checkoutEvent("checkout.session.completed", userID.String(), item.ID.String())
	if err := f.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	owned, err := inv.List(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 1 || owned[0].Item.ID != item.ID {
		t.Fatalf("owned = %+v, want the purchased item", owned)
	}

	// Stripe retries deliveries; a replay must not duplicate the grant.
	if err := f.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("replay: %v", err)
	}
	owned, _ = inv.List(context.Background(), userID)
	if len(owned) != 1 {
		t.Fatalf("owned after replay = %d items, want 1", len(owned))
	}
}

// TestHandleEventIgnoresOtherTypes verifies unrelated events are dropped
// without touching the inventory.
func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	userID := uuid.New()
	item := store.Item{ID: uuid.New(), Name: "Corsair Hull", Kind: "ship_skin"}
	inv := store.NewMemInventory([]store.Item{item})
	f := NewFulfiller(inv)

	payload := checkoutEvent("payment_intent.succeeded", userID.String(), item.ID.String())
	if err := f.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if owned, _ := inv.List(context.Background(), userID); len(owned) != 0 {
		t.Fatalf("owned = %d items, want 0", len(owned))
	}
}

// TestHandleEventBadMetadata verifies malformed metadata fails loudly so the
// webhook is retried rather than silently dropped.
func TestHandleEventBadMetadata(t *testing.T) {
	inv := store.NewMemInventory(nil)
	f := NewFulfiller(inv)

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "bad user id", payload: checkoutEvent("checkout.session.completed", "not-a-uuid", uuid.NewString())},
		{name: "bad item id", payload: checkoutEvent("checkout.session.completed", uuid.NewString(), "")},
		{name: "not json", payload: []byte("{")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.HandleEvent(context.Background(), tt.payload); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
