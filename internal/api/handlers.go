package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/clock"
	"shipwars/internal/payments"
	"shipwars/internal/protocol"
	"shipwars/internal/store"
)

// maxWebhookBody bounds webhook payloads; Stripe events are small.
const maxWebhookBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Response encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// handleHealth reports liveness plus coarse load numbers.
func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_secs":    clock.UptimeSecs(),
		"active_matches": h.registry.ActiveMatches(),
		"players":        h.registry.TotalPlayers(),
		"queue_depth":    h.matchmaker.QueueLen(),
	})
}

// handleMatchmakingJoin enqueues the authenticated player over HTTP. The
// player must already have a live websocket session to receive the match.
func (h *routerHandlers) handleMatchmakingJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	sess, ok := h.matchmaker.SessionFor(userID)
	if !ok {
		writeError(w, http.StatusConflict, "no_session",
			"connect to /ws before requesting a match")
		return
	}

	var body struct {
		ShipType protocol.ShipType `json:"ship_type"`
		MatchID  *uuid.UUID        `json:"match_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	h.matchmaker.Dispatch(sess, protocol.JoinMatch{MatchID: body.MatchID, ShipType: body.ShipType})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued":      true,
		"queue_depth": h.matchmaker.QueueLen(),
	})
}

// handleInventory lists the authenticated player's cosmetics.
func (h *routerHandlers) handleInventory(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	owned, err := h.inventory.List(r.Context(), userID)
	if err != nil {
		log.Printf("⚠️ Inventory list failed for %s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "store_error", "inventory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": owned})
}

// handleEquip equips one owned cosmetic, unequipping others of its kind.
func (h *routerHandlers) handleEquip(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	var body struct {
		ItemID uuid.UUID `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bad_request", "item_id is required")
		return
	}

	if err := h.inventory.Equip(r.Context(), userID, body.ItemID); err != nil {
		if errors.Is(err, store.ErrNotOwned) {
			writeError(w, http.StatusForbidden, "not_owned", "you do not own this item")
			return
		}
		log.Printf("⚠️ Equip failed for %s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "store_error", "inventory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipped": body.ItemID})
}

// handleCheckout opens a Stripe Checkout session for one catalog item.
func (h *routerHandlers) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if h.stripe == nil {
		writeError(w, http.StatusNotImplemented, "payments_disabled", "payments are not configured")
		return
	}
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	var body struct {
		ItemID uuid.UUID `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bad_request", "item_id is required")
		return
	}

	item, found, err := h.inventory.GetItem(r.Context(), body.ItemID)
	if err != nil {
		log.Printf("⚠️ Catalog lookup failed: %v", err)
		writeError(w, http.StatusBadGateway, "store_error", "catalog unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown_item", "no such item")
		return
	}

	session, err := h.stripe.CreateCheckoutSession(r.Context(), userID, item)
	if err != nil {
		log.Printf("⚠️ Checkout session failed for %s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "payment_error", "could not start checkout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

// handleWebhook verifies and fulfills Stripe events. Always answers 200 for
// verified events we choose to ignore, so Stripe stops retrying them.
func (h *routerHandlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if err := payments.VerifySignature(payload, sig, h.webhookSecret, time.Now()); err != nil {
		log.Printf("⚠️ Webhook signature rejected: %v", err)
		writeError(w, http.StatusBadRequest, "bad_signature", "signature verification failed")
		return
	}

	if err := h.fulfiller.HandleEvent(r.Context(), payload); err != nil {
		log.Printf("⚠️ Webhook fulfillment error: %v", err)
		writeError(w, http.StatusInternalServerError, "fulfillment_error", "could not fulfill event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
