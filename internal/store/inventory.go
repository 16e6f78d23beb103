package store

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item is one purchasable cosmetic.
type Item struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Kind          string    `json:"kind"` // "ship_skin" or "flag_skin"
	StripePriceID string    `json:"stripe_price_id"`
}

// OwnedItem is an inventory row joined with its item.
type OwnedItem struct {
	Item       Item      `json:"item"`
	Equipped   bool      `json:"equipped"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// InventoryStore manages cosmetic ownership.
type InventoryStore interface {
	// List returns everything the player owns.
	List(ctx context.Context, userID uuid.UUID) ([]OwnedItem, error)

	// GetItem fetches the catalog entry for an item id.
	GetItem(ctx context.Context, itemID uuid.UUID) (Item, bool, error)

	// Grant gives the player an item. Granting an owned item is a no-op, so
	// replayed payment webhooks stay harmless.
	Grant(ctx context.Context, userID, itemID uuid.UUID) error

	// Equip marks an owned item equipped and unequips other items of the
	// same kind. Equipping an unowned item fails.
	Equip(ctx context.Context, userID, itemID uuid.UUID) error
}

// ErrNotOwned is returned by Equip for items the player does not own.
var ErrNotOwned = fmt.Errorf("store: item not owned")

// inventoryRow mirrors the "inventory" table.
type inventoryRow struct {
	UserID     uuid.UUID `json:"user_id"`
	ItemID     uuid.UUID `json:"item_id"`
	Equipped   bool      `json:"equipped"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// SupabaseInventory persists inventory in the "inventory" and "items"
// tables.
type SupabaseInventory struct {
	client *Client
}

// NewSupabaseInventory creates the Supabase-backed inventory store.
func NewSupabaseInventory(client *Client) *SupabaseInventory {
	return &SupabaseInventory{client: client}
}

func (s *SupabaseInventory) List(ctx context.Context, userID uuid.UUID) ([]OwnedItem, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID.String())

	var rows []inventoryRow
	if err := s.client.Select(ctx, "inventory", q, &rows); err != nil {
		return nil, err
	}

	out := make([]OwnedItem, 0, len(rows))
	for _, row := range rows {
		item, found, err := s.GetItem(ctx, row.ItemID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue // catalog entry removed, skip the orphan
		}
		out = append(out, OwnedItem{Item: item, Equipped: row.Equipped, AcquiredAt: row.AcquiredAt})
	}
	return out, nil
}

func (s *SupabaseInventory) GetItem(ctx context.Context, itemID uuid.UUID) (Item, bool, error) {
	q := url.Values{}
	q.Set("id", "eq."+itemID.String())
	q.Set("limit", "1")

	var rows []Item
	if err := s.client.Select(ctx, "items", q, &rows); err != nil {
		return Item{}, false, err
	}
	if len(rows) == 0 {
		return Item{}, false, nil
	}
	return rows[0], true, nil
}

func (s *SupabaseInventory) Grant(ctx context.Context, userID, itemID uuid.UUID) error {
	row := inventoryRow{
		UserID:     userID,
		ItemID:     itemID,
		AcquiredAt: time.Now().UTC(),
	}
	return s.client.Upsert(ctx, "inventory", []inventoryRow{row}, nil)
}

func (s *SupabaseInventory) Equip(ctx context.Context, userID, itemID uuid.UUID) error {
	item, found, err := s.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotOwned
	}

	owned, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	owns := false
	for _, o := range owned {
		if o.Item.ID == itemID {
			owns = true
			break
		}
	}
	if !owns {
		return ErrNotOwned
	}

	// Unequip everything of the same kind, then equip the target.
	for _, o := range owned {
		if o.Item.Kind != item.Kind || !o.Equipped || o.Item.ID == itemID {
			continue
		}
		q := url.Values{}
		q.Set("user_id", "eq."+userID.String())
		q.Set("item_id", "eq."+o.Item.ID.String())
		if err := s.client.Update(ctx, "inventory", q, map[string]any{"equipped": false}, nil); err != nil {
			return err
		}
	}

	q := url.Values{}
	q.Set("user_id", "eq."+userID.String())
	q.Set("item_id", "eq."+itemID.String())
	return s.client.Update(ctx, "inventory", q, map[string]any{"equipped": true}, nil)
}

// MemInventory is the in-memory inventory used when Supabase is not
// configured. The catalog is seeded at construction.
type MemInventory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Item
	rows  map[uuid.UUID][]inventoryRow // by user
}

// NewMemInventory creates an in-memory inventory with the given catalog.
func NewMemInventory(catalog []Item) *MemInventory {
	items := make(map[uuid.UUID]Item, len(catalog))
	for _, it := range catalog {
		items[it.ID] = it
	}
	return &MemInventory{
		items: items,
		rows:  make(map[uuid.UUID][]inventoryRow),
	}
}

func (s *MemInventory) List(_ context.Context, userID uuid.UUID) ([]OwnedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OwnedItem, 0, len(s.rows[userID]))
	for _, row := range s.rows[userID] {
		item, ok := s.items[row.ItemID]
		if !ok {
			continue
		}
		out = append(out, OwnedItem{Item: item, Equipped: row.Equipped, AcquiredAt: row.AcquiredAt})
	}
	return out, nil
}

func (s *MemInventory) GetItem(_ context.Context, itemID uuid.UUID) (Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	return item, ok, nil
}

func (s *MemInventory) Grant(_ context.Context, userID, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows[userID] {
		if row.ItemID == itemID {
			return nil
		}
	}
	s.rows[userID] = append(s.rows[userID], inventoryRow{
		UserID:     userID,
		ItemID:     itemID,
		AcquiredAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemInventory) Equip(_ context.Context, userID, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return ErrNotOwned
	}
	rows := s.rows[userID]
	idx := -1
	for i, row := range rows {
		if row.ItemID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotOwned
	}

	for i := range rows {
		if other, ok := s.items[rows[i].ItemID]; ok && other.Kind == item.Kind {
			rows[i].Equipped = false
		}
	}
	rows[idx].Equipped = true
	return nil
}
