package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// TestMemInventoryEquip verifies equip swaps within a kind and leaves other
// kinds alone.
func TestMemInventoryEquip(t *testing.T) {
	ctx := context.Background()
	hullA := Item{ID: uuid.New(), Name: "Hull A", Kind: "ship_skin"}
	hullB := Item{ID: uuid.New(), Name: "Hull B", Kind: "ship_skin"}
	flag := Item{ID: uuid.New(), Name: "Flag", Kind: "flag_skin"}
	inv := NewMemInventory([]Item{hullA, hullB, flag})
	userID := uuid.New()

	for _, it := range []Item{hullA, hullB, flag} {
		if err := inv.Grant(ctx, userID, it.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := inv.Equip(ctx, userID, hullA.ID); err != nil {
		t.Fatal(err)
	}
	if err := inv.Equip(ctx, userID, flag.ID); err != nil {
		t.Fatal(err)
	}
	if err := inv.Equip(ctx, userID, hullB.ID); err != nil {
		t.Fatal(err)
	}

	equipped := map[uuid.UUID]bool{}
	owned, err := inv.List(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range owned {
		equipped[o.Item.ID] = o.Equipped
	}
	if equipped[hullA.ID] || !equipped[hullB.ID] {
		t.Fatalf("ship skins: A=%v B=%v, want only B equipped", equipped[hullA.ID], equipped[hullB.ID])
	}
	if !equipped[flag.ID] {
		t.Fatal("flag skin should stay equipped across hull swaps")
	}
}

// TestMemInventoryEquipUnowned verifies unowned and unknown items cannot be
// equipped.
func TestMemInventoryEquipUnowned(t *testing.T) {
	ctx := context.Background()
	item := Item{ID: uuid.New(), Name: "Hull", Kind: "ship_skin"}
	inv := NewMemInventory([]Item{item})
	userID := uuid.New()

	if err := inv.Equip(ctx, userID, item.ID); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("err = %v, want ErrNotOwned", err)
	}
	if err := inv.Equip(ctx, userID, uuid.New()); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("err = %v, want ErrNotOwned", err)
	}
}
