package trade_test

import (
	"testing"

	"linkup/internal/domain"
	"linkup/internal/inventory"
	"linkup/internal/trade"
)

func caseGroup() domain.GroupedItem {
	entries := []domain.InventoryEntry{
		{ID: 1, Type: domain.ItemCase, CaseID: 10},
		{ID: 2, Type: domain.ItemCase, CaseID: 10},
	}
	return inventory.Group(entries)[0]
}

func TestToggleGroupIsAtomic(t *testing.T) {
	g := caseGroup()
	sel := trade.NewSelection()

	sel.ToggleGroup(g)
	if !sel.Has(1) || !sel.Has(2) {
		t.Fatalf("selecting one stack must select every entry: %v", sel)
	}
	if sel.SelectedCount(g) != 2 || !sel.AllSelected(g) {
		t.Fatalf("badge count wrong: %d", sel.SelectedCount(g))
	}

	sel.ToggleGroup(g)
	if sel.Len() != 0 {
		t.Fatalf("second toggle must deselect every entry: %v", sel)
	}
}

func TestToggleGroupCompletesPartialSelection(t *testing.T) {
	g := caseGroup()
	sel := trade.NewSelection()
	sel[1] = true

	sel.ToggleGroup(g)
	if !sel.Has(1) || !sel.Has(2) || sel.Len() != 2 {
		t.Fatalf("partial selection must complete, not flip: %v", sel)
	}
}

func TestPickKeepsInventoryOrder(t *testing.T) {
	entries := []domain.InventoryEntry{
		{ID: 3, Type: domain.ItemKey, CaseID: 10},
		{ID: 1, Type: domain.ItemCase, CaseID: 10},
		{ID: 9, Type: domain.ItemTicket, EventID: 5, Name: "Party"},
	}
	sel := trade.Selection{1: true, 9: true, 777: true}
	picked := sel.Pick(entries)
	if len(picked) != 2 || picked[0].ID != 1 || picked[1].ID != 9 {
		t.Fatalf("unexpected pick: %+v", picked)
	}
}
