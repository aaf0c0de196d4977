package trade

import "linkup/internal/domain"

// Selection tracks which concrete inventory entries are part of the
// outgoing offer. Toggling always applies to a whole group so a stack can
// never be half-selected.
type Selection map[int64]bool

func NewSelection() Selection {
	return make(Selection)
}

func (s Selection) Has(id int64) bool {
	return s[id]
}

func (s Selection) Len() int {
	return len(s)
}

// ToggleGroup selects every entry of the group, or deselects every entry
// if all of them are already selected.
func (s Selection) ToggleGroup(g domain.GroupedItem) {
	if s.AllSelected(g) {
		for _, item := range g.Items {
			delete(s, item.ID)
		}
		return
	}
	for _, item := range g.Items {
		s[item.ID] = true
	}
}

func (s Selection) AllSelected(g domain.GroupedItem) bool {
	if len(g.Items) == 0 {
		return false
	}
	for _, item := range g.Items {
		if !s[item.ID] {
			return false
		}
	}
	return true
}

// SelectedCount reports how many entries of the group are selected, for
// stack badges.
func (s Selection) SelectedCount(g domain.GroupedItem) int {
	n := 0
	for _, item := range g.Items {
		if s[item.ID] {
			n++
		}
	}
	return n
}

// Pick returns the selected entries out of an inventory, in inventory
// order. Ids in the selection that no longer exist are ignored.
func (s Selection) Pick(entries []domain.InventoryEntry) []domain.InventoryEntry {
	var out []domain.InventoryEntry
	for _, entry := range entries {
		if s[entry.ID] {
			out = append(out, entry)
		}
	}
	return out
}
