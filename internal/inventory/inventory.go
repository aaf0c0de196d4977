package inventory

import (
	"fmt"

	"linkup/internal/domain"
)

// Group collapses a flat inventory into display stacks. Active entries are
// dropped first; the rest merge by identity key in encounter order. The
// result is recomputed from scratch on every call, never mutated in place.
func Group(entries []domain.InventoryEntry) []domain.GroupedItem {
	var order []string
	groups := make(map[string]*domain.GroupedItem)
	for _, entry := range entries {
		if entry.IsActive {
			continue
		}
		key := groupKey(entry)
		g, ok := groups[key]
		if !ok {
			g = &domain.GroupedItem{
				Type:    entry.Type,
				EventID: entry.EventID,
				Name:    entry.Name,
			}
			if entry.Type == domain.ItemCase && entry.CaseID == 0 {
				g.CaseID = entry.ID
			} else {
				g.CaseID = entry.CaseID
			}
			groups[key] = g
			order = append(order, key)
		}
		g.Count++
		g.Items = append(g.Items, entry)
	}
	out := make([]domain.GroupedItem, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// groupKey builds the merge identity for an entry. The exact fallbacks
// decide which stacks merge, so changing them changes what users see.
func groupKey(e domain.InventoryEntry) string {
	switch e.Type {
	case domain.ItemCase:
		switch {
		case e.CaseID != 0:
			return fmt.Sprintf("%s-%d", e.Type, e.CaseID)
		case e.ID != 0:
			return fmt.Sprintf("%s-%d", e.Type, e.ID)
		default:
			return string(e.Type) + "-no-case"
		}
	case domain.ItemKey:
		if e.CaseID != 0 {
			return fmt.Sprintf("%s-%d", e.Type, e.CaseID)
		}
		return string(e.Type) + "-no-case"
	default:
		event := "no-event"
		if e.EventID != 0 {
			event = fmt.Sprintf("%d", e.EventID)
		}
		name := e.Name
		if name == "" {
			name = "no-name"
		}
		return fmt.Sprintf("%s-%s-%s", e.Type, event, name)
	}
}

// Resolve looks up display data for a grouped item. A miss is not an
// error; callers fall back to a placeholder.
func Resolve(g domain.GroupedItem, catalogs domain.Catalogs) (domain.ItemDisplay, bool) {
	switch {
	case g.Type == domain.ItemCase, g.Type == domain.ItemKey && g.CaseID != 0:
		for _, c := range catalogs.Cases {
			if c.ID == g.CaseID {
				return domain.ItemDisplay{Name: c.Name, Image: c.Image, Price: c.Price}, true
			}
		}
	case g.EventID != 0 && g.Name != "":
		for _, ev := range catalogs.Events {
			if ev.ID == g.EventID && ev.Category == g.Name {
				return domain.ItemDisplay{Name: ev.Name, Image: ev.Image, Price: ev.Price}, true
			}
		}
	}
	return domain.ItemDisplay{}, false
}
