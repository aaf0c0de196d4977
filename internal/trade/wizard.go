package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"linkup/internal/domain"
)

// Step is the single active view of the trade wizard.
type Step string

const (
	StepSearch    Step = "search"
	StepInventory Step = "inventory"
	StepConfirm   Step = "confirmation"
	StepSent      Step = "sent"
)

// Block explains why the continue/send action is disabled. Blocks are
// never errors; the UI renders them as a disabled control with a label.
type Block string

const (
	BlockNone         Block = ""
	BlockEmptyOffer   Block = "empty_offer"
	BlockItemsInTrade Block = "items_in_trade"
)

// previewLimit caps confirmation thumbnails before the overflow badge.
const previewLimit = 5

// Submitter dispatches the trade-creation mutation. Implementations must
// not block on the network; the wizard flips to Sent on initiation and
// failures surface through the submitter's own notification channel.
type Submitter interface {
	SubmitTrade(ctx context.Context, offer domain.TradeOffer)
}

// Draft is the in-progress offer. It exists from target selection until
// the wizard is reset or torn down.
type Draft struct {
	Target    *domain.User
	Selection Selection
	Points    int
}

func emptyDraft() Draft {
	return Draft{Selection: NewSelection()}
}

// Wizard walks Search -> Inventory -> Confirmation -> Sent. Exactly one
// step is active at a time; all transitions go through its methods.
type Wizard struct {
	step      Step
	draft     Draft
	inventory []domain.InventoryEntry
	submitter Submitter

	// nested marks a wizard opened from another trade-initiation flow;
	// onSent tells that parent flow the trade went out.
	nested bool
	onSent func()
}

func NewWizard(submitter Submitter) *Wizard {
	return &Wizard{step: StepSearch, draft: emptyDraft(), submitter: submitter}
}

// NewNestedWizard builds a wizard invoked from a parent flow; onSent fires
// when the user closes the Sent view.
func NewNestedWizard(submitter Submitter, onSent func()) *Wizard {
	w := NewWizard(submitter)
	w.nested = true
	w.onSent = onSent
	return w
}

func (w *Wizard) Step() Step    { return w.step }
func (w *Wizard) Draft() *Draft { return &w.draft }

// Inventory returns the target's entries as primed by SetInventory.
func (w *Wizard) Inventory() []domain.InventoryEntry { return w.inventory }

// SelectTarget moves from Search to Inventory and starts the draft.
func (w *Wizard) SelectTarget(u domain.User) error {
	if w.step != StepSearch {
		return fmt.Errorf("cannot select a user from %s", w.step)
	}
	w.draft.Target = &u
	w.step = StepInventory
	return nil
}

// SetInventory primes the target's inventory once fetched. Selection ids
// that vanished from the inventory simply stop matching; no cleanup runs.
func (w *Wizard) SetInventory(entries []domain.InventoryEntry) {
	w.inventory = entries
}

// SetPoints updates the requested points. The target's balance bounds the
// control informationally only; the server stays authoritative.
func (w *Wizard) SetPoints(points int) error {
	if points < 0 {
		return errors.New("points must not be negative")
	}
	w.draft.Points = points
	return nil
}

// PointsCap is the displayed upper bound for the points control.
func (w *Wizard) PointsCap() int {
	if w.draft.Target == nil {
		return 0
	}
	return w.draft.Target.Balance
}

func (w *Wizard) ToggleGroup(g domain.GroupedItem) {
	w.draft.Selection.ToggleGroup(g)
}

// SelectedItems resolves the current selection against the primed
// inventory.
func (w *Wizard) SelectedItems() []domain.InventoryEntry {
	return w.draft.Selection.Pick(w.inventory)
}

// Gate reports whether the offer may advance and, if not, why.
func (w *Wizard) Gate() (bool, Block) {
	selected := w.SelectedItems()
	for _, item := range selected {
		if item.IsInTrade {
			return false, BlockItemsInTrade
		}
	}
	if len(selected) == 0 && w.draft.Points == 0 {
		return false, BlockEmptyOffer
	}
	return true, BlockNone
}

// Continue advances Inventory -> Confirmation when the gate allows it.
func (w *Wizard) Continue() error {
	if w.step != StepInventory {
		return fmt.Errorf("cannot continue from %s", w.step)
	}
	if ok, block := w.Gate(); !ok {
		return fmt.Errorf("offer blocked: %s", block)
	}
	w.step = StepConfirm
	return nil
}

// Summary is the read-only confirmation view data.
type Summary struct {
	Target   domain.User
	Preview  []domain.InventoryEntry
	Overflow int
	Points   int
}

func (w *Wizard) Summary() Summary {
	s := Summary{Points: w.draft.Points}
	if w.draft.Target != nil {
		s.Target = *w.draft.Target
	}
	selected := w.SelectedItems()
	if len(selected) > previewLimit {
		s.Preview = selected[:previewLimit]
		s.Overflow = len(selected) - previewLimit
	} else {
		s.Preview = selected
	}
	return s
}

// Send dispatches the offer and flips to Sent without waiting for the
// server. The gate is re-checked so an entry that went in-trade since
// Confirmation still blocks submission.
func (w *Wizard) Send(ctx context.Context) error {
	if w.step != StepConfirm {
		return fmt.Errorf("cannot send from %s", w.step)
	}
	if w.draft.Target == nil {
		return errors.New("no target user")
	}
	if ok, block := w.Gate(); !ok {
		return fmt.Errorf("offer blocked: %s", block)
	}
	offer := domain.TradeOffer{ToUserID: w.draft.Target.ID, Points: w.draft.Points}
	for _, item := range w.SelectedItems() {
		offer.ItemIDs = append(offer.ItemIDs, item.ID)
	}
	w.submitter.SubmitTrade(ctx, offer)
	w.step = StepSent
	return nil
}

// Back steps one view backwards. From Confirmation the draft survives;
// from Inventory the draft resets fully; from Search a leftover target is
// cleared. Back does nothing once the trade is sent.
func (w *Wizard) Back() {
	switch w.step {
	case StepConfirm:
		w.step = StepInventory
	case StepInventory:
		w.draft = emptyDraft()
		w.inventory = nil
		w.step = StepSearch
	case StepSearch:
		w.draft.Target = nil
	}
}

// Close tears the wizard down. From Sent it notifies a nested parent
// flow; from any other step it discards the draft.
func (w *Wizard) Close() {
	if w.step == StepSent {
		if w.nested && w.onSent != nil {
			w.onSent()
		}
	}
	w.draft = emptyDraft()
	w.inventory = nil
	w.step = StepSearch
}

// SearchUsers implements the Search step listing: friends by default, and
// for a non-empty query every platform user matching on name, surname, or
// login, minus existing friends and the searcher.
func SearchUsers(query string, friends, all []domain.User, selfID int64) []domain.User {
	query = strings.TrimSpace(query)
	if query == "" {
		return friends
	}
	friendIDs := make(map[int64]bool, len(friends))
	for _, f := range friends {
		friendIDs[f.ID] = true
	}
	needle := strings.ToLower(query)
	var out []domain.User
	for _, u := range all {
		if u.ID == selfID || friendIDs[u.ID] {
			continue
		}
		if matchesUser(u, needle) {
			out = append(out, u)
		}
	}
	return out
}

func matchesUser(u domain.User, needle string) bool {
	return strings.Contains(strings.ToLower(u.Name), needle) ||
		strings.Contains(strings.ToLower(u.Surname), needle) ||
		strings.Contains(strings.ToLower(u.Login), needle)
}
