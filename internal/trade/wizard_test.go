package trade_test

import (
	"context"
	"testing"

	"linkup/internal/domain"
	"linkup/internal/inventory"
	"linkup/internal/trade"
)

type fakeSubmitter struct {
	offers []domain.TradeOffer
}

func (f *fakeSubmitter) SubmitTrade(_ context.Context, offer domain.TradeOffer) {
	f.offers = append(f.offers, offer)
}

func targetUser() domain.User {
	return domain.User{ID: 2, Name: "Ann", Balance: 120}
}

func primedWizard(t *testing.T, sub trade.Submitter) *trade.Wizard {
	t.Helper()
	w := trade.NewWizard(sub)
	if err := w.SelectTarget(targetUser()); err != nil {
		t.Fatalf("select target: %v", err)
	}
	w.SetInventory([]domain.InventoryEntry{
		{ID: 1, Type: domain.ItemCase, CaseID: 10},
		{ID: 2, Type: domain.ItemCase, CaseID: 10},
		{ID: 3, Type: domain.ItemTicket, EventID: 5, Name: "Квест"},
	})
	return w
}

func TestContinueGate(t *testing.T) {
	w := primedWizard(t, &fakeSubmitter{})

	if ok, block := w.Gate(); ok || block != trade.BlockEmptyOffer {
		t.Fatalf("empty offer must block: ok=%v block=%s", ok, block)
	}
	if err := w.Continue(); err == nil {
		t.Fatal("continue must fail with an empty offer")
	}

	if err := w.SetPoints(50); err != nil {
		t.Fatalf("set points: %v", err)
	}
	if ok, block := w.Gate(); !ok || block != trade.BlockNone {
		t.Fatalf("points alone should open the gate: ok=%v block=%s", ok, block)
	}
	if err := w.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if w.Step() != trade.StepConfirm {
		t.Fatalf("expected confirmation, got %s", w.Step())
	}
}

func TestGateBlocksItemsAlreadyInTrade(t *testing.T) {
	w := trade.NewWizard(&fakeSubmitter{})
	if err := w.SelectTarget(targetUser()); err != nil {
		t.Fatal(err)
	}
	entries := []domain.InventoryEntry{
		{ID: 1, Type: domain.ItemCase, CaseID: 10, IsInTrade: true},
		{ID: 2, Type: domain.ItemCase, CaseID: 10, IsInTrade: true},
	}
	w.SetInventory(entries)
	w.ToggleGroup(inventory.Group(entries)[0])

	if ok, block := w.Gate(); ok || block != trade.BlockItemsInTrade {
		t.Fatalf("in-trade entries must block: ok=%v block=%s", ok, block)
	}
	if err := w.Continue(); err == nil {
		t.Fatal("continue must refuse in-trade entries")
	}
}

func TestSendIsOptimistic(t *testing.T) {
	sub := &fakeSubmitter{}
	w := primedWizard(t, sub)
	w.ToggleGroup(inventory.Group(w.Inventory())[0])
	if err := w.SetPoints(30); err != nil {
		t.Fatal(err)
	}
	if err := w.Continue(); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(context.Background()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if w.Step() != trade.StepSent {
		t.Fatalf("send must flip to sent immediately, got %s", w.Step())
	}
	if len(sub.offers) != 1 {
		t.Fatalf("expected one dispatched offer, got %d", len(sub.offers))
	}
	offer := sub.offers[0]
	if offer.ToUserID != 2 || offer.Points != 30 || len(offer.ItemIDs) != 2 {
		t.Fatalf("unexpected offer: %+v", offer)
	}
}

func TestSendRefusedOutsideConfirmation(t *testing.T) {
	w := primedWizard(t, &fakeSubmitter{})
	if err := w.Send(context.Background()); err == nil {
		t.Fatal("send from inventory must fail")
	}
}

func TestBackNavigation(t *testing.T) {
	w := primedWizard(t, &fakeSubmitter{})
	w.ToggleGroup(inventory.Group(w.Inventory())[0])
	_ = w.SetPoints(10)
	if err := w.Continue(); err != nil {
		t.Fatal(err)
	}

	// Confirmation -> Inventory keeps the draft.
	w.Back()
	if w.Step() != trade.StepInventory {
		t.Fatalf("expected inventory, got %s", w.Step())
	}
	if len(w.SelectedItems()) != 2 || w.Draft().Points != 10 {
		t.Fatal("draft must survive back from confirmation")
	}

	// Inventory -> Search resets the draft completely.
	w.Back()
	if w.Step() != trade.StepSearch {
		t.Fatalf("expected search, got %s", w.Step())
	}
	d := w.Draft()
	if d.Target != nil || d.Selection.Len() != 0 || d.Points != 0 {
		t.Fatalf("draft must be empty after back to search: %+v", d)
	}
}

func TestCloseResetsNonSentState(t *testing.T) {
	w := primedWizard(t, &fakeSubmitter{})
	_ = w.SetPoints(5)
	w.Close()
	if w.Step() != trade.StepSearch {
		t.Fatalf("close should return to search, got %s", w.Step())
	}
	d := w.Draft()
	if d.Target != nil || d.Selection.Len() != 0 || d.Points != 0 {
		t.Fatalf("close must reset the draft: %+v", d)
	}
}

func TestNestedCloseNotifiesParentAfterSent(t *testing.T) {
	notified := false
	sub := &fakeSubmitter{}
	w := trade.NewNestedWizard(sub, func() { notified = true })
	if err := w.SelectTarget(targetUser()); err != nil {
		t.Fatal(err)
	}
	w.SetInventory([]domain.InventoryEntry{{ID: 1, Type: domain.ItemCase, CaseID: 10}})
	_ = w.SetPoints(1)
	if err := w.Continue(); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(context.Background()); err != nil {
		t.Fatal(err)
	}

	w.Close()
	if !notified {
		t.Fatal("nested wizard must surface the sent notification to its parent")
	}

	// Closing before sending must not notify.
	notified = false
	w2 := trade.NewNestedWizard(sub, func() { notified = true })
	_ = w2.SelectTarget(targetUser())
	w2.Close()
	if notified {
		t.Fatal("close before sent must stay silent")
	}
}

func TestSetPointsRejectsNegative(t *testing.T) {
	w := primedWizard(t, &fakeSubmitter{})
	if err := w.SetPoints(-1); err == nil {
		t.Fatal("negative points must be rejected")
	}
	if w.PointsCap() != 120 {
		t.Fatalf("points cap should mirror target balance, got %d", w.PointsCap())
	}
}

func TestSummaryPreviewOverflow(t *testing.T) {
	w := trade.NewWizard(&fakeSubmitter{})
	_ = w.SelectTarget(targetUser())
	var entries []domain.InventoryEntry
	for i := int64(1); i <= 7; i++ {
		entries = append(entries, domain.InventoryEntry{ID: i, Type: domain.ItemCase, CaseID: 10})
	}
	w.SetInventory(entries)
	w.ToggleGroup(inventory.Group(entries)[0])

	s := w.Summary()
	if len(s.Preview) != 5 || s.Overflow != 2 {
		t.Fatalf("expected 5 thumbnails + overflow 2, got %d + %d", len(s.Preview), s.Overflow)
	}
	if s.Target.ID != 2 {
		t.Fatalf("summary target wrong: %+v", s.Target)
	}
}

func TestSearchUsers(t *testing.T) {
	friends := []domain.User{{ID: 3, Name: "Fred"}}
	all := []domain.User{
		{ID: 1, Name: "Me"},
		{ID: 3, Name: "Fred"},
		{ID: 4, Name: "Dana", Surname: "Frost"},
		{ID: 5, Name: "Olga", Login: "frosty"},
		{ID: 6, Name: "Bob"},
	}

	got := trade.SearchUsers("", friends, all, 1)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("empty query should list friends: %+v", got)
	}

	got = trade.SearchUsers("fro", friends, all, 1)
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 5 {
		t.Fatalf("query should match name/surname/login minus friends: %+v", got)
	}
}
