package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"linkup/internal/bridge"
	"linkup/internal/cache"
	"linkup/internal/domain"
)

type fakeAPI struct {
	mu    sync.Mutex
	gate  chan struct{}
	errs  map[string]error
	calls []string
}

func (f *fakeAPI) record(op string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.errs[op]
}

func (f *fakeAPI) CreateTrade(_ context.Context, offer domain.TradeOffer) (domain.Trade, error) {
	err := f.record("createTrade")
	return domain.Trade{ID: 100, ToUserID: offer.ToUserID, Status: domain.TradePending}, err
}

func (f *fakeAPI) AcceptRequest(_ context.Context, _, _ int64) error {
	return f.record("acceptRequest")
}

func (f *fakeAPI) DeclineRequest(_ context.Context, _, _ int64) error {
	return f.record("declineRequest")
}

func (f *fakeAPI) JoinMeeting(_ context.Context, _ int64) error {
	return f.record("joinMeeting")
}

func (f *fakeAPI) LeaveMeeting(_ context.Context, _ int64) error {
	return f.record("leaveMeeting")
}

func (f *fakeAPI) InviteUsers(_ context.Context, _ int64, _ []int64) error {
	return f.record("inviteUsers")
}

type noticeLog struct {
	mu      sync.Mutex
	notices []bridge.Notice
}

func (n *noticeLog) add(notice bridge.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) all() []bridge.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bridge.Notice(nil), n.notices...)
}

type testEnv struct {
	api     *fakeAPI
	store   *cache.Memory
	bridge  *bridge.Bridge
	notices *noticeLog
}

func newTestEnv(t *testing.T, api *fakeAPI) testEnv {
	t.Helper()
	store := cache.NewMemory()
	notices := &noticeLog{}
	b := bridge.New(bridge.Config{
		API:           api,
		Cache:         store,
		Notify:        notices.add,
		CurrentUserID: 9,
	})
	return testEnv{api: api, store: store, bridge: b, notices: notices}
}

func pendingJoinRequest() domain.RequestItem {
	return domain.RequestItem{ID: 55, MeetID: 7, FromUserID: 3, ToUserID: 9, Status: domain.RequestPending, IsRequest: true}
}

func seedRequestCaches(env testEnv) {
	env.store.Set(cache.KeyRequests, []domain.RequestItem{pendingJoinRequest()})
	env.store.Set(cache.KeyParticipants, []domain.RequestItem{})
	env.store.Set(cache.KeyMeetings, []domain.Meeting{{ID: 7, Name: "picnic", OwnerID: 9, ParticipantIDs: []int64{9}}})
}

func TestAcceptRequestUpdatesCachesBeforeSettle(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	env := newTestEnv(t, api)
	seedRequestCaches(env)

	env.bridge.AcceptRequest(context.Background(), pendingJoinRequest())

	// The mutation is still blocked; the caches must already be updated.
	reqs, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyRequests)
	if len(reqs) != 0 {
		t.Fatalf("request should leave the pending list: %+v", reqs)
	}
	parts, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyParticipants)
	if len(parts) != 1 {
		t.Fatalf("expected one participant row: %+v", parts)
	}
	row := parts[0]
	if row.MeetID != 7 || row.FromUserID != 3 || row.ToUserID != 9 || row.Status != domain.RequestAccepted {
		t.Fatalf("unexpected participant row: %+v", row)
	}
	meets, _ := cache.Lookup[[]domain.Meeting](env.store, cache.KeyMeetings)
	if len(meets[0].ParticipantIDs) != 2 || meets[0].ParticipantIDs[1] != 3 {
		t.Fatalf("joining user missing from meeting: %+v", meets[0])
	}

	close(api.gate)
	env.bridge.Flush()

	// Settled successfully: keys invalidated for the authoritative refetch.
	if _, ok := env.store.Get(cache.KeyRequests); ok {
		t.Fatal("requests key should be invalidated after settle")
	}
}

func TestAcceptRequestReusesExistingParticipantRow(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	env := newTestEnv(t, api)
	seedRequestCaches(env)
	env.store.Set(cache.KeyParticipants, []domain.RequestItem{
		{ID: 80, MeetID: 7, FromUserID: 3, ToUserID: 9, Status: domain.RequestPending, IsRequest: true},
	})

	env.bridge.AcceptRequest(context.Background(), pendingJoinRequest())

	parts, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyParticipants)
	if len(parts) != 1 || parts[0].ID != 80 || parts[0].Status != domain.RequestAccepted {
		t.Fatalf("existing row should be marked accepted, not duplicated: %+v", parts)
	}

	close(api.gate)
	env.bridge.Flush()
}

func TestAcceptInsertsPlaceholderID(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	env := newTestEnv(t, api)
	seedRequestCaches(env)

	req := pendingJoinRequest()
	req.ID = 0
	env.bridge.AcceptRequest(context.Background(), req)

	parts, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyParticipants)
	if len(parts) != 1 || parts[0].ID >= 0 {
		t.Fatalf("optimistic insert needs a negative placeholder id: %+v", parts)
	}

	close(api.gate)
	env.bridge.Flush()
}

func TestDeclineRequestRemovesSpeculatively(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	env := newTestEnv(t, api)
	seedRequestCaches(env)
	env.store.Set(cache.KeyParticipants, []domain.RequestItem{
		{ID: 80, MeetID: 7, FromUserID: 3, ToUserID: 9, Status: domain.RequestPending, IsRequest: true},
	})
	env.store.Set(cache.KeyMeetings, []domain.Meeting{{ID: 7, OwnerID: 9, ParticipantIDs: []int64{9, 3}}})

	env.bridge.DeclineRequest(context.Background(), pendingJoinRequest())

	parts, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyParticipants)
	if len(parts) != 0 {
		t.Fatalf("pending participant row should be removed: %+v", parts)
	}
	meets, _ := cache.Lookup[[]domain.Meeting](env.store, cache.KeyMeetings)
	if len(meets[0].ParticipantIDs) != 1 || meets[0].ParticipantIDs[0] != 9 {
		t.Fatalf("declined user should leave the id list: %+v", meets[0])
	}

	close(api.gate)
	env.bridge.Flush()
}

func TestFailedAcceptRollsBackToSnapshot(t *testing.T) {
	api := &fakeAPI{errs: map[string]error{"acceptRequest": errors.New("boom")}}
	env := newTestEnv(t, api)
	seedRequestCaches(env)

	env.bridge.AcceptRequest(context.Background(), pendingJoinRequest())
	env.bridge.Flush()

	reqs, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyRequests)
	if len(reqs) != 1 || reqs[0].ID != 55 {
		t.Fatalf("failed mutation must restore the pending list: %+v", reqs)
	}
	meets, _ := cache.Lookup[[]domain.Meeting](env.store, cache.KeyMeetings)
	if len(meets[0].ParticipantIDs) != 1 {
		t.Fatalf("failed mutation must restore the meeting: %+v", meets[0])
	}
	notices := env.notices.all()
	if len(notices) != 1 || notices[0].Kind != "error" {
		t.Fatalf("remote failure must surface a notice: %+v", notices)
	}
}

func TestResetSkipsStaleRollback(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{}), errs: map[string]error{"acceptRequest": errors.New("boom")}}
	env := newTestEnv(t, api)
	seedRequestCaches(env)

	env.bridge.AcceptRequest(context.Background(), pendingJoinRequest())
	env.bridge.Reset()
	close(api.gate)
	env.bridge.Flush()

	// The stale completion must not restore its old snapshot; the keys
	// fall back to a refetch instead.
	if _, ok := env.store.Get(cache.KeyRequests); ok {
		t.Fatal("stale completion should invalidate, not restore")
	}
}

func TestSubmitTradeInvalidatesOnSettle(t *testing.T) {
	api := &fakeAPI{}
	env := newTestEnv(t, api)
	env.store.Set(cache.KeyMyTrades, []domain.Trade{})
	env.store.Set(cache.InventoryKey(2), []domain.InventoryEntry{{ID: 1}})

	env.bridge.SubmitTrade(context.Background(), domain.TradeOffer{ToUserID: 2, ItemIDs: []int64{1}, Points: 30})
	env.bridge.Flush()

	if _, ok := env.store.Get(cache.KeyMyTrades); ok {
		t.Fatal("my-trades should be invalidated after submit")
	}
	if _, ok := env.store.Get(cache.InventoryKey(2)); ok {
		t.Fatal("target inventory should be invalidated after submit")
	}
	if len(api.calls) != 1 || api.calls[0] != "createTrade" {
		t.Fatalf("unexpected calls: %v", api.calls)
	}
}

func TestSubmitTradeFailureOnlyNotifies(t *testing.T) {
	api := &fakeAPI{errs: map[string]error{"createTrade": errors.New("rejected")}}
	env := newTestEnv(t, api)

	env.bridge.SubmitTrade(context.Background(), domain.TradeOffer{ToUserID: 2, Points: 10})
	env.bridge.Flush()

	notices := env.notices.all()
	if len(notices) != 1 || notices[0].Kind != "error" {
		t.Fatalf("expected a single error notice: %+v", notices)
	}
}

func TestInviteUsersAppendsPlaceholderRows(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	env := newTestEnv(t, api)
	env.store.Set(cache.KeyRequests, []domain.RequestItem{})

	env.bridge.InviteUsers(context.Background(), 8, []int64{4, 5})

	rows, _ := cache.Lookup[[]domain.RequestItem](env.store, cache.KeyRequests)
	if len(rows) != 2 {
		t.Fatalf("expected two optimistic invites: %+v", rows)
	}
	seen := map[int64]bool{}
	for _, row := range rows {
		if row.ID >= 0 || seen[row.ID] {
			t.Fatalf("placeholder ids must be negative and unique: %+v", rows)
		}
		seen[row.ID] = true
		if row.FromUserID != 9 || row.IsRequest || row.Status != domain.RequestPending {
			t.Fatalf("unexpected invite row: %+v", row)
		}
	}

	close(api.gate)
	env.bridge.Flush()
}

func TestJoinAndLeaveMeeting(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	env := newTestEnv(t, api)
	env.store.Set(cache.KeyMeetings, []domain.Meeting{{ID: 7, OwnerID: 2, ParticipantIDs: []int64{2}}})
	env.store.Set(cache.KeyParticipants, []domain.RequestItem{})

	env.bridge.JoinMeeting(context.Background(), 7)
	meets, _ := cache.Lookup[[]domain.Meeting](env.store, cache.KeyMeetings)
	if len(meets[0].ParticipantIDs) != 2 || meets[0].ParticipantIDs[1] != 9 {
		t.Fatalf("join should add the current user: %+v", meets[0])
	}

	env.bridge.LeaveMeeting(context.Background(), 7)
	meets, _ = cache.Lookup[[]domain.Meeting](env.store, cache.KeyMeetings)
	if len(meets[0].ParticipantIDs) != 1 || meets[0].ParticipantIDs[0] != 2 {
		t.Fatalf("leave should remove the current user: %+v", meets[0])
	}

	close(api.gate)
	env.bridge.Flush()
}
