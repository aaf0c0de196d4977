package server

import (
	"context"
	"net"
	"net/http"
	"testing"

	"linkup/internal/client"
	"linkup/internal/db"
	"linkup/internal/domain"
	"linkup/internal/migrate"
	"linkup/internal/store"
)

const testSecret = "test-secret"

type testEnv struct {
	URL   string
	Store store.Store
	close func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.New(conn)
	handler, err := New(Config{Store: s, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	env := &testEnv{
		URL:   "http://" + ln.Addr().String(),
		Store: s,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(env.close)
	return env
}

func (e *testEnv) seedUser(t *testing.T, name string, balance int) domain.User {
	t.Helper()
	u, err := e.Store.InsertUser(context.Background(), domain.User{Name: name, Balance: balance})
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func (e *testEnv) loginAs(t *testing.T, userID int64) *client.Client {
	t.Helper()
	c := client.New(e.URL)
	token, err := c.DevLogin(context.Background(), userID)
	if err != nil {
		t.Fatalf("dev login: %v", err)
	}
	c.BearerToken = token
	return c
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	c := client.New(env.URL)

	_, err := c.Me(context.Background())
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.StatusCode)
	}
}

func TestDevLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", 100)
	bob := env.seedUser(t, "Bob", 0)
	if err := env.Store.AddFriend(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("add friend: %v", err)
	}

	c := env.loginAs(t, alice.ID)
	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ID != alice.ID || me.Balance != 100 {
		t.Fatalf("unexpected me: %+v", me)
	}
	friends, err := c.Friends(context.Background())
	if err != nil {
		t.Fatalf("friends: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != bob.ID {
		t.Fatalf("unexpected friends: %+v", friends)
	}
	users, err := c.UsersByIDs(context.Background(), []int64{bob.ID})
	if err != nil {
		t.Fatalf("users by ids: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Bob" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestTradeFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "Alice", 100)
	bob := env.seedUser(t, "Bob", 50)
	item, err := env.Store.InsertEntry(ctx, domain.InventoryEntry{
		OwnerID: bob.ID, Type: domain.ItemTicket, EventID: 9, Name: "concert",
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	aliceClient := env.loginAs(t, alice.ID)
	bobClient := env.loginAs(t, bob.ID)

	tr, err := aliceClient.CreateTrade(ctx, domain.TradeOffer{
		ToUserID: bob.ID,
		ItemIDs:  []int64{item.ID},
		Points:   10,
	})
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	if tr.Status != domain.TradePending {
		t.Fatalf("expected pending, got %s", tr.Status)
	}

	inv, err := aliceClient.UserInventory(ctx, bob.ID)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if len(inv) != 1 || !inv[0].IsInTrade {
		t.Fatalf("item should be in-trade: %+v", inv)
	}

	// The initiator cannot settle their own offer.
	if _, err := aliceClient.ApproveTrade(ctx, tr.ID); err == nil {
		t.Fatalf("expected forbidden")
	}

	approved, err := bobClient.ApproveTrade(ctx, tr.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.TradeAccepted {
		t.Fatalf("expected accepted, got %s", approved.Status)
	}

	trades, err := aliceClient.MyTrades(ctx)
	if err != nil {
		t.Fatalf("my trades: %v", err)
	}
	if len(trades) != 1 || trades[0].Status != domain.TradeAccepted {
		t.Fatalf("unexpected trades: %+v", trades)
	}
	me, _ := aliceClient.Me(ctx)
	if me.Balance != 110 {
		t.Fatalf("points did not move: %d", me.Balance)
	}
}

func TestMeetFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedUser(t, "Owner", 0)
	joiner := env.seedUser(t, "Joiner", 0)
	asker := env.seedUser(t, "Asker", 0)

	ownerClient := env.loginAs(t, owner.ID)
	joinerClient := env.loginAs(t, joiner.ID)
	askerClient := env.loginAs(t, asker.ID)

	m, err := ownerClient.CreateMeeting(ctx, "Picnic", 0)
	if err != nil {
		t.Fatalf("create meet: %v", err)
	}

	if err := joinerClient.JoinMeeting(ctx, m.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := askerClient.RequestJoin(ctx, m.ID); err != nil {
		t.Fatalf("request join: %v", err)
	}

	reqs, err := ownerClient.Requests(ctx)
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].FromUserID != asker.ID {
		t.Fatalf("unexpected requests: %+v", reqs)
	}

	if err := ownerClient.AcceptRequest(ctx, m.ID, asker.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	meets, err := ownerClient.Meetings(ctx)
	if err != nil {
		t.Fatalf("meets: %v", err)
	}
	if len(meets) != 1 || len(meets[0].ParticipantIDs) != 3 {
		t.Fatalf("unexpected meets: %+v", meets)
	}

	if err := joinerClient.LeaveMeeting(ctx, m.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	meets, _ = ownerClient.Meetings(ctx)
	if len(meets[0].ParticipantIDs) != 2 {
		t.Fatalf("leave did not remove participant: %v", meets[0].ParticipantIDs)
	}

	parts, err := ownerClient.Participants(ctx)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("unexpected participants: %+v", parts)
	}
}

func TestInviteFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedUser(t, "Owner", 0)
	guest := env.seedUser(t, "Guest", 0)

	ownerClient := env.loginAs(t, owner.ID)
	guestClient := env.loginAs(t, guest.ID)

	m, err := ownerClient.CreateMeeting(ctx, "Dinner", 0)
	if err != nil {
		t.Fatalf("create meet: %v", err)
	}
	if err := ownerClient.InviteUsers(ctx, m.ID, []int64{guest.ID}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	reqs, err := guestClient.Requests(ctx)
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].IsRequest {
		t.Fatalf("expected one invite: %+v", reqs)
	}
	if err := guestClient.DeclineRequest(ctx, m.ID, owner.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	meets, _ := ownerClient.Meetings(ctx)
	if len(meets[0].ParticipantIDs) != 1 {
		t.Fatalf("declined invite must not add participant: %v", meets[0].ParticipantIDs)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Solo", 0)
	c := env.loginAs(t, user.ID)

	_, err := c.ApproveTrade(context.Background(), 12345)
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", apiErr.StatusCode, apiErr.Body)
	}
}
