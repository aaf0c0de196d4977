package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"linkup/internal/cache"
	"linkup/internal/domain"
)

// API is the slice of the remote interface the bridge mutates through.
// *client.Client satisfies it.
type API interface {
	CreateTrade(ctx context.Context, offer domain.TradeOffer) (domain.Trade, error)
	AcceptRequest(ctx context.Context, meetID, fromUserID int64) error
	DeclineRequest(ctx context.Context, meetID, fromUserID int64) error
	JoinMeeting(ctx context.Context, meetID int64) error
	LeaveMeeting(ctx context.Context, meetID int64) error
	InviteUsers(ctx context.Context, meetID int64, userIDs []int64) error
}

// Notice is a transient user-facing notification.
type Notice struct {
	Kind    string // "error" or "info"
	Message string
}

// Config wires a Bridge.
type Config struct {
	API           API
	Cache         cache.Store
	Logger        *slog.Logger
	Notify        func(Notice)
	CurrentUserID int64
}

// Bridge issues mutations and keeps the shared query cache consistent
// with them before the server round-trip completes. Every speculative
// write transforms the previous cached value under its own key; nothing
// is overwritten wholesale. The server stays authoritative: each mutation
// invalidates its keys on settle so the next refetch corrects any drift.
type Bridge struct {
	api    API
	cache  cache.Store
	logger *slog.Logger
	notify func(Notice)
	userID int64

	mu       sync.Mutex
	inflight map[uuid.UUID]bool
	wg       sync.WaitGroup

	// placeholderID counts downward so optimistic rows can never collide
	// with server-assigned ids. Refetches replace them by natural key.
	placeholderID int64
}

func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(Notice) {}
	}
	return &Bridge{
		api:      cfg.API,
		cache:    cfg.Cache,
		logger:   logger,
		notify:   notify,
		userID:   cfg.CurrentUserID,
		inflight: make(map[uuid.UUID]bool),
	}
}

// Flush blocks until every in-flight mutation has settled. The CLI calls
// it before exiting; tests use it for determinism.
func (b *Bridge) Flush() {
	b.wg.Wait()
}

// Reset abandons reconciliation for every in-flight mutation. Responses
// that arrive afterwards still invalidate their keys but no longer touch
// optimistic state, so a fresh draft cannot be corrupted by a stale
// completion.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ticket := range b.inflight {
		delete(b.inflight, ticket)
	}
}

func (b *Bridge) begin() uuid.UUID {
	ticket := uuid.New()
	b.mu.Lock()
	b.inflight[ticket] = true
	b.mu.Unlock()
	return ticket
}

// settle finishes a mutation: reports whether its ticket is still live
// and forgets it either way.
func (b *Bridge) settle(ticket uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := b.inflight[ticket]
	delete(b.inflight, ticket)
	return live
}

func (b *Bridge) nextPlaceholderID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.placeholderID--
	return b.placeholderID
}

// joiningUserID is whose membership a request row decides: the asker for
// a join request, the invitee for an invite.
func joiningUserID(req domain.RequestItem) int64 {
	if req.IsRequest {
		return req.FromUserID
	}
	return req.ToUserID
}

// AcceptRequest marks the request accepted across the participants,
// requests, and meetings caches before the mutation resolves.
func (b *Bridge) AcceptRequest(ctx context.Context, req domain.RequestItem) {
	keys := []cache.Key{cache.KeyParticipants, cache.KeyRequests, cache.KeyMeetings}
	snap := b.cache.Snapshot(keys...)
	joining := joiningUserID(req)

	accepted := req
	accepted.Status = domain.RequestAccepted
	if accepted.ID == 0 {
		accepted.ID = b.nextPlaceholderID()
	}
	cache.Apply(b.cache, cache.KeyParticipants, func(rows []domain.RequestItem) []domain.RequestItem {
		return upsertParticipant(rows, accepted)
	})
	cache.Apply(b.cache, cache.KeyRequests, func(rows []domain.RequestItem) []domain.RequestItem {
		return removeRequest(rows, req.MeetID, req.FromUserID)
	})
	cache.Apply(b.cache, cache.KeyMeetings, func(meets []domain.Meeting) []domain.Meeting {
		return addParticipantID(meets, req.MeetID, joining)
	})

	b.run(ctx, "accept request", "could not accept request", snap, keys, func(ctx context.Context) error {
		return b.api.AcceptRequest(ctx, req.MeetID, req.FromUserID)
	})
}

// DeclineRequest removes the pending row and the member it would have
// added, speculatively.
func (b *Bridge) DeclineRequest(ctx context.Context, req domain.RequestItem) {
	keys := []cache.Key{cache.KeyParticipants, cache.KeyRequests, cache.KeyMeetings}
	snap := b.cache.Snapshot(keys...)
	joining := joiningUserID(req)

	cache.Apply(b.cache, cache.KeyParticipants, func(rows []domain.RequestItem) []domain.RequestItem {
		return removeRequest(rows, req.MeetID, req.FromUserID)
	})
	cache.Apply(b.cache, cache.KeyRequests, func(rows []domain.RequestItem) []domain.RequestItem {
		return removeRequest(rows, req.MeetID, req.FromUserID)
	})
	cache.Apply(b.cache, cache.KeyMeetings, func(meets []domain.Meeting) []domain.Meeting {
		return removeParticipantID(meets, req.MeetID, joining)
	})

	b.run(ctx, "decline request", "could not decline request", snap, keys, func(ctx context.Context) error {
		return b.api.DeclineRequest(ctx, req.MeetID, req.FromUserID)
	})
}

// SubmitTrade fires the trade-creation call. No inventory state is
// guessed at: trade outcomes depend on remote acceptance, so only cache
// invalidation happens on settle. Implements trade.Submitter.
func (b *Bridge) SubmitTrade(ctx context.Context, offer domain.TradeOffer) {
	keys := []cache.Key{cache.KeyMyTrades, cache.InventoryKey(offer.ToUserID)}
	b.run(ctx, "submit trade", "could not send trade", nil, keys, func(ctx context.Context) error {
		_, err := b.api.CreateTrade(ctx, offer)
		return err
	})
}

// JoinMeeting adds the current user to the meeting's participant list
// ahead of the server.
func (b *Bridge) JoinMeeting(ctx context.Context, meetID int64) {
	keys := []cache.Key{cache.KeyMeetings, cache.KeyParticipants}
	snap := b.cache.Snapshot(keys...)

	cache.Apply(b.cache, cache.KeyMeetings, func(meets []domain.Meeting) []domain.Meeting {
		return addParticipantID(meets, meetID, b.userID)
	})

	b.run(ctx, "join meeting", "could not join meeting", snap, keys, func(ctx context.Context) error {
		return b.api.JoinMeeting(ctx, meetID)
	})
}

// LeaveMeeting removes the current user from the meeting speculatively.
func (b *Bridge) LeaveMeeting(ctx context.Context, meetID int64) {
	keys := []cache.Key{cache.KeyMeetings, cache.KeyParticipants}
	snap := b.cache.Snapshot(keys...)

	cache.Apply(b.cache, cache.KeyMeetings, func(meets []domain.Meeting) []domain.Meeting {
		return removeParticipantID(meets, meetID, b.userID)
	})
	cache.Apply(b.cache, cache.KeyParticipants, func(rows []domain.RequestItem) []domain.RequestItem {
		var out []domain.RequestItem
		for _, row := range rows {
			if row.MeetID == meetID && joiningUserID(row) == b.userID {
				continue
			}
			out = append(out, row)
		}
		return out
	})

	b.run(ctx, "leave meeting", "could not leave meeting", snap, keys, func(ctx context.Context) error {
		return b.api.LeaveMeeting(ctx, meetID)
	})
}

// InviteUsers appends sent-invite rows with placeholder ids so the
// invites list updates immediately.
func (b *Bridge) InviteUsers(ctx context.Context, meetID int64, userIDs []int64) {
	keys := []cache.Key{cache.KeyRequests}
	snap := b.cache.Snapshot(keys...)

	cache.Apply(b.cache, cache.KeyRequests, func(rows []domain.RequestItem) []domain.RequestItem {
		for _, uid := range userIDs {
			rows = append(rows, domain.RequestItem{
				ID:         b.nextPlaceholderID(),
				MeetID:     meetID,
				FromUserID: b.userID,
				ToUserID:   uid,
				Status:     domain.RequestPending,
				IsRequest:  false,
			})
		}
		return rows
	})

	b.run(ctx, "invite users", "could not send invites", snap, keys, func(ctx context.Context) error {
		return b.api.InviteUsers(ctx, meetID, userIDs)
	})
}

// run dispatches the mutation without blocking the caller. Success
// invalidates the affected keys so the next refetch picks up server
// state (real row ids replace placeholders there). A rejected mutation
// left the server unchanged, so the speculative writes roll back to the
// snapshot; when no snapshot exists, or the bridge was reset while the
// call was in flight, invalidation forces the refetch instead.
func (b *Bridge) run(ctx context.Context, op, failureMsg string, snap cache.Snapshot, keys []cache.Key, call func(context.Context) error) {
	ticket := b.begin()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := call(ctx)
		live := b.settle(ticket)
		if err == nil {
			b.logger.Debug("mutation settled", "op", op, "ticket", ticket)
			b.cache.Invalidate(keys...)
			return
		}
		b.logger.Error("mutation failed", "op", op, "ticket", ticket, "error", err)
		b.notify(Notice{Kind: "error", Message: failureMsg})
		if live && snap != nil {
			b.cache.Restore(snap)
		} else {
			b.cache.Invalidate(keys...)
		}
	}()
}

// The cache transforms below are copy-on-write: prior slices stay intact
// so snapshots and readers holding an older value never observe the
// speculative change.

// upsertParticipant updates the row matching the natural key
// (meet + from-user) or appends the new row.
func upsertParticipant(rows []domain.RequestItem, row domain.RequestItem) []domain.RequestItem {
	out := make([]domain.RequestItem, len(rows))
	copy(out, rows)
	for i, r := range out {
		if r.MeetID == row.MeetID && r.FromUserID == row.FromUserID {
			out[i].Status = row.Status
			return out
		}
	}
	return append(out, row)
}

func removeRequest(rows []domain.RequestItem, meetID, fromUserID int64) []domain.RequestItem {
	var out []domain.RequestItem
	for _, r := range rows {
		if r.MeetID == meetID && r.FromUserID == fromUserID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func addParticipantID(meets []domain.Meeting, meetID, userID int64) []domain.Meeting {
	out := make([]domain.Meeting, len(meets))
	copy(out, meets)
	for i, m := range out {
		if m.ID != meetID {
			continue
		}
		for _, id := range m.ParticipantIDs {
			if id == userID {
				return out
			}
		}
		ids := make([]int64, 0, len(m.ParticipantIDs)+1)
		ids = append(ids, m.ParticipantIDs...)
		out[i].ParticipantIDs = append(ids, userID)
	}
	return out
}

func removeParticipantID(meets []domain.Meeting, meetID, userID int64) []domain.Meeting {
	out := make([]domain.Meeting, len(meets))
	copy(out, meets)
	for i, m := range out {
		if m.ID != meetID {
			continue
		}
		var ids []int64
		for _, id := range m.ParticipantIDs {
			if id != userID {
				ids = append(ids, id)
			}
		}
		out[i].ParticipantIDs = ids
	}
	return out
}
