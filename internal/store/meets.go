package store

import (
	"context"
	"database/sql"
	"fmt"

	"linkup/internal/domain"
	"linkup/internal/events"
)

func (s Store) CreateMeet(ctx context.Context, ownerID int64, name string, eventID int64) (domain.Meeting, error) {
	m := domain.Meeting{
		Name:      name,
		OwnerID:   ownerID,
		EventID:   eventID,
		CreatedAt: s.timestamp(),
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO meets(name, owner_id, event_id, created_at) VALUES (?,?,?,?)`,
			m.Name, m.OwnerID, nullableID(m.EventID), m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert meet: %w", err)
		}
		m.ID, _ = res.LastInsertId()
		return s.Events.Append(ctx, tx, "meet.created", "meet", fmt.Sprint(m.ID), ownerID, nil)
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	m.ParticipantIDs = []int64{ownerID}
	return m, nil
}

func (s Store) GetMeet(ctx context.Context, id int64) (domain.Meeting, error) {
	var m domain.Meeting
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, owner_id, COALESCE(event_id,0), created_at FROM meets WHERE id=?`, id).
		Scan(&m.ID, &m.Name, &m.OwnerID, &m.EventID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("get meet: %w", err)
	}
	m.ParticipantIDs, err = s.participantIDs(ctx, m.ID, m.OwnerID)
	return m, err
}

// ListMeets returns every meeting with its participant ids. Participants
// are the owner plus users whose join row is accepted.
func (s Store) ListMeets(ctx context.Context) ([]domain.Meeting, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, owner_id, COALESCE(event_id,0), created_at FROM meets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list meets: %w", err)
	}
	defer rows.Close()
	var meets []domain.Meeting
	for rows.Next() {
		var m domain.Meeting
		if err := rows.Scan(&m.ID, &m.Name, &m.OwnerID, &m.EventID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan meet: %w", err)
		}
		meets = append(meets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range meets {
		ids, err := s.participantIDs(ctx, meets[i].ID, meets[i].OwnerID)
		if err != nil {
			return nil, err
		}
		meets[i].ParticipantIDs = ids
	}
	return meets, nil
}

func (s Store) participantIDs(ctx context.Context, meetID, ownerID int64) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT CASE WHEN is_request=1 THEN from_user_id ELSE to_user_id END
		 FROM meet_requests WHERE meet_id=? AND status='accepted' ORDER BY id`, meetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{ownerID}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id != ownerID {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// JoinMeet adds the user directly as an accepted participant.
func (s Store) JoinMeet(ctx context.Context, meetID, userID int64) error {
	m, err := s.GetMeet(ctx, meetID)
	if err != nil {
		return err
	}
	if m.OwnerID == userID {
		return fmt.Errorf("owner is already a participant")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRequestRow(ctx, tx, meetID, userID, m.OwnerID, domain.RequestAccepted, true); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, "meet.joined", "meet", fmt.Sprint(meetID), userID, nil)
	})
}

// RequestJoin files a pending join request addressed to the owner.
func (s Store) RequestJoin(ctx context.Context, meetID, userID int64) error {
	m, err := s.GetMeet(ctx, meetID)
	if err != nil {
		return err
	}
	if m.OwnerID == userID {
		return fmt.Errorf("owner is already a participant")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRequestRow(ctx, tx, meetID, userID, m.OwnerID, domain.RequestPending, true); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, "meet.join_requested", "meet", fmt.Sprint(meetID), userID, nil)
	})
}

// LeaveMeet removes the user's join or invite rows for the meeting.
func (s Store) LeaveMeet(ctx context.Context, meetID, userID int64) error {
	if _, err := s.GetMeet(ctx, meetID); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM meet_requests WHERE meet_id=? AND
			 ((is_request=1 AND from_user_id=?) OR (is_request=0 AND to_user_id=?))`,
			meetID, userID, userID); err != nil {
			return fmt.Errorf("leave meet: %w", err)
		}
		return s.Events.Append(ctx, tx, "meet.left", "meet", fmt.Sprint(meetID), userID, nil)
	})
}

// InviteUsers files pending invites from the actor to each user.
func (s Store) InviteUsers(ctx context.Context, meetID, actorID int64, userIDs []int64) error {
	m, err := s.GetMeet(ctx, meetID)
	if err != nil {
		return err
	}
	if m.OwnerID != actorID {
		return fmt.Errorf("only the meeting owner can invite")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, userID := range userIDs {
			if userID == m.OwnerID {
				continue
			}
			if err := insertRequestRow(ctx, tx, meetID, actorID, userID, domain.RequestPending, false); err != nil {
				return err
			}
		}
		return s.Events.Append(ctx, tx, "meet.invited", "meet", fmt.Sprint(meetID), actorID,
			events.Payload{"users": len(userIDs)})
	})
}

func insertRequestRow(ctx context.Context, tx *sql.Tx, meetID, fromID, toID int64, status domain.RequestStatus, isRequest bool) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO meet_requests(meet_id, from_user_id, to_user_id, status, is_request) VALUES (?,?,?,?,?)`,
		meetID, fromID, toID, string(status), boolToInt(isRequest))
	if err != nil {
		return fmt.Errorf("insert meet request: %w", err)
	}
	return nil
}

const requestColumns = `id, meet_id, from_user_id, to_user_id, status, is_request`

// Requests lists pending requests and invites involving the user.
func (s Store) Requests(ctx context.Context, userID int64) ([]domain.RequestItem, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM meet_requests
		 WHERE status='pending' AND (from_user_id=? OR to_user_id=?) ORDER BY id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

// Participants lists every accepted join or invite row.
func (s Store) Participants(ctx context.Context) ([]domain.RequestItem, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM meet_requests WHERE status='accepted' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequests(rows *sql.Rows) ([]domain.RequestItem, error) {
	var items []domain.RequestItem
	for rows.Next() {
		var r domain.RequestItem
		var status string
		var isRequest int
		if err := rows.Scan(&r.ID, &r.MeetID, &r.FromUserID, &r.ToUserID, &status, &isRequest); err != nil {
			return nil, fmt.Errorf("scan meet request: %w", err)
		}
		r.Status = domain.RequestStatus(status)
		r.IsRequest = isRequest != 0
		items = append(items, r)
	}
	return items, rows.Err()
}

// AcceptRequest marks the pending row between the two users as accepted.
// Only the addressee of the row may act on it.
func (s Store) AcceptRequest(ctx context.Context, meetID, fromUserID, actorID int64) error {
	return s.settleRequest(ctx, meetID, fromUserID, actorID, domain.RequestAccepted)
}

// DeclineRequest marks the pending row as declined.
func (s Store) DeclineRequest(ctx context.Context, meetID, fromUserID, actorID int64) error {
	return s.settleRequest(ctx, meetID, fromUserID, actorID, domain.RequestDeclined)
}

func (s Store) settleRequest(ctx context.Context, meetID, fromUserID, actorID int64, status domain.RequestStatus) error {
	var id, toUserID int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, to_user_id FROM meet_requests
		 WHERE meet_id=? AND from_user_id=? AND status='pending'`, meetID, fromUserID).
		Scan(&id, &toUserID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find request: %w", err)
	}
	if toUserID != actorID {
		return fmt.Errorf("request is not addressed to user %d", actorID)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE meet_requests SET status=? WHERE id=?`, string(status), id); err != nil {
			return fmt.Errorf("settle request: %w", err)
		}
		return s.Events.Append(ctx, tx, "meet.request_"+string(status), "meet", fmt.Sprint(meetID), actorID,
			events.Payload{"from_user_id": fromUserID})
	})
}
