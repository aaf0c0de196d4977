package store

import (
	"context"
	"database/sql"
	"fmt"

	"linkup/internal/domain"
	"linkup/internal/events"
)

// CreateTrade records a pending trade asking the target user for items
// and/or points. The requested items are flagged in-trade so they cannot
// back another offer until this one settles.
func (s Store) CreateTrade(ctx context.Context, fromUserID int64, offer domain.TradeOffer) (domain.Trade, error) {
	if offer.Points < 0 {
		return domain.Trade{}, fmt.Errorf("points must not be negative")
	}
	if len(offer.ItemIDs) == 0 && offer.Points == 0 {
		return domain.Trade{}, fmt.Errorf("offer must request items or points")
	}
	if fromUserID == offer.ToUserID {
		return domain.Trade{}, fmt.Errorf("cannot trade with yourself")
	}
	if _, err := s.GetUser(ctx, offer.ToUserID); err != nil {
		return domain.Trade{}, err
	}

	t := domain.Trade{
		FromUserID: fromUserID,
		ToUserID:   offer.ToUserID,
		ItemIDs:    offer.ItemIDs,
		Points:     offer.Points,
		Status:     domain.TradePending,
		CreatedAt:  s.timestamp(),
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockEntriesForTrade(ctx, tx, offer.ToUserID, offer.ItemIDs); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO trades(from_user_id, to_user_id, points, status, created_at) VALUES (?,?,?,?,?)`,
			t.FromUserID, t.ToUserID, t.Points, string(t.Status), t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		t.ID, _ = res.LastInsertId()
		for _, itemID := range offer.ItemIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trade_items(trade_id, item_id) VALUES (?,?)`, t.ID, itemID); err != nil {
				return fmt.Errorf("insert trade item: %w", err)
			}
		}
		return s.Events.Append(ctx, tx, "trade.created", "trade", fmt.Sprint(t.ID), fromUserID,
			events.Payload{"to_user_id": t.ToUserID, "items": len(t.ItemIDs), "points": t.Points})
	})
	if err != nil {
		return domain.Trade{}, err
	}
	return t, nil
}

func (s Store) GetTrade(ctx context.Context, id int64) (domain.Trade, error) {
	var t domain.Trade
	var status string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, from_user_id, to_user_id, points, status, created_at FROM trades WHERE id=?`, id).
		Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Points, &status, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get trade: %w", err)
	}
	t.Status = domain.TradeStatus(status)
	t.ItemIDs, err = s.tradeItemIDs(ctx, id)
	return t, err
}

func (s Store) tradeItemIDs(ctx context.Context, tradeID int64) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT item_id FROM trade_items WHERE trade_id=? ORDER BY item_id`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserTrades lists trades the user sent or received, newest first.
func (s Store) UserTrades(ctx context.Context, userID int64) ([]domain.Trade, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, from_user_id, to_user_id, points, status, created_at FROM trades
		 WHERE from_user_id=? OR to_user_id=? ORDER BY id DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var status string
		if err := rows.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Points, &status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Status = domain.TradeStatus(status)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range trades {
		ids, err := s.tradeItemIDs(ctx, trades[i].ID)
		if err != nil {
			return nil, err
		}
		trades[i].ItemIDs = ids
	}
	return trades, nil
}

// ApproveTrade settles a pending trade: the requested items and points
// move from the target to the initiator. Only the target may approve.
func (s Store) ApproveTrade(ctx context.Context, id, actorID int64) (domain.Trade, error) {
	t, err := s.GetTrade(ctx, id)
	if err != nil {
		return t, err
	}
	if t.ToUserID != actorID {
		return t, fmt.Errorf("only the trade target can approve")
	}
	if t.Status != domain.TradePending {
		return t, fmt.Errorf("trade is not pending")
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := transferEntries(ctx, tx, t.ItemIDs, t.FromUserID); err != nil {
			return err
		}
		if t.Points > 0 {
			if err := adjustBalance(ctx, tx, t.ToUserID, -t.Points); err != nil {
				return err
			}
			if err := adjustBalance(ctx, tx, t.FromUserID, t.Points); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE trades SET status='accepted' WHERE id=?`, id); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, "trade.accepted", "trade", fmt.Sprint(id), actorID, nil)
	})
	if err != nil {
		return t, err
	}
	t.Status = domain.TradeAccepted
	return t, nil
}

// RejectTrade declines a pending trade and releases its items.
func (s Store) RejectTrade(ctx context.Context, id, actorID int64) (domain.Trade, error) {
	t, err := s.GetTrade(ctx, id)
	if err != nil {
		return t, err
	}
	if t.ToUserID != actorID {
		return t, fmt.Errorf("only the trade target can reject")
	}
	if t.Status != domain.TradePending {
		return t, fmt.Errorf("trade is not pending")
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := setEntriesInTrade(ctx, tx, t.ItemIDs, false); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE trades SET status='rejected' WHERE id=?`, id); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, "trade.rejected", "trade", fmt.Sprint(id), actorID, nil)
	})
	if err != nil {
		return t, err
	}
	t.Status = domain.TradeRejected
	return t, nil
}
