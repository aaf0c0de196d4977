package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"linkup/internal/domain"
)

const inventoryColumns = `id, owner_id, type, COALESCE(case_id,0), COALESCE(event_id,0), COALESCE(event_type,''), COALESCE(name,''), is_active, is_in_trade`

func (s Store) InsertEntry(ctx context.Context, e domain.InventoryEntry) (domain.InventoryEntry, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO inventory(owner_id, type, case_id, event_id, event_type, name, is_active, is_in_trade)
		 VALUES (?,?,?,?,?,?,?,?)`,
		e.OwnerID, string(e.Type), nullableID(e.CaseID), nullableID(e.EventID),
		nullable(e.EventType), nullable(e.Name), boolToInt(e.IsActive), boolToInt(e.IsInTrade))
	if err != nil {
		return domain.InventoryEntry{}, fmt.Errorf("insert inventory entry: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return e, nil
}

func (s Store) UserInventory(ctx context.Context, ownerID int64) ([]domain.InventoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE owner_id=? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.InventoryEntry, error) {
	var entries []domain.InventoryEntry
	for rows.Next() {
		var e domain.InventoryEntry
		var typ string
		var active, inTrade int
		if err := rows.Scan(&e.ID, &e.OwnerID, &typ, &e.CaseID, &e.EventID, &e.EventType, &e.Name, &active, &inTrade); err != nil {
			return nil, fmt.Errorf("scan inventory entry: %w", err)
		}
		e.Type = domain.ItemType(typ)
		e.IsActive = active != 0
		e.IsInTrade = inTrade != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// lockEntriesForTrade verifies the entries belong to ownerID and are
// tradeable, then flags them in-trade.
func lockEntriesForTrade(ctx context.Context, tx *sql.Tx, ownerID int64, ids []int64) error {
	for _, id := range ids {
		var owner int64
		var active, inTrade int
		err := tx.QueryRowContext(ctx,
			`SELECT owner_id, is_active, is_in_trade FROM inventory WHERE id=?`, id).
			Scan(&owner, &active, &inTrade)
		if err == sql.ErrNoRows {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if owner != ownerID {
			return fmt.Errorf("item %d is not owned by user %d", id, ownerID)
		}
		if active != 0 {
			return fmt.Errorf("item %d is active and cannot be traded", id)
		}
		if inTrade != 0 {
			return fmt.Errorf("item %d is already in a trade", id)
		}
	}
	return setEntriesInTrade(ctx, tx, ids, true)
}

func setEntriesInTrade(ctx context.Context, tx *sql.Tx, ids []int64, inTrade bool) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := []any{boolToInt(inTrade)}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory SET is_in_trade=? WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	return err
}

func transferEntries(ctx context.Context, tx *sql.Tx, ids []int64, newOwnerID int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := []any{newOwnerID}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory SET owner_id=?, is_in_trade=0 WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	return err
}
