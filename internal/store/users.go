package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"linkup/internal/domain"
)

const userColumns = `id, name, COALESCE(surname,''), COALESCE(login,''), COALESCE(photo_url,''), balance`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Login, &u.PhotoURL, &u.Balance)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (s Store) InsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO users(name, surname, login, photo_url, balance) VALUES (?,?,?,?,?)`,
		u.Name, nullable(u.Surname), nullable(u.Login), nullable(u.PhotoURL), u.Balance)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.ID, _ = res.LastInsertId()
	return u, nil
}

func (s Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err != nil {
		return u, err
	}
	u.FriendIDs, err = s.friendIDs(ctx, id)
	return u, err
}

// ListUsers returns all users, or only those with the given ids.
func (s Store) ListUsers(ctx context.Context, ids []int64) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s Store) AddFriend(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return fmt.Errorf("cannot befriend yourself")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, pair := range [][2]int64{{userID, friendID}, {friendID, userID}} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO friends(user_id, friend_id) VALUES (?,?) ON CONFLICT DO NOTHING`,
				pair[0], pair[1]); err != nil {
				return fmt.Errorf("add friend: %w", err)
			}
		}
		return nil
	})
}

func (s Store) Friends(ctx context.Context, userID int64) ([]domain.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+prefixedUserColumns("u")+` FROM users u
		 JOIN friends f ON f.friend_id = u.id
		 WHERE f.user_id = ? ORDER BY u.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s Store) friendIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT friend_id FROM friends WHERE user_id=? ORDER BY friend_id`, userID)
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

func prefixedUserColumns(alias string) string {
	cols := strings.Split(userColumns, ", ")
	for i, c := range cols {
		if strings.HasPrefix(c, "COALESCE(") {
			cols[i] = strings.Replace(c, "COALESCE(", "COALESCE("+alias+".", 1)
		} else {
			cols[i] = alias + "." + c
		}
	}
	return strings.Join(cols, ", ")
}

func scanUsers(rows *sql.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AdjustBalance moves points inside a transaction, refusing to go
// negative.
func adjustBalance(ctx context.Context, tx *sql.Tx, userID int64, delta int) error {
	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id=?`, userID).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if balance+delta < 0 {
		return fmt.Errorf("insufficient balance: have %d, need %d", balance, -delta)
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE id=?`, delta, userID)
	return err
}
