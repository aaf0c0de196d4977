package store

import (
	"context"
	"fmt"

	"linkup/internal/domain"
)

func (s Store) InsertCase(ctx context.Context, c domain.Case) (domain.Case, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO cases(name, image, price) VALUES (?,?,?)`,
		c.Name, nullable(c.Image), c.Price)
	if err != nil {
		return domain.Case{}, fmt.Errorf("insert case: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return c, nil
}

func (s Store) ListCases(ctx context.Context) ([]domain.Case, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, COALESCE(image,''), price FROM cases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()
	var cases []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := rows.Scan(&c.ID, &c.Name, &c.Image, &c.Price); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s Store) InsertEvent(ctx context.Context, ev domain.EventInfo) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO events(event_id, category, name, image, price) VALUES (?,?,?,?,?)`,
		ev.ID, ev.Category, ev.Name, nullable(ev.Image), ev.Price)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s Store) ListEvents(ctx context.Context) ([]domain.EventInfo, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT event_id, category, name, COALESCE(image,''), price FROM events ORDER BY event_id, category`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []domain.EventInfo
	for rows.Next() {
		var ev domain.EventInfo
		if err := rows.Scan(&ev.ID, &ev.Category, &ev.Name, &ev.Image, &ev.Price); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
