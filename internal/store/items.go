package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/gqlhost/internal/dynamic"
)

// Importance levels accepted by the items table.
const (
	ImportanceLow    = "LOW"
	ImportanceNormal = "NORMAL"
	ImportanceHigh   = "HIGH"
)

// Item is a message filed in a folder.
type Item struct {
	ID         string
	FolderID   string
	Subject    string
	Body       string
	Importance string
	Read       bool
	Properties *dynamic.Map
	Seq        int64
}

// NewItem describes an item to insert.
type NewItem struct {
	FolderID   string
	Subject    string
	Body       string
	Importance string
	Properties *dynamic.Map
}

const itemColumns = `seq, id, folder_id, subject, body, importance, is_read, properties`

// CreateItem inserts an item with a fresh id into an existing folder.
func (s *Store) CreateItem(ctx context.Context, in NewItem) (Item, error) {
	if in.Importance == "" {
		in.Importance = ImportanceNormal
	}
	props, err := marshalProperties(in.Properties)
	if err != nil {
		return Item{}, fmt.Errorf("create item: %w", err)
	}
	if _, err := s.Folder(ctx, in.FolderID); err != nil {
		return Item{}, fmt.Errorf("create item: %w", err)
	}

	it := Item{
		ID:         s.ids.Generate(),
		FolderID:   in.FolderID,
		Subject:    in.Subject,
		Body:       in.Body,
		Importance: in.Importance,
		Properties: in.Properties,
	}
	if it.Properties == nil {
		it.Properties = dynamic.NewMap()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, folder_id, subject, body, importance, properties)
		VALUES (?, ?, ?, ?, ?, ?)
	`, it.ID, it.FolderID, it.Subject, it.Body, it.Importance, props)
	if err != nil {
		return Item{}, fmt.Errorf("create item: %w", err)
	}
	if it.Seq, err = res.LastInsertId(); err != nil {
		return Item{}, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

// Item returns the item with the given id.
func (s *Store) Item(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("item %q: %w", id, err)
	}
	return it, nil
}

// Items lists the items of a folder in insertion order.
func (s *Store) Items(ctx context.Context, folderID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE folder_id = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// CountUnread returns the number of unread items in a folder.
func (s *Store) CountUnread(ctx context.Context, folderID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items WHERE folder_id = ? AND is_read = 0
	`, folderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// SetRead updates an item's read flag.
func (s *Store) SetRead(ctx context.Context, id string, read bool) (Item, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET is_read = ? WHERE id = ?`, read, id)
	if err != nil {
		return Item{}, fmt.Errorf("set read: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Item{}, fmt.Errorf("set read: %w", err)
	} else if n == 0 {
		return Item{}, fmt.Errorf("set read: item %q: %w", id, ErrNotFound)
	}
	return s.Item(ctx, id)
}

// DeleteItem removes an item and returns what was removed.
func (s *Store) DeleteItem(ctx context.Context, id string) (Item, error) {
	it, err := s.Item(ctx, id)
	if err != nil {
		return Item{}, fmt.Errorf("delete item: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return Item{}, fmt.Errorf("delete item: %w", err)
	}
	return it, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (Item, error) {
	var (
		it    Item
		props string
	)
	if err := row.Scan(&it.Seq, &it.ID, &it.FolderID, &it.Subject, &it.Body, &it.Importance, &it.Read, &props); err != nil {
		return Item{}, err
	}
	m, err := unmarshalProperties(props)
	if err != nil {
		return Item{}, err
	}
	it.Properties = m
	return it, nil
}
