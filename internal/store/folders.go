package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultFolderName is the folder created for the default identity.
const DefaultFolderName = "Inbox"

// Folder is a named container of items.
type Folder struct {
	ID   string
	Name string
	Seq  int64
}

// CreateFolder inserts a folder with a fresh id.
// Folder names are unique; a duplicate name is an error.
func (s *Store) CreateFolder(ctx context.Context, name string) (Folder, error) {
	f := Folder{ID: s.ids.Generate(), Name: name}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, name) VALUES (?, ?)
	`, f.ID, f.Name)
	if err != nil {
		return Folder{}, fmt.Errorf("create folder %q: %w", name, err)
	}
	if f.Seq, err = res.LastInsertId(); err != nil {
		return Folder{}, fmt.Errorf("create folder %q: %w", name, err)
	}
	return f, nil
}

// EnsureFolder returns the folder with the given name, creating it if needed.
func (s *Store) EnsureFolder(ctx context.Context, name string) (Folder, error) {
	f, err := s.FolderByName(ctx, name)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Folder{}, err
	}
	return s.CreateFolder(ctx, name)
}

// Folder returns the folder with the given id.
func (s *Store) Folder(ctx context.Context, id string) (Folder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, name FROM folders WHERE id = ?
	`, id)
	return scanFolder(row, id)
}

// FolderByName returns the folder with the given name.
func (s *Store) FolderByName(ctx context.Context, name string) (Folder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, name FROM folders WHERE name = ?
	`, name)
	return scanFolder(row, name)
}

// Folders lists every folder in creation order.
func (s *Store) Folders(ctx context.Context) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, name FROM folders
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.Seq, &f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

func scanFolder(row *sql.Row, key string) (Folder, error) {
	var f Folder
	err := row.Scan(&f.Seq, &f.ID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Folder{}, fmt.Errorf("folder %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Folder{}, fmt.Errorf("folder %q: %w", key, err)
	}
	return f, nil
}
