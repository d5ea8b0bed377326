package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlhost/internal/dynamic"
)

func TestFolders_CreateAndList(t *testing.T) {
	s := createTestStore(t, "folder-b", "folder-a")
	ctx := context.Background()

	_, err := s.CreateFolder(ctx, "Sent")
	require.NoError(t, err)
	_, err = s.CreateFolder(ctx, "Archive")
	require.NoError(t, err)

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "folder-b", folders[0].ID)
	assert.Equal(t, "Sent", folders[0].Name)
	assert.Equal(t, "Archive", folders[1].Name)
}

func TestFolders_DuplicateNameFails(t *testing.T) {
	s := createTestStore(t, "f1", "f2")
	ctx := context.Background()

	_, err := s.CreateFolder(ctx, DefaultFolderName)
	require.NoError(t, err)
	_, err = s.CreateFolder(ctx, DefaultFolderName)
	require.Error(t, err)
}

func TestFolders_EnsureIsIdempotent(t *testing.T) {
	s := createTestStore(t, "inbox")
	ctx := context.Background()

	first, err := s.EnsureFolder(ctx, DefaultFolderName)
	require.NoError(t, err)
	second, err := s.EnsureFolder(ctx, DefaultFolderName)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFolders_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Folder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItems_CreateReadDelete(t *testing.T) {
	s := createTestStore(t, "inbox", "item-1", "item-2")
	ctx := context.Background()

	inbox, err := s.CreateFolder(ctx, DefaultFolderName)
	require.NoError(t, err)

	props := dynamic.NewMap()
	props.Set("tags", dynamic.List{dynamic.String("a"), dynamic.String("b")})
	props.Set("big", dynamic.Number("9007199254740993"))

	first, err := s.CreateItem(ctx, NewItem{FolderID: inbox.ID, Subject: "hello", Properties: props})
	require.NoError(t, err)
	assert.Equal(t, ImportanceNormal, first.Importance)

	_, err = s.CreateItem(ctx, NewItem{FolderID: inbox.ID, Subject: "second", Importance: ImportanceHigh})
	require.NoError(t, err)

	items, err := s.Items(ctx, inbox.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "item-1", items[0].ID)
	assert.Equal(t, "item-2", items[1].ID)
	assert.True(t, dynamic.Equal(props, items[0].Properties))
	assert.Equal(t, 0, items[1].Properties.Len())

	unread, err := s.CountUnread(ctx, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	read, err := s.SetRead(ctx, "item-1", true)
	require.NoError(t, err)
	assert.True(t, read.Read)

	unread, err = s.CountUnread(ctx, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	removed, err := s.DeleteItem(ctx, "item-2")
	require.NoError(t, err)
	assert.Equal(t, "second", removed.Subject)

	_, err = s.Item(ctx, "item-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItems_PropertiesStoredCanonically(t *testing.T) {
	s := createTestStore(t, "inbox", "item-1")
	ctx := context.Background()

	inbox, err := s.CreateFolder(ctx, DefaultFolderName)
	require.NoError(t, err)

	props := dynamic.NewMap()
	props.Set("z", dynamic.Bool(true))
	props.Set("a", dynamic.Int(1))
	_, err = s.CreateItem(ctx, NewItem{FolderID: inbox.ID, Subject: "s", Properties: props})
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT properties FROM items WHERE id = 'item-1'`).Scan(&raw))
	assert.Equal(t, `{"a":1,"z":true}`, raw)
}

func TestItems_UnknownFolderFails(t *testing.T) {
	s := createTestStore(t, "item-1")

	_, err := s.CreateItem(context.Background(), NewItem{FolderID: "missing", Subject: "s"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItems_InvalidImportanceFails(t *testing.T) {
	s := createTestStore(t, "inbox", "item-1")
	ctx := context.Background()

	inbox, err := s.CreateFolder(ctx, DefaultFolderName)
	require.NoError(t, err)
	_, err = s.CreateItem(ctx, NewItem{FolderID: inbox.ID, Subject: "s", Importance: "URGENT"})
	require.Error(t, err)
}

func TestItems_SetReadMissing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SetRead(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
