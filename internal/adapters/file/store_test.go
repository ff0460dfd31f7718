package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/formbot/internal/adapters/file"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_EscapesUserIDs(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRecord("../escape/me")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "record stays inside the base path")
	assert.False(t, entries[0].IsDir())

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"../escape/me"}, ids)

	_, err = os.Stat(filepath.Join(dir, "..", "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	rec := domain.NewRecord("u")
	require.NoError(t, store.Save(ctx, rec))
	rec.Name = "again"
	require.NoError(t, store.Save(ctx, rec))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loaded, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "again", loaded.Name)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_FailedRenameKeepsPreviousRecord(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the destination is removed before rename on windows")
	}
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	rec := domain.NewRecord("u")
	rec.Name = "Jane"
	rec.CredentialHash = "hash"
	rec.OpenSession("survey", time.Now().UTC()).Answers["email"] = "jane@example.com"
	require.NoError(t, store.Save(ctx, rec))

	file.SetRename(store, func(string, string) error { return errors.New("disk full") })
	rec.Name = "Mallory"
	err := store.Save(ctx, rec)
	assert.ErrorContains(t, err, "disk full")

	loaded, err := store.Load(ctx, "u")
	require.NoError(t, err, "previous record stays readable")
	assert.Equal(t, "Jane", loaded.Name)
	assert.Equal(t, "hash", loaded.CredentialHash)
	require.NotNil(t, loaded.ActiveSession())
	assert.Equal(t, "jane@example.com", loaded.ActiveSession().Answers["email"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}
