package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		rec := domain.NewRecord(userID)
		rec.Name = "Jane"
		rec.CredentialHash = "hash"
		now := time.Now().UTC().Truncate(time.Second)
		done := rec.OpenSession("onboarding", now)
		done.Answers["fullName"] = "Jane Doe"
		done.CurrentField = 1
		done.Status = domain.SessionCompleted
		done.ClosedAt = &now
		active := rec.OpenSession("survey", now)
		active.Answers["q1"] = "yes"

		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, "Jane", loaded.Name)
		assert.Equal(t, "hash", loaded.CredentialHash)
		assert.Equal(t, 2, loaded.SessionSeq)
		require.Len(t, loaded.Sessions, 2)

		got := loaded.Sessions[done.ID]
		require.NotNil(t, got)
		assert.Equal(t, domain.SessionCompleted, got.Status)
		assert.Equal(t, 1, got.CurrentField)
		if diff := cmp.Diff(done.Answers, got.Answers); diff != "" {
			t.Errorf("answers mismatch (-want +got):\n%s", diff)
		}
		require.NotNil(t, loaded.ActiveSession())
		assert.Equal(t, active.ID, loaded.ActiveSession().ID)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)
		loaded.ActiveSession().Answers["q1"] = "mutated"

		again, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "yes", again.ActiveSession().Answers["q1"])
	})

	t.Run("Overwrite", func(t *testing.T) {
		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)
		active := loaded.ActiveSession()
		active.Status = domain.SessionCancelled
		require.NoError(t, store.Save(ctx, loaded))

		again, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, again.ActiveSession())
		assert.Equal(t, domain.SessionCancelled, again.Sessions[active.ID].Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewRecord(userID)))

		require.NoError(t, store.Delete(ctx, userID), "Delete should not return error")

		_, err := store.Load(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound, "Load after Delete should return ErrUserNotFound")

		assert.NoError(t, store.Delete(ctx, userID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := userID + "-1"
		id2 := userID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewRecord(id1)))
		require.NoError(t, store.Save(ctx, domain.NewRecord(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, users, id1)
		assert.Contains(t, users, id2)
	})
}
