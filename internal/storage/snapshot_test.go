package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewSnapshotStore(dir, "state.json")
	require.NoError(t, err)
	assert.False(t, store.Exists())

	// Missing file loads as an empty snapshot.
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	now := time.Now().UTC().Truncate(time.Second)
	want := &Snapshot{
		Users: []*models.User{{
			ID: "u1", Name: "Finn", Email: "finn@campus.edu",
			PasswordHash: "$2a$10$fakehash", Role: models.RoleStudent, Verified: true,
			CreatedAt: now,
		}},
		Items: []*models.Item{{ID: "i1", Name: "Backpack", Status: models.StatusAvailable, DateReported: now}},
		Claims: []*models.Claim{
			{ID: "c1", ItemID: "i1", ClaimantID: "u2", Status: models.ClaimPending, CreatedAt: now},
		},
		Categories: []*models.Category{{ID: "cat1", Name: "Bags", Active: true, CreatedAt: now}},
		Watches:    []*models.Watch{{ID: "w1", UserID: "u1", ItemID: "i1", CreatedAt: now}},
	}
	require.NoError(t, store.Save(want))
	assert.True(t, store.Exists())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp file left behind.
	_, err = os.Stat(filepath.Join(dir, "state.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

// The user model hides PasswordHash from API responses, so the file
// format must carry it explicitly or every restart locks everyone out.
func TestSnapshotPreservesCredentialsAcrossRestart(t *testing.T) {
	ctx := context.Background()

	store, err := NewSnapshotStore(t.TempDir(), "state.json")
	require.NoError(t, err)

	users := services.NewMemoryUserService()
	_, err = users.Register(ctx, &models.RegisterRequest{
		Name:         "Finn",
		Email:        "finn@campus.edu",
		UniversityID: "U1",
		Password:     "hunter22",
	})
	require.NoError(t, err)

	require.NoError(t, store.Save(&Snapshot{Users: users.Snapshot()}))

	snap, err := store.Load()
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	assert.NotEmpty(t, snap.Users[0].PasswordHash)

	restarted := services.NewMemoryUserService()
	restarted.Restore(snap.Users)

	logged, err := restarted.Login(ctx, &models.LoginRequest{
		Email:    "finn@campus.edu",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "finn@campus.edu", logged.Email)
}

func TestSnapshotStoreCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewSnapshotStore(dir, "state.json")
	require.NoError(t, err)
	require.NoError(t, store.Save(&Snapshot{}))

	_, err = os.Stat(filepath.Join(dir, "state.json"))
	assert.NoError(t, err)
}
