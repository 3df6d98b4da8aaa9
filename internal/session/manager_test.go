package session

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scomapp/scom-be/internal/database"
	"github.com/scomapp/scom-be/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(t *testing.T) *Manager {
	return NewManager(newTestDB(t), time.Hour, "sid", false)
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	assert.False(t, s.Authenticated())

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.False(t, got.Authenticated())
}

func TestGetUnknownID(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredSessionTreatedAsAbsent(t *testing.T) {
	db := newTestDB(t)
	m := NewManager(db, time.Hour, "sid", false)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = db.Exec("UPDATE sessions SET expires_at = ? WHERE id = ?",
		time.Now().UTC().Add(-time.Minute), s.ID)
	require.NoError(t, err)

	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachStoresSnapshot(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	user := models.User{ID: "u1", Username: "flowtest", Email: "f@t.io", Role: models.RoleAdmin}
	require.NoError(t, m.Attach(ctx, s, user))

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Authenticated())
	assert.True(t, got.IsAdmin())
	assert.Equal(t, "flowtest", got.Username)
	assert.Equal(t, "f@t.io", got.Email)
}

func TestRegenerateSwapsID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, m.SetCSRFSecret(ctx, s, "topsecret"))
	oldID := s.ID

	rec := httptest.NewRecorder()
	require.NoError(t, m.Regenerate(ctx, rec, s))

	assert.NotEqual(t, oldID, s.ID)

	// The fixated id is gone; the new one carries the row contents over.
	_, err = m.Get(ctx, oldID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "topsecret", got.CSRFSecret)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, s.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestDestroy(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, rec, s))

	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0, "cookie must be expired")
}

func TestDestroyWithoutSession(t *testing.T) {
	m := newTestManager(t)

	rec := httptest.NewRecorder()
	assert.NoError(t, m.Destroy(context.Background(), rec, nil))
}

func TestRefreshRoleAndSyncIdentity(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Attach(ctx, s, models.User{ID: "u1", Username: "old", Email: "old@x.io", Role: models.RoleUser}))

	require.NoError(t, m.RefreshRole(ctx, s, models.RoleAdmin))
	require.NoError(t, m.SyncIdentity(ctx, s, "new", "new@x.io"))

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "new", got.Username)
	assert.Equal(t, "new@x.io", got.Email)
}

func TestDeleteExpired(t *testing.T) {
	db := newTestDB(t)
	m := NewManager(db, time.Hour, "sid", false)
	ctx := context.Background()

	live, err := m.Create(ctx)
	require.NoError(t, err)

	stale, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE sessions SET expires_at = ? WHERE id = ?",
		time.Now().UTC().Add(-time.Minute), stale.ID)
	require.NoError(t, err)

	n, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = m.Get(ctx, live.ID)
	assert.NoError(t, err)
}
