package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scomapp/scom-be/internal/models"
)

func ptr(s string) *string { return &s }

func TestAdminCreate(t *testing.T) {
	db := newTestDB(t)
	s := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	user, err := s.Create(ctx, "newuser", "new@user.io", "supersecret", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role, "role defaults to user")

	// The dependent profile row exists after the transaction.
	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM profiles WHERE user_id = ?", user.ID).Scan(&count))
	assert.Equal(t, 1, count)

	admin, err := s.Create(ctx, "boss", "boss@user.io", "supersecret", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestAdminCreateDuplicate(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	_, err := s.Create(ctx, "newuser", "new@user.io", "supersecret", "")
	require.NoError(t, err)

	_, err = s.Create(ctx, "newuser", "other@user.io", "supersecret", "")
	assert.ErrorIs(t, err, ErrDuplicate)

	// The failed create must not leave partial rows behind.
	var users int
	db := s.db
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 1, users)
}

func TestConcurrentCreateSameUsername(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, "raced", "raced@user.io", "supersecret", "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			// The loser sees the duplicate, either from the pre-check or from
			// the UNIQUE constraint backstop.
			assert.ErrorIs(t, err, ErrDuplicate)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one create may win")

	var rows int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM users WHERE username = 'raced'").Scan(&rows))
	assert.Equal(t, 1, rows, "never two rows with the same username")
}

func TestUpdatePartialFields(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	user, err := s.Create(ctx, "target", "target@user.io", "supersecret", "")
	require.NoError(t, err)

	updated, err := s.Update(ctx, user.ID, "someadmin", UserPatch{Email: ptr("fresh@user.io")})
	require.NoError(t, err)
	assert.Equal(t, "fresh@user.io", updated.Email)
	assert.Equal(t, "target", updated.Username, "unsupplied fields stay put")
}

func TestUpdateNothingToUpdate(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	user, err := s.Create(ctx, "target", "target@user.io", "supersecret", "")
	require.NoError(t, err)

	_, err = s.Update(ctx, user.ID, "someadmin", UserPatch{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	// Supplying values identical to the current row is also a no-op.
	_, err = s.Update(ctx, user.ID, "someadmin", UserPatch{Username: ptr("target")})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
}

func TestUpdateSelfRoleChangeForbidden(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	admin, err := s.Create(ctx, "boss", "boss@user.io", "supersecret", models.RoleAdmin)
	require.NoError(t, err)

	_, err = s.Update(ctx, admin.ID, admin.ID, UserPatch{Role: ptr(models.RoleUser)})
	assert.ErrorIs(t, err, ErrSelfRoleChange)

	// No mutation happened.
	var role string
	require.NoError(t, s.db.QueryRow(
		"SELECT role FROM users WHERE id = ?", admin.ID).Scan(&role))
	assert.Equal(t, models.RoleAdmin, role)

	// Same role supplied for self is tolerated only alongside real changes.
	updated, err := s.Update(ctx, admin.ID, admin.ID,
		UserPatch{Role: ptr(models.RoleAdmin), Username: ptr("bigboss")})
	require.NoError(t, err)
	assert.Equal(t, "bigboss", updated.Username)
	assert.Equal(t, models.RoleAdmin, updated.Role)
}

func TestUpdateDuplicateChecksOnlyChangedFields(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	_, err := s.Create(ctx, "taken", "taken@user.io", "supersecret", "")
	require.NoError(t, err)
	user, err := s.Create(ctx, "target", "target@user.io", "supersecret", "")
	require.NoError(t, err)

	_, err = s.Update(ctx, user.ID, "someadmin", UserPatch{Username: ptr("taken")})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Update(ctx, user.ID, "someadmin", UserPatch{Email: ptr("taken@user.io")})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Re-submitting the user's own current username alongside a change passes.
	updated, err := s.Update(ctx, user.ID, "someadmin",
		UserPatch{Username: ptr("target"), Email: ptr("changed@user.io")})
	require.NoError(t, err)
	assert.Equal(t, "changed@user.io", updated.Email)
}

func TestUpdatePasswordRehash(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	user, err := s.Create(ctx, "target", "target@user.io", "oldpassword", "")
	require.NoError(t, err)

	_, err = s.Update(ctx, user.ID, "someadmin", UserPatch{Password: ptr("newpassword")})
	require.NoError(t, err)

	var hash string
	require.NoError(t, s.db.QueryRow(
		"SELECT password_hash FROM users WHERE id = ?", user.ID).Scan(&hash))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("newpassword")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("oldpassword")))
}

func TestUpdateUnknownUser(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)

	_, err := s.Update(context.Background(), "00000000-0000-0000-0000-000000000000",
		"someadmin", UserPatch{Username: ptr("whoever")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	user, err := s.Create(ctx, "target", "target@user.io", "supersecret", "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, user.ID, "someadmin"))

	// Profile row went with the user.
	var profiles int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM profiles WHERE user_id = ?", user.ID).Scan(&profiles))
	assert.Equal(t, 0, profiles)

	assert.ErrorIs(t, s.Delete(ctx, user.ID, "someadmin"), ErrNotFound)
}

func TestDeleteSelfForbidden(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	admin, err := s.Create(ctx, "boss", "boss@user.io", "supersecret", models.RoleAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, admin.ID, admin.ID), ErrSelfDelete)

	var count int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM users WHERE id = ?", admin.ID).Scan(&count))
	assert.Equal(t, 1, count, "row still present")
}

func TestListPagination(t *testing.T) {
	s := NewUserService(newTestDB(t), bcrypt.MinCost)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := s.Create(ctx, name, name+"@user.io", "supersecret", "")
		require.NoError(t, err)
	}

	users, total, err := s.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 3, total)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}

	users, total, err = s.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 3, total)
}
