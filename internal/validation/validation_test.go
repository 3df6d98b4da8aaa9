package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	Username string `json:"username" validate:"required,min=3,max=32,username_chars"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestCheckValidInput(t *testing.T) {
	errs := Check(registerInput{Username: "flowtest", Email: "a@b.com", Password: "longenough"})
	assert.Nil(t, errs)
}

func TestUsernameRules(t *testing.T) {
	cases := map[string]string{
		"too short":      "ab",
		"too long":       "abcdefghijklmnopqrstuvwxyz0123456789",
		"spaces":         "has space",
		"dashes":         "has-dash",
		"script payload": "<script>alert(1)</script>",
	}
	for name, username := range cases {
		t.Run(name, func(t *testing.T) {
			errs := Check(registerInput{Username: username, Email: "a@b.com", Password: "longenough"})
			require.NotEmpty(t, errs)
			assert.Contains(t, fields(errs), "username")
		})
	}

	errs := Check(registerInput{Username: "Under_score9", Email: "a@b.com", Password: "longenough"})
	assert.Nil(t, errs)
}

func TestEmailAndPasswordRules(t *testing.T) {
	errs := Check(registerInput{Username: "flowtest", Email: "not-an-email", Password: "123"})
	require.Len(t, errs, 2)
	assert.ElementsMatch(t, []string{"email", "password"}, fields(errs))
}

func TestRequiredFields(t *testing.T) {
	errs := Check(registerInput{})
	require.Len(t, errs, 3)
}

func TestPatchStyleOptionalFields(t *testing.T) {
	type patch struct {
		Username *string `json:"username" validate:"omitempty,min=3,max=32,username_chars"`
		Email    *string `json:"email" validate:"omitempty,email"`
		Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
	}

	assert.Nil(t, Check(patch{}), "absent fields are not validated")

	bad := "x"
	errs := Check(patch{Username: &bad})
	require.NotEmpty(t, errs)
	assert.Contains(t, fields(errs), "username")

	role := "superuser"
	errs = Check(patch{Role: &role})
	require.NotEmpty(t, errs)
	assert.Contains(t, fields(errs), "role")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "flowtest", NormalizeUsername("  flowtest "))
	assert.Equal(t, "user@example.com", NormalizeEmail(" User@Example.COM "))
}
