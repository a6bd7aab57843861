package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	body, err := fs.ReadFile(Migrations, "00001_init.sql")
	require.NoError(t, err)

	s := string(body)
	assert.True(t, strings.HasPrefix(s, "-- +goose Up"))
	assert.Contains(t, s, "-- +goose Down")
	for _, c := range []string{"users_username_key", "users_email_key", "departments_name_key", "revoked_tokens"} {
		assert.Contains(t, s, c)
	}
}
