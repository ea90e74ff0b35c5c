package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	t.Run("versions are sorted and unique", func(t *testing.T) {
		seen := make(map[int]bool)
		last := 0
		for _, m := range migrations {
			assert.Greater(t, m.Version, last)
			assert.False(t, seen[m.Version])
			seen[m.Version] = true
			last = m.Version
		}
	})

	t.Run("every migration has up and down SQL", func(t *testing.T) {
		for _, m := range migrations {
			assert.NotEmpty(t, m.UpSQL, "migration %d (%s) missing up SQL", m.Version, m.Name)
			assert.NotEmpty(t, m.DownSQL, "migration %d (%s) missing down SQL", m.Version, m.Name)
			assert.NotEmpty(t, m.Name)
		}
	})

	t.Run("schema covers users, links and variants", func(t *testing.T) {
		var all strings.Builder
		for _, m := range migrations {
			all.WriteString(m.UpSQL)
		}
		schema := all.String()
		assert.Contains(t, schema, "CREATE TABLE")
		assert.Contains(t, schema, "users")
		assert.Contains(t, schema, "links")
		assert.Contains(t, schema, "variants")
		assert.Contains(t, schema, "short_code")
	})
}

func TestNewMigratorWithMigrations(t *testing.T) {
	custom := []Migration{
		{Version: 1, Name: "create_things", UpSQL: "CREATE TABLE things ()", DownSQL: "DROP TABLE things"},
	}
	m := NewMigratorWithMigrations(nil, custom)
	require.NotNil(t, m)
	assert.Len(t, m.migrations, 1)
}
