package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunMigrations_InputValidation(t *testing.T) {
	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		_, err := RunMigrations("postgres://test", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		_, err := RunMigrations("", "./migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://./migrations/postgres", sourceURL("./migrations/postgres"))
	assert.Equal(t, "file:///srv/migrations", sourceURL("file:///srv/migrations"))
}
