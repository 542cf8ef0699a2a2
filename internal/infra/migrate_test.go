package infra

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitMigrationDeclaresArtifactUniqueness(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "migrations/0001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "constraint logos_prediction_id_key unique (prediction_id)")
	assert.Contains(t, string(raw), "check (credits >= 0)")
}

func TestRunMigrationsRejectsUnknownDirection(t *testing.T) {
	err := RunMigrations("postgres://localhost:1/none?sslmode=disable&connect_timeout=1", MigrateDirection("sideways"), zerolog.Nop())
	assert.Error(t, err)
}
