package migrations

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchema(t *testing.T) {
	source, err := iofs.New(migrationFiles, "schema")
	require.NoError(t, err)

	defer source.Close()

	version, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	up, _, err := source.ReadUp(version)
	require.NoError(t, err)

	defer up.Close()

	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CONSTRAINT short_links_code_key UNIQUE (code)")

	down, _, err := source.ReadDown(version)
	require.NoError(t, err)

	_ = down.Close()
}
