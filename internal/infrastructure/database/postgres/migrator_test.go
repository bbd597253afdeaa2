package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/biomarker-engine/pkg/errors"
)

func TestMigrationFiles_Paired(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups, downs := 0, 0
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups++
			down := strings.TrimSuffix(f, ".up.sql") + ".down.sql"
			assert.Contains(t, files, down, "missing down migration for %s", f)
		case strings.HasSuffix(f, ".down.sql"):
			downs++
		default:
			t.Errorf("unexpected file %s", f)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrations_CreateReferenceTables(t *testing.T) {
	body, err := fs.ReadFile(migrationFS, "migrations/000001_create_reference_tables.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"category_display_order", "biomarker_category_overrides", "biomarker_variations"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestMigrator_DownRejectsNonPositiveSteps(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewMigrator(db, nil).Down(context.Background(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
}
