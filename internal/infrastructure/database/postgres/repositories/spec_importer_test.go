package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres"
	pkgerrors "github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

func importSpec() *biomarker.Specification {
	return &biomarker.Specification{
		Version:    "2.0",
		Categories: []biomarker.CategoryInfo{{Name: "PERFIL LIPÍDICO", Order: 7}},
		Biomarkers: []biomarker.CanonicalBiomarker{
			{StandardName: "Hemoglobina", Category: "HEMOGRAMA", Unit: "g/dL", Synonyms: []string{"Hemoglobina", "Hb"}},
			{StandardName: "Colesterol Total", Category: "PERFIL LIPÍDICO", Unit: "mg/dL", Synonyms: []string{"CT", " "}},
			{StandardName: "Hematócrito", Category: "HEMOGRAMA", Unit: "%"},
		},
	}
}

func newImporter(t *testing.T) (*SpecImporter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSpecImporter(postgres.NewConnectionWithDB(db, nil), nil), mock
}

func expectClear(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM biomarker_variations").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM biomarker_category_overrides").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM category_display_order").WillReturnResult(sqlmock.NewResult(0, 2))
}

func TestPlanImport(t *testing.T) {
	cats, overrides, variations := planImport(importSpec())

	assert.Equal(t, []categoryRow{{"HEMOGRAMA", 1}, {"PERFIL LIPÍDICO", 7}}, cats)
	require.Len(t, overrides, 3)
	assert.Equal(t, overrideRow{name: "Hematócrito", key: "hematocrito", category: "HEMOGRAMA", order: 3}, overrides[2])
	require.Len(t, variations, 2, "synonyms equal to the standard name and blanks are skipped")
	assert.Equal(t, "Hb", variations[0].variation)
	assert.Equal(t, "ct", variations[1].key)
	assert.Equal(t, "mg/dL", variations[1].unit)
}

func TestSpecImporter_Import(t *testing.T) {
	imp, mock := newImporter(t)

	expectClear(mock)
	mock.ExpectExec(`INSERT INTO category_display_order \(category_key, display_order\) VALUES \(\$1,\$2\),\(\$3,\$4\)`).
		WithArgs("HEMOGRAMA", 1, "PERFIL LIPÍDICO", 7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO biomarker_category_overrides`).
		WithArgs("Hemoglobina", "hemoglobina", "HEMOGRAMA", 1,
			"Colesterol Total", "colesterol total", "PERFIL LIPÍDICO", 2,
			"Hematócrito", "hematocrito", "HEMOGRAMA", 3).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO biomarker_variations`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	summary, err := imp.Import(context.Background(), importSpec())
	require.NoError(t, err)
	assert.Equal(t, &ImportSummary{Version: "2.0", Categories: 2, Overrides: 3, Variations: 2}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpecImporter_BatchesVariations(t *testing.T) {
	spec := &biomarker.Specification{}
	for i := 0; i < 3; i++ {
		b := biomarker.CanonicalBiomarker{StandardName: fmt.Sprintf("Marker %d", i), Category: "outros"}
		for j := 0; j < 50; j++ {
			b.Synonyms = append(b.Synonyms, fmt.Sprintf("m%d alias %d", i, j))
		}
		spec.Biomarkers = append(spec.Biomarkers, b)
	}

	imp, mock := newImporter(t)
	expectClear(mock)
	mock.ExpectExec("INSERT INTO category_display_order").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO biomarker_category_overrides").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO biomarker_variations").WillReturnResult(sqlmock.NewResult(0, 100))
	mock.ExpectExec("INSERT INTO biomarker_variations").WillReturnResult(sqlmock.NewResult(0, 50))
	mock.ExpectCommit()

	summary, err := imp.Import(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 150, summary.Variations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpecImporter_RollsBackOnFailure(t *testing.T) {
	imp, mock := newImporter(t)

	expectClear(mock)
	mock.ExpectExec("INSERT INTO category_display_order").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := imp.Import(context.Background(), importSpec())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSpecificationImport))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpecImporter_RejectsInconsistentSpec(t *testing.T) {
	imp, mock := newImporter(t)

	spec := importSpec()
	spec.Biomarkers[2].Synonyms = []string{"hb"}

	_, err := imp.Import(context.Background(), spec)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeReferenceIntegrity))
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is written")
}

func TestSpecImporter_RejectsEmptySpec(t *testing.T) {
	imp, _ := newImporter(t)
	_, err := imp.Import(context.Background(), &biomarker.Specification{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSpecificationEmpty))
}
