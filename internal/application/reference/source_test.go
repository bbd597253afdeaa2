package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/storage/minio"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

const englishSpec = `{
  "version": "2.0",
  "biomarkers": [
    {"standard_name": "Hemoglobina", "category": "hematologico", "unit": "g/dL", "synonyms": ["Hb", "HGB"]},
    {"standard_name": "Glicose", "category": "metabolico", "unit": "mg/dL", "synonyms": ["glicemia"]}
  ]
}`

const portugueseSpec = `{
  "versao": "1.4",
  "data_atualizacao": "2024-03-01",
  "biomarcadores": [
    {"nome_padrao": "Creatinina", "categoria": "FUNÇÃO RENAL", "unidade": "mg/dL", "sinonimos": ["creat"]}
  ]
}`

type fakeObjectStore struct {
	objects map[string][]byte
	etags   map[string]string
	err     error
}

func (f *fakeObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.NotFound("object not found")
	}
	return data, nil
}

func (f *fakeObjectStore) Stat(_ context.Context, key string) (minio.ObjectInfo, error) {
	if f.err != nil {
		return minio.ObjectInfo{}, f.err
	}
	if _, ok := f.objects[key]; !ok {
		return minio.ObjectInfo{}, errors.NotFound("object not found")
	}
	return minio.ObjectInfo{Key: key, ETag: f.etags[key]}, nil
}

func writeSpec(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecode(t *testing.T) {
	spec, err := Decode([]byte(englishSpec))
	require.NoError(t, err)
	assert.Equal(t, "2.0", spec.Version)
	require.Len(t, spec.Biomarkers, 2)
	assert.Equal(t, []string{"Hb", "HGB"}, spec.Biomarkers[0].Synonyms)

	spec, err = Decode([]byte(portugueseSpec))
	require.NoError(t, err)
	assert.Equal(t, "1.4", spec.Version)
	assert.Equal(t, "2024-03-01", spec.UpdatedAt)
	assert.Equal(t, "Creatinina", spec.Biomarkers[0].StandardName)
	assert.Equal(t, "FUNÇÃO RENAL", spec.Biomarkers[0].Category)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"biomarkers": [`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSpecificationDecode))

	_, err = Decode([]byte(`{"version": "1"}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSpecificationEmpty))
}

func TestFileSource(t *testing.T) {
	path := writeSpec(t, t.TempDir(), englishSpec)
	src := FileSource{Path: path}

	spec, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, spec.Biomarkers, 2)
	assert.Equal(t, "file:"+path, src.Describe())
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := FileSource{Path: filepath.Join(dir, "missing.json")}.Load(context.Background())
	assert.True(t, errors.IsNotFound(err))

	bad := writeSpec(t, dir, "not json")
	_, err = FileSource{Path: bad}.Load(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeSpecificationDecode), "decode code survives wrapping")
}

func TestObjectSource(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{"spec.json": []byte(portugueseSpec)}}
	spec, err := ObjectSource{Store: store, Key: "spec.json"}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4", spec.Version)

	_, err = ObjectSource{Store: store, Key: "other.json"}.Load(context.Background())
	assert.True(t, errors.IsNotFound(err))
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.ReferenceConfig{Source: "file", Path: "/x.json"}, nil)
	require.NoError(t, err)
	assert.IsType(t, FileSource{}, src)

	src, err = NewSource(config.ReferenceConfig{Source: "minio", Object: "spec.json"}, &fakeObjectStore{})
	require.NoError(t, err)
	assert.Equal(t, "object:spec.json", src.Describe())

	_, err = NewSource(config.ReferenceConfig{Source: "minio", Object: "spec.json"}, nil)
	assert.Error(t, err)
	_, err = NewSource(config.ReferenceConfig{Source: "file"}, nil)
	assert.Error(t, err)
	_, err = NewSource(config.ReferenceConfig{Source: "http"}, nil)
	assert.Error(t, err)
}

func TestShippedSpecificationBuildsAnEngine(t *testing.T) {
	spec, err := FileSource{Path: filepath.Join("..", "..", "..", "configs", "biomarker-specification.json")}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0", spec.Version)

	engine, err := normalizer.NewEngine(spec, normalizer.DefaultEngineConfig(), nil)
	require.NoError(t, err)

	r := engine.Resolve("Glicemia de jejum")
	require.True(t, r.Matched())
	assert.Equal(t, "Glicose", r.Match.NormalizedName)
	assert.Equal(t, "metabolico", normalizer.NormalizeCategory(r.Match.Category))
}
