// Package reference loads the biomarker specification, watches it for
// changes and imports it into the override store.
package reference

import (
	"context"
	"encoding/json"
	"os"

	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/storage/minio"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// Source yields the current specification.
type Source interface {
	Load(ctx context.Context) (*biomarker.Specification, error)
	// Describe names the source for logs.
	Describe() string
}

// ObjectStore is the part of the minio client a Source needs.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (minio.ObjectInfo, error)
}

// Decode parses a specification document.  Both English and Portuguese keys
// are accepted.
func Decode(data []byte) (*biomarker.Specification, error) {
	var spec biomarker.Specification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSpecificationDecode, "decode specification")
	}
	if len(spec.Biomarkers) == 0 {
		return nil, errors.New(errors.ErrCodeSpecificationEmpty, "specification has no biomarkers")
	}
	return &spec, nil
}

// FileSource reads the specification from a local JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context) (*biomarker.Specification, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("specification file not found").WithDetail(s.Path).WithCause(err)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeInternal, "read %s", s.Path)
	}
	spec, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnknown, "load %s", s.Path)
	}
	return spec, nil
}

func (s FileSource) Describe() string { return "file:" + s.Path }

// ObjectSource reads the specification from an object store.
type ObjectSource struct {
	Store ObjectStore
	Key   string
}

func (s ObjectSource) Load(ctx context.Context) (*biomarker.Specification, error) {
	data, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s ObjectSource) Describe() string { return "object:" + s.Key }

// NewSource picks the source named by cfg.  store may be nil for file
// sources.
func NewSource(cfg config.ReferenceConfig, store ObjectStore) (Source, error) {
	switch cfg.Source {
	case "", "file":
		if cfg.Path == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "reference path is required")
		}
		return FileSource{Path: cfg.Path}, nil
	case "minio":
		if store == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "minio source needs an object store")
		}
		return ObjectSource{Store: store, Key: cfg.Object}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "unknown reference source %q", cfg.Source)
	}
}
