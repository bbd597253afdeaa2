package reference

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// Reloader accepts a new specification.  validation.Service implements it.
type Reloader interface {
	Reload(ctx context.Context, spec *biomarker.Specification) error
}

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// FileWatcher reloads when the specification file changes.  It watches the
// parent directory so atomic rename-over saves are seen.
type FileWatcher struct {
	source   FileSource
	target   Reloader
	logger   logging.Logger
	debounce time.Duration
}

// NewFileWatcher watches source.Path and feeds target.
func NewFileWatcher(source FileSource, target Reloader, log logging.Logger) *FileWatcher {
	return &FileWatcher{
		source:   source,
		target:   target,
		logger:   logging.OrNop(log).Named("spec_watcher"),
		debounce: DefaultDebounce,
	}
}

// Run blocks until ctx is done.
func (w *FileWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "create file watcher")
	}
	defer fw.Close()

	path := filepath.Clean(w.source.Path)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, errors.ErrCodeInternal, "watch %s", filepath.Dir(path))
	}
	w.logger.Info("watching specification", logging.String("path", path))

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *FileWatcher) reload(ctx context.Context) {
	spec, err := w.source.Load(ctx)
	if err != nil {
		w.logger.Error("specification reload skipped", logging.String("path", w.source.Path), logging.Err(err))
		return
	}
	if err := w.target.Reload(ctx, spec); err != nil {
		w.logger.Error("specification rejected", logging.String("path", w.source.Path), logging.Err(err))
	}
}

// ObjectPoller reloads when the ETag of the specification object changes.
type ObjectPoller struct {
	source   ObjectSource
	target   Reloader
	logger   logging.Logger
	interval time.Duration
	lastETag string
}

// NewObjectPoller polls source every interval.
func NewObjectPoller(source ObjectSource, target Reloader, interval time.Duration, log logging.Logger) *ObjectPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ObjectPoller{
		source:   source,
		target:   target,
		logger:   logging.OrNop(log).Named("spec_poller"),
		interval: interval,
	}
}

// Run records the current ETag and blocks until ctx is done.
func (p *ObjectPoller) Run(ctx context.Context) error {
	if info, err := p.source.Store.Stat(ctx, p.source.Key); err == nil {
		p.lastETag = info.ETag
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *ObjectPoller) poll(ctx context.Context) {
	info, err := p.source.Store.Stat(ctx, p.source.Key)
	if err != nil {
		p.logger.Warn("specification stat failed", logging.String("key", p.source.Key), logging.Err(err))
		return
	}
	if info.ETag == p.lastETag {
		return
	}
	spec, err := p.source.Load(ctx)
	if err != nil {
		p.logger.Error("specification reload skipped", logging.String("key", p.source.Key), logging.Err(err))
		return
	}
	if err := p.target.Reload(ctx, spec); err != nil {
		p.logger.Error("specification rejected", logging.String("key", p.source.Key), logging.Err(err))
		return
	}
	p.lastETag = info.ETag
	p.logger.Info("specification object changed", logging.String("etag", info.ETag))
}
