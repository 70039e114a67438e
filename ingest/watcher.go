package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"flipscore/store"
)

// Imports fire only after a file has stopped changing for this long, so a
// CSV still being copied in is read once, complete, rather than half-written
// and permanently marked imported.
const defaultSettleDelay = time.Second

// Watcher monitors the results directory for new CSV exports and imports
// them. After each import it notifies onImport with the jurisdictions that
// received new rows.
type Watcher struct {
	dir      string
	store    *store.Store
	log      *zap.Logger
	onImport func(context.Context, []string)
	settle   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(dir string, st *store.Store, log *zap.Logger, onImport func(context.Context, []string)) *Watcher {
	return &Watcher{
		dir:      dir,
		store:    st,
		log:      log,
		onImport: onImport,
		settle:   defaultSettleDelay,
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching the results directory.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && isCSV(evt.Name) {
					w.scheduleImport(ctx, evt.Name)
				}
			case err := <-watcher.Errors:
				w.log.Warn("watcher error", zap.Error(err))
			}
		}
	}()
	return watcher.Add(w.dir)
}

// scheduleImport resets the settle timer for a path; every further write
// pushes the import out again until the file goes quiet.
func (w *Watcher) scheduleImport(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.importFile(ctx, path)
	})
}

// Backfill imports existing files the watcher was not running to see. Files
// already on disk are at rest, so no settle delay applies.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.dir, "*.csv"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		w.importFile(ctx, path)
	}
	return nil
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	imported, err := w.store.FileImported(ctx, path)
	if err != nil {
		w.log.Error("import ledger check failed", zap.String("path", path), zap.Error(err))
		return
	}
	if imported {
		w.log.Debug("already imported", zap.String("path", path))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		w.log.Error("open failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	records, warnings, err := ParseResults(f)
	if err != nil {
		w.log.Error("parse failed", zap.String("path", path), zap.Error(err))
		return
	}
	for _, warn := range warnings {
		w.log.Warn("skipped row", zap.String("path", path), zap.Int("row", warn.Row), zap.String("reason", warn.Message))
	}

	n, err := w.store.InsertVoteRecords(ctx, path, records)
	if err != nil {
		w.log.Error("insert failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.log.Info("imported results file", zap.String("path", path), zap.Int("rows", n), zap.Int("skipped", len(warnings)))

	if w.onImport == nil {
		return
	}
	seen := make(map[string]struct{})
	var jurisdictions []string
	for _, rec := range records {
		if _, ok := seen[rec.Jurisdiction]; ok {
			continue
		}
		seen[rec.Jurisdiction] = struct{}{}
		jurisdictions = append(jurisdictions, rec.Jurisdiction)
	}
	if len(jurisdictions) > 0 {
		w.onImport(ctx, jurisdictions)
	}
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
