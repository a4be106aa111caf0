package web

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"tareas-cli/internal/store"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the dispatcher's state when another process (usually the CLI) saves the
// store. It compares the stored revision with the in-memory one, so the server's own saves
// never trigger a reload. Watch returns when ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	if s.cfg.Store.Dir == "" {
		return errors.New("web: watch needs a store dir")
	}
	if err := s.cfg.Store.Ensure(); err != nil {
		return err
	}
	revs, err := s.cfg.Store.OpenRevisionReader(ctx)
	if err != nil {
		return fmt.Errorf("web: open revision reader: %w", err)
	}
	defer revs.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("web: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.cfg.Store.Dir); err != nil {
		return fmt.Errorf("web: watch %s: %w", s.cfg.Store.Dir, err)
	}

	dbFile := filepath.Base(s.cfg.Store.SQLitePath())
	relevant := func(ev fsnotify.Event) bool {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return false
		}
		name := filepath.Base(ev.Name)
		return name == dbFile || name == dbFile+"-wal"
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev) {
				timer.Reset(s.cfg.Debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("store watcher error", "err", err)
		case <-timer.C:
			if err := s.reloadIfChanged(ctx, revs); err != nil && ctx.Err() == nil {
				s.logger.Warn("store reload failed", "err", err)
			}
		}
	}
}

func (s *Server) reloadIfChanged(ctx context.Context, revs *store.RevisionReader) error {
	onDisk, err := revs.Revision(ctx)
	if err != nil {
		return err
	}
	var inMemory string
	if err := s.d.Snapshot(ctx, func(db *store.DB) { inMemory = db.Revision }); err != nil {
		return err
	}
	if onDisk == "" || onDisk == inMemory {
		return nil
	}
	db, err := s.cfg.Store.LoadContext(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("store changed on disk", "from", inMemory, "to", onDisk)
	return s.d.Replace(ctx, db)
}
