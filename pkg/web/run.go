package web

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reloadDebounce = 200 * time.Millisecond

// Run serves on addr and watches the config file until ctx is cancelled, then
// runs the cleanup registered with WithCleanup.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Watch(gCtx); err != nil {
			s.log.Warn("config watcher stopped", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		s.log.Info("web view listening", zap.String("address", "http://"+addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http server shutdown", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	if s.cleanup != nil {
		if cerr := s.cleanup(); cerr != nil {
			s.log.Warn("shutdown cleanup failed", zap.Error(cerr))
		}
	}
	return err
}

// Watch reloads the host list whenever the config file changes. The parent
// directory is watched so editors that replace the file by rename are seen.
// Bursts of events are coalesced.
func (s *Server) Watch(ctx context.Context) error {
	if s.configPath == "" {
		<-ctx.Done()
		return nil
	}
	target := filepath.Clean(s.configPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "config watcher")
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(target))
	}
	s.log.Debug("watching config", zap.String("path", target))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.log.Warn("config reload failed, keeping previous hosts", zap.Error(err))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("config watcher error", zap.Error(werr))
		}
	}
}
