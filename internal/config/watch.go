package config

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"

	logx "httpcron/pkg/logx"
)

const (
	// Editors often write a file in several steps; reload once they settle.
	reloadSettle = 250 * time.Millisecond

	watchRetryMin = 250 * time.Millisecond
	watchRetryMax = 5 * time.Second
)

// Watch reloads the config whenever the file changes, until ctx is done.
// It watches the parent directory so atomic replace-by-rename is seen, and
// recreates the watcher with jittered backoff if it fails.
func (m *Manager) Watch(ctx context.Context) error {
	dir, name := filepath.Split(m.path)
	if dir == "" {
		dir = "."
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = watchRetryMin
	retry.MaxInterval = watchRetryMax
	retry.Reset()

	for ctx.Err() == nil {
		err := m.watchDir(ctx, dir, name, retry.Reset)
		if ctx.Err() != nil {
			break
		}
		wait := retry.NextBackOff()
		m.log.Warn("config watcher failed; retrying",
			logx.String("dir", dir),
			logx.Duration("in", wait),
			logx.Err(err),
		)
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	return nil
}

// watchDir runs one watcher until ctx is done or the watcher breaks.
// started is called once the directory is being watched.
func (m *Manager) watchDir(ctx context.Context, dir, name string, started func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	started()
	m.log.Debug("watching config", logx.String("dir", dir), logx.String("file", name))

	settle := time.NewTimer(reloadSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-settle.C:
			m.reload(ctx)
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			if filepath.Base(ev.Name) == name && ev.Op != 0 {
				settle.Reset(reloadSettle)
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			if errors.Is(werr, fsnotify.ErrEventOverflow) {
				// Events were lost; the file may have changed.
				settle.Reset(reloadSettle)
				continue
			}
			m.log.Warn("config watch error", logx.Err(werr))
		}
	}
}
