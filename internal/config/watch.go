package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long Watch waits after the last change event before
// re-reading the file. A single save produces several events (truncate,
// write, sometimes a rename); loading on the first one would observe a
// half-written file.
const settleDelay = 150 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config once
// the file has settled after a change. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and discarded; the
// previous config stays active and onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	// settleC is nil (blocks forever) until a change is pending.
	var (
		settle  *time.Timer
		settleC <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Coalesce event bursts: (re)start the settle timer and load only
			// once it fires with no further changes.
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(settleDelay)
			settleC = settle.C

		case <-settleC:
			settle, settleC = nil, nil

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

			// An atomic save replaces the inode; watch the new one.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
