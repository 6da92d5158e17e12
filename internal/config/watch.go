// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Global whenever the on-disk config file changes,
// letting an operator adjust suppression rules or tool timeouts without
// restarting a long-lived control-plane process.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	onError func(error)
}

// WatchDefault starts watching the same path Load() reads from. Reload
// errors (a config edited into invalid YAML, or one that now fails
// validation) are logged and otherwise ignored: Global keeps its last
// good value rather than being left in a half-applied state.
func WatchDefault(ctx context.Context) (*Watcher, error) {
	path, err := defaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Watch(ctx, path)
}

// Watch starts watching path for changes, reloading Global on every
// write event. The returned Watcher stops when ctx is cancelled.
func Watch(ctx context.Context, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, fsw: fsw, onError: func(err error) {
		slog.Error("config hot-reload failed, keeping previous configuration", "path", path, "error", err)
	}}

	go w.run(ctx)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := loadFrom(w.path); err != nil {
		w.onError(err)
	}
}
