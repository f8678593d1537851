/*
Copyright 2017 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ownerspolicy

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads a Config snapshot whenever the local code-owners.config
// file backing it changes on disk. It exists for local dry-run tooling
// (spec §4's cmd/codeowners-check) that caches a project's
// code-owners.config as a file instead of re-fetching it from Gerrit on
// every invocation; a live submit-rule deployment re-resolves the
// snapshot per request instead and has no use for this type.
type Watcher struct {
	path    string
	log     *logrus.Entry
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *Config

	done chan struct{}
}

// NewWatcher loads path once and begins watching it for changes.
func NewWatcher(path string, log *logrus.Entry) (*Watcher, error) {
	cfg, err := loadFromFile(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, log: log, watcher: fw, current: cfg, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// Current returns the most recently loaded snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching and releases the underlying inotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := loadFromFile(w.path)
			if err != nil {
				w.log.WithError(err).Warn("reload code-owners.config failed, keeping previous snapshot")
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("code-owners.config watch error")
		}
	}
}

func loadFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ResolveTexts([]string{string(blob)})
}
