package watch

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"callout_framework/internal/config"
	"callout_framework/internal/datahub"
	"callout_framework/internal/metrics"
)

const debounceDelay = 2 * time.Second

// Watcher monitors the input directory for changed source CSVs and triggers
// a debounced full reload. Spreadsheet exports often rewrite a file in
// several events; the debounce collapses them into one reload.
type Watcher struct {
	cfg config.Config
	hub *datahub.Hub

	mu    sync.Mutex
	timer *time.Timer
}

func New(cfg config.Config, hub *datahub.Hub) *Watcher {
	return &Watcher{cfg: cfg, hub: hub}
}

func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.EnableWatcher {
		log.Println("watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				w.mu.Lock()
				if w.timer != nil {
					w.timer.Stop()
				}
				w.mu.Unlock()
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && w.isSource(evt.Name) {
					w.scheduleReload(evt.Name)
				}
			case err := <-watcher.Errors:
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	if err := watcher.Add(w.cfg.InputDir); err != nil {
		return err
	}
	// The pickliste sheets live one level down.
	if err := watcher.Add(w.cfg.IncidentsDir); err != nil {
		log.Printf("watcher: cannot watch %s: %v", w.cfg.IncidentsDir, err)
	}
	return nil
}

func (w *Watcher) isSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func (w *Watcher) scheduleReload(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	log.Printf("watcher: %s changed, reload in %s", filepath.Base(name), debounceDelay)
	w.timer = time.AfterFunc(debounceDelay, func() {
		if err := w.hub.ReloadAll(); err == nil {
			metrics.IncReload()
		}
	})
}
