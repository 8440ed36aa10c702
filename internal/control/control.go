package control

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Request is a user control request delivered through the control file
type Request string

const (
	RequestNone  Request = ""
	RequestPause Request = "pause"
	RequestStop  Request = "stop"
)

const controlFile = "control"

// Write places a control request for a running orchestrator. The
// request is observed at the next checkpoint boundary.
func Write(stateDir string, req Request) error {
	return os.WriteFile(filepath.Join(stateDir, controlFile), []byte(req), 0644)
}

// Read returns the pending control request, RequestNone if absent
func Read(stateDir string) (Request, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, controlFile))
	if os.IsNotExist(err) {
		return RequestNone, nil
	}
	if err != nil {
		return RequestNone, err
	}
	switch req := Request(strings.TrimSpace(string(data))); req {
	case RequestPause, RequestStop:
		return req, nil
	default:
		return RequestNone, nil
	}
}

// Clear removes a pending control request
func Clear(stateDir string) error {
	err := os.Remove(filepath.Join(stateDir, controlFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Watcher observes the control file and exposes the latest request.
// The orchestrator polls Pending at checkpoint boundaries, so a
// request never interrupts an in-flight agent session.
type Watcher struct {
	watcher  *fsnotify.Watcher
	stateDir string

	mu      sync.Mutex
	pending Request

	cancel context.CancelFunc
}

// NewWatcher creates a watcher over the state directory. The control
// file itself need not exist yet.
func NewWatcher(stateDir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(stateDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, stateDir: stateDir}

	// A request placed before the watcher started still counts.
	if req, err := Read(stateDir); err == nil {
		w.pending = req
	}
	return w, nil
}

// Start begins watching for control file changes
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Stop stops watching
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}

// Pending returns the latest observed control request
func (w *Watcher) Pending() Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != controlFile {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Op&fsnotify.Remove != 0 {
		w.pending = RequestNone
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if req, err := Read(w.stateDir); err == nil {
		w.pending = req
	}
}
