package staticredirect

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/getlantern/golog"
)

// ErrNotFileSource is returned when watching a worker whose manifest doesn't
// come from disk.
var ErrNotFileSource = errors.New("worker manifest is not a file")

// Watcher starts a new generation on a Worker whenever its manifest file is
// written or replaced.
type Watcher struct {
	log      golog.Logger
	worker   *Worker
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mx      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for w, which must use a FileSource. A debounce
// of zero means 100ms.
func NewWatcher(w *Worker, debounce time.Duration) (*Watcher, error) {
	src, ok := w.Source().(*FileSource)
	if !ok {
		return nil, ErrNotFileSource
	}
	path, err := filepath.Abs(src.Path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		log:      golog.LoggerFor("staticredirect.watcher"),
		worker:   w,
		path:     path,
		debounce: debounce,
		fsw:      fsw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the manifest's directory until ctx is done or Stop is
// called. Watching the directory rather than the file survives editors and
// deploys that replace the file.
func (wt *Watcher) Start(ctx context.Context) error {
	wt.mx.Lock()
	defer wt.mx.Unlock()
	if wt.running {
		return nil
	}
	if err := wt.fsw.Add(filepath.Dir(wt.path)); err != nil {
		return err
	}
	wt.running = true
	wt.log.Debugf("Watching %v", wt.path)
	go wt.watch(ctx)
	return nil
}

// Stop ends watching and releases the underlying watcher.
func (wt *Watcher) Stop() error {
	wt.mx.Lock()
	if !wt.running {
		wt.mx.Unlock()
		return wt.fsw.Close()
	}
	wt.running = false
	wt.mx.Unlock()

	close(wt.stopCh)
	<-wt.doneCh
	return wt.fsw.Close()
}

func (wt *Watcher) watch(ctx context.Context) {
	defer close(wt.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wt.stopCh:
			return
		case event, ok := <-wt.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != wt.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(wt.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			g := wt.worker.Activate(ctx)
			wt.log.Debugf("Manifest %v changed, generation %v started", wt.path, g.ID)
		case err, ok := <-wt.fsw.Errors:
			if !ok {
				return
			}
			wt.log.Errorf("Error watching %v: %v", wt.path, err)
		}
	}
}
