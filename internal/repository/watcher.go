package repository

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileWatcher reports changes made to the CSV file by other programs,
// typically someone saving the spreadsheet by hand.  The parent directory
// is watched because editors and CSVStore itself replace the file through
// a rename.  Bursts of events are collapsed into one callback.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	target   string
	debounce time.Duration
	onChange func()
	log      *zap.Logger

	mu      sync.Mutex
	pending bool
	lastEv  time.Time
	doneCh  chan struct{}
}

// NewFileWatcher creates a watcher for path.  onChange runs on the
// watcher goroutine after debounce has elapsed without further events.
func NewFileWatcher(path string, debounce time.Duration, onChange func(), log *zap.Logger) (*FileWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &FileWatcher{
		watcher:  w,
		target:   abs,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		doneCh:   make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (fw *FileWatcher) Run(ctx context.Context) {
	defer close(fw.doneCh)

	tick := time.NewTicker(fw.debounce / 3)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(ev)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn("csv watcher error", zap.Error(err))
		case <-tick.C:
			fw.flush()
		}
	}
}

func (fw *FileWatcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != fw.target {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	fw.mu.Lock()
	fw.pending = true
	fw.lastEv = time.Now()
	fw.mu.Unlock()
}

func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	fire := fw.pending && time.Since(fw.lastEv) >= fw.debounce
	if fire {
		fw.pending = false
	}
	fw.mu.Unlock()
	if fire {
		fw.log.Info("csv changed on disk", zap.String("path", fw.target))
		if fw.onChange != nil {
			fw.onChange()
		}
	}
}

// Close stops the underlying watcher and waits for Run to exit when it
// was started.
func (fw *FileWatcher) Close() error {
	err := fw.watcher.Close()
	select {
	case <-fw.doneCh:
	case <-time.After(time.Second):
	}
	return err
}
