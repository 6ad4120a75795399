package watch

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDelay is the quiet period before a batch of changes is reported
const DefaultDelay = 100 * time.Millisecond

// Watcher monitors a fixed set of files and reports changes to them.
//
// The parent directories are watched rather than the files themselves so
// that editors replacing a file through a rename are still noticed.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	files     map[string]struct{}
	onChange  func([]string) error
	log       *zap.Logger
	delay     time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option configures a Watcher
type Option func(*Watcher)

// WithLogger sets the logger used for change and error reports
func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// WithDelay sets the debounce delay
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// New creates a watcher for files. onChange receives the changed paths
// of every debounced batch, sorted.
func New(files []string, onChange func([]string) error, opts ...Option) (*Watcher, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to watch")
	}

	w := &Watcher{
		files:    make(map[string]struct{}, len(files)),
		onChange: onChange,
		log:      zap.NewNop(),
		delay:    DefaultDelay,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", f)
		}
		w.files[abs] = struct{}{}
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	w.fs = fs

	w.debouncer = NewDebouncer(w.delay)
	w.debouncer.SetCallback(func(changed []string) {
		if err := w.onChange(changed); err != nil {
			w.log.Error("error handling file changes", zap.Strings("files", changed), zap.Error(err))
		}
	})

	return w, nil
}

// Start begins watching in the background
func (w *Watcher) Start() error {
	for _, dir := range w.directories() {
		if err := w.fs.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch directory %s", dir)
		}
		w.log.Debug("watching directory", zap.String("dir", dir))
	}

	w.wg.Add(1)
	go w.watch()
	return nil
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

// Stop stops the watcher. Calling it again is a no-op.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()
		w.debouncer.Stop()
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			w.debouncer.Add(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

func (w *Watcher) directories() []string {
	var dirs []string
	for f := range w.files {
		dirs = append(dirs, filepath.Dir(f))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

// Debouncer collects paths and reports them once no new path arrived for
// the configured duration
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a path and restarts the quiet period
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.files[file] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	clear(d.files)
	callback := d.callback
	d.mutex.Unlock()

	slices.Sort(files)
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the function receiving each batch
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop drops pending paths and ignores later ones
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	clear(d.files)
}
