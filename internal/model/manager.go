package model

// #region imports
import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// #endregion

// #region constants

const (
	defaultLoadTimeout = 2 * time.Minute
	watchDebounce      = 500 * time.Millisecond
)

// #endregion

// #region loader

// Info describes the artifact a loader activated.
type Info struct {
	Version string
	Labels  []string
}

// Loader performs the actual artifact load or swap against the runtime.
type Loader interface {
	Load(ctx context.Context, path string) (Info, error)
	Update(ctx context.Context, path string) (Info, error)
}

// #endregion

// #region manager

// Manager owns the model lifecycle state machine. Concurrent reload and
// update requests while a load is in flight join that load instead of
// starting another.
type Manager struct {
	mu          sync.Mutex
	loader      Loader
	path        string
	loadTimeout time.Duration

	status   Status
	info     Info
	lastErr  error
	inflight *loadJob

	subs    map[int]chan Event
	nextSub int

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	debounce  *time.Timer
}

type loadJob struct {
	done chan struct{}
	err  error
}

// NewManager creates a manager for the artifact at path, starting NotLoaded.
func NewManager(loader Loader, artifactPath string) *Manager {
	return &Manager{
		loader:      loader,
		path:        artifactPath,
		loadTimeout: defaultLoadTimeout,
		status:      StatusNotLoaded,
		subs:        make(map[int]chan Event),
	}
}

// SetLoadTimeout overrides how long one load may run.
func (m *Manager) SetLoadTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.loadTimeout = d
	m.mu.Unlock()
}

// #endregion

// #region observers

// Status returns the current lifecycle status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Snapshot returns status, active artifact info, and the last load error.
func (m *Manager) Snapshot() (Status, Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.info, m.lastErr
}

// Subscribe registers for status change events. The returned func
// unsubscribes and closes the channel. Slow consumers drop events.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, 8)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// #endregion

// #region requests

// RequestReload loads the artifact from scratch. Blocks until the load
// finishes or ctx is done; the load itself continues either way.
func (m *Manager) RequestReload(ctx context.Context) error {
	return m.request(ctx, false)
}

// RequestUpdate refreshes a ready runtime to the replaced artifact.
// Falls back to a full load when nothing is loaded yet.
func (m *Manager) RequestUpdate(ctx context.Context) error {
	return m.request(ctx, true)
}

func (m *Manager) request(ctx context.Context, update bool) error {
	m.mu.Lock()
	if j := m.inflight; j != nil {
		m.mu.Unlock()
		select {
		case <-j.done:
			return j.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	prev := m.status
	next := StatusLoading
	if update && prev.Ready() {
		next = StatusUpdating
	}
	j := &loadJob{done: make(chan struct{})}
	m.inflight = j
	m.setStatusLocked(next)
	m.mu.Unlock()

	go m.runLoad(j, prev, update)

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoad drives the loader off the caller's context so every joined
// waiter sees the same outcome.
func (m *Manager) runLoad(j *loadJob, prev Status, update bool) {
	m.mu.Lock()
	timeout := m.loadTimeout
	m.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var info Info
	var err error
	if update && prev.Ready() {
		info, err = m.loader.Update(ctx, m.path)
	} else {
		info, err = m.loader.Load(ctx, m.path)
	}

	m.mu.Lock()
	m.inflight = nil
	if err != nil {
		m.lastErr = err
		m.setStatusLocked(StatusError)
	} else {
		m.lastErr = nil
		m.info = info
		if update && prev.Ready() {
			m.setStatusLocked(StatusUpdated)
		} else {
			m.setStatusLocked(StatusLoaded)
		}
	}
	j.err = err
	m.mu.Unlock()
	close(j.done)
}

func (m *Manager) setStatusLocked(s Status) {
	m.status = s
	ev := Event{Status: s, Version: m.info.Version, At: time.Now()}
	if m.lastErr != nil {
		ev.Err = m.lastErr.Error()
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	log.Printf("[model] status=%s version=%s", s, m.info.Version)
}

// #endregion

// #region watch

// Watch observes the artifact's directory and coalesces writes to the
// artifact file into update requests.
func (m *Manager) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		w.Close()
		return err
	}
	m.mu.Lock()
	m.watcher = w
	m.watchDone = make(chan struct{})
	m.mu.Unlock()
	go m.watchLoop(w)
	log.Printf("[model] watching %s", m.path)
	return nil
}

func (m *Manager) watchLoop(w *fsnotify.Watcher) {
	defer close(m.watchDone)
	base := filepath.Base(m.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			m.scheduleUpdate()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("[model] watcher error: %v", err)
		}
	}
}

func (m *Manager) scheduleUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(watchDebounce, func() {
		if err := m.RequestUpdate(context.Background()); err != nil {
			log.Printf("[model] artifact update failed: %v", err)
		}
	})
}

// Close stops the watcher and any pending debounce. In-flight loads finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watcher
	done := m.watchDone
	m.watcher = nil
	t := m.debounce
	m.debounce = nil
	m.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	if w != nil {
		w.Close()
		<-done
	}
	return nil
}

// #endregion
