package updater

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/vercomp"
)

const (
	// DefaultCheckDelay is the wait before the first scheduled check.
	DefaultCheckDelay = 5 * time.Second
	// DefaultCheckInterval separates scheduled checks.
	DefaultCheckInterval = time.Hour
)

var (
	// ErrNoUpdateAvailable is returned by StartDownload before a newer version was found.
	ErrNoUpdateAvailable = errors.New("no update available")
	// ErrNothingStaged is returned by QuitAndInstall before a download finished.
	ErrNothingStaged = errors.New("no downloaded update to install")
	// ErrDownloadInProgress is returned when a download is already running.
	ErrDownloadInProgress = errors.New("download already in progress")

	errNoInstaller = errors.New("installer is not configured")
)

// StagedStore keeps the staged update across agent restarts.
type StagedStore interface {
	Save(ctx context.Context, staged *StagedUpdate) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithSchedule overrides the delay before the first check and the check interval.
func WithSchedule(delay, interval time.Duration) Option {
	return func(c *Controller) {
		if delay > 0 {
			c.delay = delay
		}

		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithInstaller sets the installer used by QuitAndInstall.
func WithInstaller(installer Installer) Option {
	return func(c *Controller) {
		c.installer = installer
	}
}

// WithDisabled turns every trigger into a no-op. Used in development builds.
func WithDisabled(disabled bool) Option {
	return func(c *Controller) {
		c.disabled = disabled
	}
}

// WithStagedStore records every finished download in store.
func WithStagedStore(store StagedStore) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithStaged starts the controller with an update downloaded by a previous run.
// Updates that are not newer than the running version are ignored.
func WithStaged(staged *StagedUpdate) Option {
	return func(c *Controller) {
		c.staged = staged
	}
}

// Controller owns the update status of one running app.
type Controller struct {
	current   string
	backend   Backend
	installer Installer
	store     StagedStore
	disabled  bool
	delay     time.Duration
	interval  time.Duration

	// transition serializes status changes and their delivery.
	transition sync.Mutex

	mu          sync.RWMutex
	status      Status
	pending     *UpdateInfo
	staged      *StagedUpdate
	subscribers map[uint64]func(Status)
	nextID      uint64

	downloading atomic.Bool
	installing  atomic.Bool
}

// NewController creates a controller for the running version.
func NewController(current string, backend Backend, opts ...Option) *Controller {
	c := &Controller{
		current:     current,
		backend:     backend,
		delay:       DefaultCheckDelay,
		interval:    DefaultCheckInterval,
		status:      NotAvailable(),
		subscribers: make(map[uint64]func(Status)),
	}

	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.staged == nil:
	case c.disabled || !vercomp.Newer(c.staged.Version, c.current):
		c.staged = nil
	default:
		c.status = Downloaded(c.staged.Version)
	}

	return c
}

// CurrentVersion returns the version of the running app.
func (c *Controller) CurrentVersion() string {
	return c.current
}

// Disabled reports whether the controller ignores all triggers.
func (c *Controller) Disabled() bool {
	return c.disabled
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.status
}

// Subscribe registers fn for every later transition and returns a function
// that removes it. fn runs synchronously, in transition order, and must not
// trigger transitions itself.
func (c *Controller) Subscribe(fn func(Status)) func() {
	_, unsubscribe := c.Watch(fn)

	return unsubscribe
}

// Watch is Subscribe that also returns the status current at registration.
// fn receives exactly the transitions after that status.
func (c *Controller) Watch(fn func(Status)) (Status, func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	current := c.status
	c.mu.Unlock()

	var once sync.Once

	return current, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

// setStatus stores s and delivers it to subscribers before the next transition may start.
func (c *Controller) setStatus(ctx context.Context, s Status) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	c.status = s

	ids := make([]uint64, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	subscribers := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		subscribers = append(subscribers, c.subscribers[id])
	}
	c.mu.Unlock()

	logger.DebugKV(ctx, "Update status changed", "status", s.String())

	for _, fn := range subscribers {
		fn(s)
	}
}

// Check queries the feed once. The outcome is reported through the status;
// the returned error mirrors an error status.
func (c *Controller) Check(ctx context.Context) error {
	if c.disabled {
		return nil
	}

	if c.downloading.Load() {
		logger.Info(ctx, "Skipping update check while a download is in progress")
		return nil
	}

	c.setStatus(ctx, Checking())

	info, err := c.backend.Latest(ctx)
	if err != nil {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()

		c.setStatus(ctx, Failed(err.Error()))

		return fmt.Errorf("check for updates: %w", err)
	}

	if info == nil || !vercomp.Newer(info.Version, c.current) {
		logger.InfoKV(ctx, "Application is up to date", "current", c.current)

		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()

		c.setStatus(ctx, NotAvailable())

		return nil
	}

	c.mu.Lock()
	c.pending = info
	staged := c.staged
	c.mu.Unlock()

	if staged != nil && staged.Version == info.Version {
		c.setStatus(ctx, Downloaded(info.Version))
		return nil
	}

	logger.InfoKV(ctx, "Update available", "current", c.current, "latest", info.Version)

	c.setStatus(ctx, Available(info.Version))

	return nil
}

// StartDownload downloads the update found by the last check.
// Only one download runs at a time.
func (c *Controller) StartDownload(ctx context.Context) error {
	if c.disabled {
		return nil
	}

	c.mu.RLock()
	info, staged := c.pending, c.staged
	c.mu.RUnlock()

	if info == nil {
		return ErrNoUpdateAvailable
	}

	if staged != nil && staged.Version == info.Version {
		c.setStatus(ctx, Downloaded(staged.Version))
		return nil
	}

	if !c.downloading.CompareAndSwap(false, true) {
		return ErrDownloadInProgress
	}
	defer c.downloading.Store(false)

	logger.InfoKV(ctx, "Downloading update", "version", info.Version, "url", info.File.URL)

	c.setStatus(ctx, Downloading(0))

	var last float64

	staged, err := c.backend.Download(ctx, info, func(percent float64) {
		percent = clampPercent(percent)
		if percent <= last {
			return
		}

		last = percent
		c.setStatus(ctx, Downloading(percent))
	})
	if err != nil {
		c.setStatus(ctx, Failed(err.Error()))

		return fmt.Errorf("download update %s: %w", info.Version, err)
	}

	c.mu.Lock()
	c.staged = staged
	c.mu.Unlock()

	logger.InfoKV(ctx, "Update downloaded", "version", staged.Version, "path", staged.Path)

	if c.store != nil {
		if err = c.store.Save(ctx, staged); err != nil {
			logger.WarnKV(ctx, "Unable to remember the downloaded update", "error", err)
		}
	}

	c.setStatus(ctx, Downloaded(staged.Version))

	return nil
}

// QuitAndInstall installs the staged update. Calls after the first
// successful start are ignored.
func (c *Controller) QuitAndInstall(ctx context.Context) error {
	if c.disabled {
		return nil
	}

	c.mu.RLock()
	staged := c.staged
	c.mu.RUnlock()

	if staged == nil {
		return ErrNothingStaged
	}

	if c.installer == nil {
		return errNoInstaller
	}

	if !c.installing.CompareAndSwap(false, true) {
		logger.Info(ctx, "Install already started, ignoring")
		return nil
	}

	logger.InfoKV(ctx, "Installing update", "version", staged.Version)

	if err := c.installer.Install(ctx, staged); err != nil {
		c.installing.Store(false)

		return fmt.Errorf("install update %s: %w", staged.Version, err)
	}

	return nil
}

// Run performs scheduled checks until ctx is done. Scheduled checks are
// skipped while a download runs or an update is staged.
func (c *Controller) Run(ctx context.Context) error {
	if c.disabled {
		logger.Info(ctx, "Updates are disabled in development mode")
		<-ctx.Done()

		return nil
	}

	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}

	c.scheduledCheck(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.scheduledCheck(ctx)
		}
	}
}

func (c *Controller) scheduledCheck(ctx context.Context) {
	switch c.Status().Kind {
	case KindDownloading, KindDownloaded:
		logger.Debug(ctx, "Skipping scheduled check, update already in progress")
		return
	default:
	}

	if c.downloading.Load() {
		return
	}

	if err := c.Check(ctx); err != nil {
		logger.WarnKV(ctx, "Scheduled update check failed", "error", err)
	}
}
