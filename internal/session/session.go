// Package session keeps one actor's authoritative task list in sync with
// the task store.
//
// The list is only ever replaced wholesale by a reload. Reloads are
// triggered by the change feed, by a fixed-interval ticker, and on demand.
// Writes go straight to the store and never patch the list; their effect
// shows up with the next reload.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/fentz26/designboard/internal/board"
	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
)

// Store is the task store as seen by a session.
type Store interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	UpdateStatus(ctx context.Context, taskID string, change models.StatusChange) error
	AcceptTask(ctx context.Context, taskID, actorID string) error
	UpdateOrderNumber(ctx context.Context, taskID, orderNumber string) error
	SendToDesigner(ctx context.Context, taskID string) error
}

// Cues receives notification cues for the presentation layer.
type Cues interface {
	NewCard(taskID string)
	StatusChanged(taskID string)
}

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type nopCues struct{}

func (nopCues) NewCard(string)       {}
func (nopCues) StatusChanged(string) {}

// DefaultInterval is the polling fallback cadence.
const DefaultInterval = 60 * time.Second

// Option customizes a Controller.
type Option func(*Controller)

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock overrides the time source used for reload stamps and effects.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCues sets the cue sink.
func WithCues(cues Cues) Option {
	return func(c *Controller) {
		if cues != nil {
			c.cues = cues
		}
	}
}

// WithProjector sets the board projector.
func WithProjector(p *board.Projector) Option {
	return func(c *Controller) {
		if p != nil {
			c.projector = p
		}
	}
}

// WithEngine sets the guard engine.
func WithEngine(e *guard.Engine) Option {
	return func(c *Controller) {
		if e != nil {
			c.engine = e
		}
	}
}

// Status is what the presentation layer shows about syncing.
type Status struct {
	LastReload time.Time
	InFlight   bool
	LastError  error
}

// Controller owns one session's task list.
type Controller struct {
	store     Store
	feed      feed.Source
	actor     models.Actor
	engine    *guard.Engine
	projector *board.Projector
	cues      Cues
	logger    Logger
	now       func() time.Time
	interval  time.Duration

	mu         sync.RWMutex
	tasks      []models.Task
	index      map[string]int
	facts      snapshotFacts
	selected   *models.Task
	lastReload time.Time
	lastErr    error
	inFlight   int
	started    uint64
	applied    uint64

	refresh chan struct{}
	updates chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller for actor. src may be nil, in which case the
// session relies on polling alone.
func New(store Store, src feed.Source, actor models.Actor, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		feed:     src,
		actor:    actor,
		engine:   guard.NewEngine(),
		cues:     nopCues{},
		logger:   nopLogger{},
		now:      func() time.Time { return time.Now().UTC() },
		interval: DefaultInterval,
		tasks:    []models.Task{},
		index:    map[string]int{},
		facts:    newSnapshotFacts(&models.Snapshot{}),
		refresh:  make(chan struct{}, 1),
		updates:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Actor returns the session's actor.
func (c *Controller) Actor() models.Actor { return c.actor }

// Start runs the sync loop in the background until Stop.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Run(ctx)
	}()
}

// Stop ends a loop started with Start and waits for it to exit.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Run performs the initial load and then reloads on feed events, on every
// tick and on Refresh, until ctx is done. A lost feed is resubscribed on
// the next tick; polling carries on meanwhile.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var sub feed.Subscription
	var events <-chan feed.Event
	subscribe := func() {
		if c.feed == nil {
			return
		}
		s, err := c.feed.Subscribe(ctx)
		if err != nil {
			c.logger.Printf("Change feed unavailable: %v", err)
			return
		}
		sub, events = s, s.Events
	}
	defer func() { sub.Close() }()

	subscribe()
	c.Reload(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if events == nil {
				subscribe()
			}
			c.Reload(ctx)
		case <-c.refresh:
			c.Reload(ctx)
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				c.logger.Printf("Change feed closed, falling back to polling")
				sub.Close()
				sub, events = feed.Subscription{}, nil
				continue
			}
			c.HandleEvent(ctx, ev)
		}
	}
}

// Refresh asks the running loop for a reload. Requests made while one is
// already queued collapse into it.
func (c *Controller) Refresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Updates signals after every applied reload or failure so the
// presentation layer can redraw.
func (c *Controller) Updates() <-chan struct{} { return c.updates }

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// HandleEvent treats ev as an invalidation signal: it reloads everything.
// Task inserts also play the new-card cue. Remote status changes never play
// the status-changed cue.
func (c *Controller) HandleEvent(ctx context.Context, ev feed.Event) error {
	switch ev.Table {
	case feed.TableTasks, feed.TableChangeRequests, "":
	default:
		return nil
	}
	if ev.Kind == feed.KindInsert && ev.Table != feed.TableChangeRequests {
		c.cues.NewCard(ev.RowID)
	}
	return c.Reload(ctx)
}

// Reload loads a full snapshot and replaces the list. Only the most
// recently started reload that completes is applied; a slower reload that
// began earlier is discarded. On failure the previous list stays in place
// and the error is reported through Status.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.inFlight++
	c.mu.Unlock()

	snap, err := c.store.Snapshot(ctx)

	c.mu.Lock()
	c.inFlight--
	if seq < c.applied {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		loadErr := &LoadError{Err: err}
		c.lastErr = loadErr
		c.mu.Unlock()
		c.logger.Printf("Reload failed, keeping last good list: %v", err)
		c.notify()
		return loadErr
	}
	c.apply(seq, snap)
	c.mu.Unlock()
	c.notify()
	return nil
}

// apply must be called with mu held.
func (c *Controller) apply(seq uint64, snap *models.Snapshot) {
	tasks := make([]models.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if !t.IsDeleted() {
			tasks = append(tasks, t)
		}
	}
	index := make(map[string]int, len(tasks))
	for i := range tasks {
		index[tasks[i].ID] = i
	}

	c.tasks = tasks
	c.index = index
	c.facts = newSnapshotFacts(snap)
	c.applied = seq
	c.lastReload = c.now()
	c.lastErr = nil

	if c.selected != nil {
		if i, ok := index[c.selected.ID]; ok {
			c.selected = &c.tasks[i]
		} else {
			c.selected = nil
		}
	}
}

// Status reports the sync state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{LastReload: c.lastReload, InFlight: c.inFlight > 0, LastError: c.lastErr}
}

// Tasks returns a copy of the current list.
func (c *Controller) Tasks() []models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Task, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t
		out[i].DesignFiles = append([]string(nil), t.DesignFiles...)
	}
	return out
}

// Task returns a copy of one task from the current list.
func (c *Controller) Task(id string) (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.Task{}, false
	}
	t := c.tasks[i]
	t.DesignFiles = append([]string(nil), t.DesignFiles...)
	return t, true
}

// Facts returns guard facts from the last applied snapshot.
func (c *Controller) Facts() guard.Facts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.facts
}

// Board projects the current list for the session's actor.
func (c *Controller) Board(filters board.Filters, sortBy board.SortOption) board.Board {
	if c.projector == nil {
		return board.Project(c.Tasks(), c.actor, filters, sortBy)
	}
	return c.projector.Project(c.Tasks(), c.actor, filters, sortBy)
}

// Open selects a task for the detail view.
func (c *Controller) Open(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return ErrTaskNotFound
	}
	c.selected = &c.tasks[i]
	return nil
}

// Close clears the detail selection.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// Selected returns the selected task as of the latest reload.
func (c *Controller) Selected() (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return models.Task{}, false
	}
	t := *c.selected
	t.DesignFiles = append([]string(nil), t.DesignFiles...)
	return t, true
}
