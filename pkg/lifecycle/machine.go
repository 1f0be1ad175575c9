package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/srg/blelink/internal/groutine"
	"github.com/srg/blelink/internal/ringchan"
)

// MachineOptions sizes the machine's internal buffers.
type MachineOptions struct {
	// EventBuffer is the capacity of the trigger queue.
	EventBuffer int `default:"16"`
	// FeedBuffer is the capacity of each Subscribe feed.
	FeedBuffer int `default:"32"`
	// JournalSize is the number of transitions kept by the journal.
	JournalSize int `default:"64"`
}

// DefaultMachineOptions returns options with every field set to its default.
func DefaultMachineOptions() *MachineOptions {
	opts := &MachineOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// Stats counts the events handled by the loop.
type Stats struct {
	Processed uint64 // triggers that caused a transition
	Ignored   uint64 // triggers with no transition from the current state
	Stale     uint64 // completions of operations the machine no longer waits for
}

type event struct {
	trigger  Trigger
	gen      uint64
	device   Device
	services Services
	err      error
}

// Machine drives a Connection through the connection lifecycle.
//
// All triggers are processed one at a time by a single loop goroutine started
// with Start. Device requests and service retrievals run on their own
// goroutines and report back to the loop; a completion is applied only if the
// machine still waits for that exact invocation.
type Machine struct {
	ctx    *Context
	opts   MachineOptions
	logger *logrus.Entry

	session string
	events  chan event
	done    chan struct{}
	cancel  context.CancelFunc
	loopCtx context.Context

	started *atomic.Bool
	running *atomic.Bool

	mu    sync.RWMutex
	state State
	snap  Context

	// owned by the loop goroutine
	generation uint64
	pending    uint64

	processed *atomic.Uint64
	ignored   *atomic.Uint64
	stale     *atomic.Uint64

	feedMu      sync.Mutex
	feeds       map[*ringchan.RingChannel[Transition]]struct{}
	feedsClosed bool

	journal *Journal
}

// NewMachine creates a machine in StateInit around c. Nil opts means
// DefaultMachineOptions. Start must be called before triggers are processed.
func NewMachine(c *Context, opts *MachineOptions, logger *logrus.Logger) *Machine {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultMachineOptions()
	}
	o := *opts
	def := DefaultMachineOptions()
	if o.EventBuffer <= 0 {
		o.EventBuffer = def.EventBuffer
	}
	if o.FeedBuffer <= 0 {
		o.FeedBuffer = def.FeedBuffer
	}
	if o.JournalSize <= 0 {
		o.JournalSize = def.JournalSize
	}

	session := uuid.NewString()
	m := &Machine{
		ctx:       c,
		opts:      o,
		session:   session,
		events:    make(chan event, o.EventBuffer),
		done:      make(chan struct{}),
		started:   atomic.NewBool(false),
		running:   atomic.NewBool(false),
		state:     StateInit,
		snap:      *c,
		processed: atomic.NewUint64(0),
		ignored:   atomic.NewUint64(0),
		stale:     atomic.NewUint64(0),
		feeds:     make(map[*ringchan.RingChannel[Transition]]struct{}),
		journal:   NewJournal(o.JournalSize),
	}
	fields := logrus.Fields{"session": session}
	if name := c.Conn.Name(); name != "" {
		fields["connection"] = name
	}
	m.logger = logger.WithFields(fields)
	return m
}

// Session returns the identifier attached to this machine's log lines.
func (m *Machine) Session() string {
	return m.session
}

// Start launches the event loop and installs the unsolicited-disconnect
// callback on the connection. The loop stops when ctx is done or Stop is called.
func (m *Machine) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	m.loopCtx, m.cancel = context.WithCancel(ctx)
	m.ctx.Conn.SetDisconnectedCallback(m.lost)
	m.running.Store(true)

	groutine.Go(m.loopCtx, "lifecycle-loop", m.run)
	m.logger.WithField("state", m.State()).Debug("machine started")
	return nil
}

// Stop terminates the loop, restores the default disconnect callback and
// closes every subscription. It waits for the loop to exit. Operations still
// in flight finish on their own and their results are dropped.
//
// Stop must not be called from an observer or subscriber running on the loop.
func (m *Machine) Stop() {
	if !m.started.Load() {
		return
	}
	m.running.Store(false)
	m.cancel()
	<-m.done
	m.ctx.Conn.SetDisconnectedCallback(nil)

	m.feedMu.Lock()
	m.feedsClosed = true
	for feed := range m.feeds {
		feed.Close()
		delete(m.feeds, feed)
	}
	m.feedMu.Unlock()
}

// Done is closed once the loop has exited.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Send queues a public trigger. It returns once the trigger is queued, not
// processed. Triggers without a transition from the state current at
// processing time are ignored.
func (m *Machine) Send(ctx context.Context, t Trigger) error {
	if !t.Public() {
		return ErrInternalTrigger
	}
	if !m.running.Load() {
		return ErrMachineStopped
	}
	select {
	case m.events <- event{trigger: t}:
		return nil
	case <-m.done:
		return ErrMachineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Context returns a copy of the context as of the last processed trigger.
func (m *Machine) Context() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Stats returns the loop counters.
func (m *Machine) Stats() Stats {
	return Stats{
		Processed: m.processed.Load(),
		Ignored:   m.ignored.Load(),
		Stale:     m.stale.Load(),
	}
}

// Journal returns the bounded transition history.
func (m *Machine) Journal() *Journal {
	return m.journal
}

// Subscribe returns a feed of transitions and a function that ends the
// subscription. A slow reader loses the oldest transitions, never blocks the
// loop. The feed is closed by unsubscribe or Stop.
func (m *Machine) Subscribe() (<-chan Transition, func()) {
	feed := ringchan.New[Transition](m.opts.FeedBuffer)

	m.feedMu.Lock()
	if m.feedsClosed {
		feed.Close()
	} else {
		m.feeds[feed] = struct{}{}
	}
	m.feedMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.feedMu.Lock()
			defer m.feedMu.Unlock()
			if _, ok := m.feeds[feed]; ok {
				delete(m.feeds, feed)
				feed.Close()
			}
		})
	}
	return feed.C(), unsubscribe
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.done)
	defer m.running.Store(false)
	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("state", m.State()).Debug("machine stopped")
			return
		case ev := <-m.events:
			m.process(ev)
		}
	}
}

// lost is installed as the connection's disconnect callback. Device backends
// may call it from any goroutine, including the loop itself.
func (m *Machine) lost() {
	ev := event{trigger: TriggerLost}
	select {
	case m.events <- ev:
		return
	case <-m.done:
		return
	default:
	}
	groutine.Go(m.loopCtx, "lifecycle-lost", func(ctx context.Context) {
		select {
		case m.events <- ev:
		case <-ctx.Done():
		}
	})
}

// complete reports the result of an operation started for invocation gen.
func (m *Machine) complete(ctx context.Context, ev event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

func (m *Machine) process(ev event) {
	from := m.State()
	log := m.logger.WithFields(logrus.Fields{"state": from, "trigger": ev.trigger})

	if ev.trigger.completion() && ev.gen != m.pending {
		m.stale.Inc()
		log.WithField("generation", ev.gen).Debug("dropping stale completion")
		return
	}

	to, ok := lookup(from, ev.trigger)
	if !ok {
		m.ignored.Inc()
		log.Debug("trigger ignored")
		return
	}

	m.exit(from)
	m.apply(from, ev)
	m.enterState(to)
	m.enter(to)

	m.processed.Inc()
	tr := Transition{
		From:               from,
		To:                 to,
		Trigger:            ev.trigger,
		RejectedReason:     m.ctx.RejectedReason,
		DisconnectedReason: m.ctx.DisconnectedReason,
		At:                 time.Now(),
	}
	m.logger.WithFields(logrus.Fields{
		"from":    from,
		"to":      to,
		"trigger": ev.trigger,
	}).Info("transition")
	m.publish(tr)
}

func (m *Machine) exit(s State) {
	switch s {
	case StateRejected:
		m.ctx.clearRejected()
	case StateConnected:
		m.ctx.Conn.ResetServices()
	case StateDisconnected:
		m.ctx.clearRejected()
		m.ctx.clearDisconnected()
	}
	if s.Pending() {
		m.pending = 0
	}
}

// apply runs the action attached to the transition itself.
func (m *Machine) apply(from State, ev event) {
	conn := m.ctx.Conn
	switch ev.trigger {
	case TriggerDeviceResolved:
		conn.replaceDevice(ev.device)
		if ev.device == nil {
			m.logger.Info("request resolved without selection")
		} else {
			m.logger.WithFields(logrus.Fields{"device": ev.device.ID(), "name": ev.device.Name()}).Info("device bound")
		}
	case TriggerDeviceFailed:
		m.ctx.RejectedReason = errorReason(ev.err)
	case TriggerServicesResolved:
		conn.replaceServices(ev.services)
		m.logger.WithField("device", deviceID(conn.Device())).Info("services bound")
	case TriggerServicesFailed:
		m.ctx.DisconnectedReason = errorReason(ev.err)
	case TriggerLost:
		switch from {
		case StateAwaitingServices:
			m.ctx.DisconnectedReason = delayedReason
		case StateConnected:
			m.ctx.DisconnectedReason = peripheralReason
		case StateDisconnecting:
			m.ctx.DisconnectedReason = centralReason
		}
	case TriggerReset:
		if from == StateDisconnected {
			conn.ResetDevice()
		}
	}
}

func (m *Machine) enterState(s State) {
	m.mu.Lock()
	m.state = s
	m.snap = *m.ctx
	m.mu.Unlock()
}

func (m *Machine) enter(s State) {
	switch s {
	case StateRequestingDevice, StateSubRequestingDevice:
		m.invokeRequestDevice()
	case StateAwaitingServices:
		m.invokeRetrieveServices()
	case StateDisconnecting:
		m.ctx.Conn.DisconnectGattServer()
	}
}

func (m *Machine) invokeRequestDevice() {
	m.generation++
	gen := m.generation
	m.pending = gen
	conn := m.ctx.Conn
	groutine.Go(m.loopCtx, "request-device", func(ctx context.Context) {
		dev, err := conn.fetchDevice(ctx)
		if err != nil {
			m.complete(ctx, event{trigger: TriggerDeviceFailed, gen: gen, err: err})
			return
		}
		m.complete(ctx, event{trigger: TriggerDeviceResolved, gen: gen, device: dev})
	})
}

func (m *Machine) invokeRetrieveServices() {
	m.generation++
	gen := m.generation
	m.pending = gen
	conn := m.ctx.Conn
	groutine.Go(m.loopCtx, "retrieve-services", func(ctx context.Context) {
		svc, err := conn.fetchServices(ctx)
		if err != nil {
			m.complete(ctx, event{trigger: TriggerServicesFailed, gen: gen, err: err})
			return
		}
		m.complete(ctx, event{trigger: TriggerServicesResolved, gen: gen, services: svc})
	})
}

func (m *Machine) publish(tr Transition) {
	m.journal.Record(tr)

	m.feedMu.Lock()
	defer m.feedMu.Unlock()
	for feed := range m.feeds {
		feed.Send(tr)
	}
}
