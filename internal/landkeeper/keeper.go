// Package landkeeper implements the single-writer actor scheduler for one
// land instance. All state mutation for a LandID happens on the keeper's
// own goroutine, in strict FIFO of accepted commands: one background
// goroutine owns the mutable state, and everyone else talks to it through a
// request/response command queue.
package landkeeper

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/logging"
	"github.com/rawblock/landkeeper/internal/ratelimit"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// LifecycleState is the keeper's own state machine.
type LifecycleState int32

const (
	Created LifecycleState = iota
	Running
	Draining
	Terminated
)

func (s LifecycleState) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// TransportPublisher is the narrow slice of internal/transport's
// TransportAdapter a keeper talks to: notify it of every mutation as it
// happens, and let it know when a scheduled sync flush is due. Defined here
// (not in internal/transport) so transport can depend on landkeeper without
// a cycle back.
type TransportPublisher interface {
	NotifyMutation(land ids.LandID, entries []dirty.Entry)
	SyncNow(land ids.LandID) error
}

// Recorder is the narrow interface into internal/recorder's RingRecorder and
// PostgresRecorder a keeper needs: append one tick's record, and
// read back the cumulative record for get_reevaluation_record().
type Recorder interface {
	RecordTick(land ids.LandID, entry ReevaluationEntry) error
	All(land ids.LandID) ([]ReevaluationEntry, error)
}

// ReevaluationEntry is one tick's recorded outcome.
type ReevaluationEntry struct {
	Tick            int64
	AppliedEnvelopes []string
	StateHash       string
	EmittedEvents   []ServerEvent
}

// ReplaySession describes a recorded stream this keeper replays instead of
// accepting live actions.
type ReplaySession struct {
	Entries []ReevaluationEntry
	// ActionsByTick supplies the recorded action envelopes to re-apply at
	// each tick, keyed by tick number.
	ActionsByTick map[int64][]RecordedAction
}

// RecordedAction is one action envelope captured for replay.
type RecordedAction struct {
	Player     ids.PlayerID
	Client     ids.ClientID
	Session    ids.SessionID
	ActionType string
	Payload    statetree.SnapshotValue
}

// ReplayTickEvent is emitted to subscribers on every replayed tick.
type ReplayTickEvent struct {
	Tick         int64
	IsMatch      bool
	ExpectedHash string
	ActualHash   string
}

// Keeper is one land instance's single-writer actor.
type Keeper struct {
	land   ids.LandID
	cfg    config.Land
	rules  LandRules
	tree   *statetree.Tree
	tracker *dirty.Tracker
	log    *log.Logger

	queue *commandQueue

	state      atomic.Int32
	players    map[ids.PlayerID]ids.SessionID
	transport  TransportPublisher
	recorder   Recorder
	recorderOn bool
	actionLimiter *ratelimit.Limiter

	tickCount int64

	replay       *ReplaySession
	replaySubs   []chan ReplayTickEvent

	loopDone chan struct{}
}

// New constructs a Keeper in the Created state for land, wired to rules and
// schema root. The keeper does not start processing commands until Start is
// called.
func New(land ids.LandID, root *statetree.FieldSchema, rules LandRules, cfg config.Land) *Keeper {
	tracker := dirty.New()
	k := &Keeper{
		land:    land,
		cfg:     cfg,
		rules:   rules,
		tree:    statetree.NewTree(root, tracker),
		tracker: tracker,
		log:     logging.New(fmt.Sprintf("Keeper:%s", land.String())),
		queue:   newCommandQueue(),
		players: make(map[ids.PlayerID]ids.SessionID),
		actionLimiter: ratelimit.New(600, 30, 10*time.Minute),
		loopDone: make(chan struct{}),
	}
	k.state.Store(int32(Created))
	return k
}

// WithRecorder enables the reevaluation recorder for this keeper.
func (k *Keeper) WithRecorder(r Recorder) *Keeper {
	k.recorder = r
	k.recorderOn = true
	return k
}

// WithReplay puts the keeper into replay mode.
func (k *Keeper) WithReplay(session *ReplaySession) *Keeper {
	k.replay = session
	return k
}

// degradable is implemented by recorders that can fail a RecordTick call
// without aborting the tick (PostgresRecorder, under connection loss) and
// count how many times that's happened.
type degradable interface {
	Degraded() int64
}

// RecorderHealth reports whether a degradable recorder is wired and, if so,
// how many RecordTick calls have failed since it started. ok is false when
// no recorder is attached or the attached recorder can't degrade (RingRecorder
// never fails, so it has no Degraded method).
func (k *Keeper) RecorderHealth() (degraded int64, ok bool) {
	d, ok := k.recorder.(degradable)
	if !ok {
		return 0, false
	}
	return d.Degraded(), true
}

// Start launches the keeper's processing goroutine and the tick scheduler,
// transitioning Created -> Running.
func (k *Keeper) Start() {
	k.state.Store(int32(Running))
	go k.runLoop()
	go k.runTicker()
}

// State reports the current lifecycle state.
func (k *Keeper) State() LifecycleState { return LifecycleState(k.state.Load()) }

// LandID returns this keeper's identity.
func (k *Keeper) LandID() ids.LandID { return k.land }

// RootSchema exposes the static field schema the keeper's tree was built
// from. The schema never changes after construction, so this is safe to
// call from any goroutine without routing through the command queue.
func (k *Keeper) RootSchema() *statetree.FieldSchema { return k.tree.RootSchema() }

// Visibility returns a dirty.Visibility bound to this keeper's tree,
// answering only from the static schema (never live field values), which
// is why it too is safe to call without going through the command queue.
func (k *Keeper) Visibility() dirty.Visibility { return dirty.TreeVisibility(k.tree) }

// SubscribeReplay registers a channel to receive ReplayTickEvent
// notifications; only meaningful for a keeper built WithReplay.
func (k *Keeper) SubscribeReplay(ch chan ReplayTickEvent) {
	k.replaySubs = append(k.replaySubs, ch)
}

func (k *Keeper) runTicker() {
	ticker := time.NewTicker(k.cfg.TickPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if k.State() == Terminated {
			return
		}
		k.queue.enqueueTick(k.cfg.TickCoalesceMax)
	}
}

func (k *Keeper) runLoop() {
	defer close(k.loopDone)
	for {
		cmd, ok := k.queue.dequeue()
		if !ok {
			k.state.Store(int32(Terminated))
			k.actionLimiter.Stop()
			k.log.Printf("terminated")
			return
		}
		k.process(cmd)
		if k.State() == Draining && k.queue.len() == 0 {
			k.queue.close()
		}
	}
}

func (k *Keeper) process(cmd *command) {
	if !cmd.deadline.IsZero() && time.Now().After(cmd.deadline) {
		cmd.reply(nil, errs.New(errs.Timeout, "command deadline exceeded before execution"))
		return
	}
	switch cmd.kind {
	case cmdTick:
		k.processTick(cmd)
	case cmdAction:
		k.processAction(cmd)
	case cmdJoin:
		k.processJoin(cmd)
	case cmdLeave:
		k.processLeave(cmd)
	case cmdSyncFlush:
		k.processSyncFlush(cmd)
	case cmdSetTransport:
		k.transport = cmd.transport
		cmd.reply(nil, nil)
	case cmdGetRecord:
		k.processGetRecord(cmd)
	case cmdGetProjection:
		k.processGetProjection(cmd)
	case cmdShutdown:
		k.state.Store(int32(Draining))
		cmd.reply(nil, nil)
	}
}

// runRule executes fn against the tree with rollback-on-panic: the tree and
// tracker are both restored to their pre-call state if fn panics, and the
// panic is converted into an errs.InternalFault returned to the caller
// instead of crashing the keeper goroutine. The keeper itself keeps running
// afterward — a mutator panic fails just that one tick/action, it does not
// take down the land for every other player in it.
func (k *Keeper) runRule(fn func() error) (err error) {
	preSnapshot := k.tree.Snapshot()
	preLen := k.tracker.Len()
	defer func() {
		if r := recover(); r != nil {
			k.tree.Restore(preSnapshot)
			k.tracker.TruncateTo(preLen)
			err = errs.New(errs.InternalFault, fmt.Sprintf("rule panicked: %v", r))
			k.log.Printf("rule panic, rolled back: %v", r)
		}
	}()
	return fn()
}

func (k *Keeper) notifyMutations(preLen int) {
	if k.transport == nil {
		return
	}
	entries := k.tracker.Entries()
	if preLen >= len(entries) {
		return
	}
	k.transport.NotifyMutation(k.land, entries[preLen:])
}
