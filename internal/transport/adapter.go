package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rawblock/landkeeper/internal/codec"
	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/logging"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// Adapter is the TransportAdapter for one land: it owns the session table,
// the player-to-session binding, per-player pending diffs, and the
// parallel encoding controller. It implements landkeeper.TransportPublisher
// and landkeeper.ServerEventPublisher so a Keeper can be wired straight to
// it via SetTransport.
type Adapter struct {
	keeper *landkeeper.Keeper
	cfg    config.Land
	enc    codec.Encoder
	table  *ids.PathHashTable
	log    *log.Logger

	mu            sync.RWMutex
	sessions      map[ids.SessionID]*session
	playerSession map[ids.PlayerID]ids.SessionID
}

// NewAdapter builds an Adapter for keeper, deriving the path-hash table
// from the keeper's schema (only meaningful for the two path-hash
// encoders; nil table is fine for jsonObject/legacy).
func NewAdapter(keeper *landkeeper.Keeper, cfg config.Land, kind codec.Kind, tableVersion string) (*Adapter, error) {
	a := &Adapter{
		keeper:        keeper,
		cfg:           cfg,
		enc:           codec.New(kind),
		log:           logging.New(fmt.Sprintf("Transport:%s", keeper.LandID().String())),
		sessions:      make(map[ids.SessionID]*session),
		playerSession: make(map[ids.PlayerID]ids.SessionID),
	}
	if kind == codec.OpcodeJSONArray || kind == codec.OpcodeMessagePack {
		templates := statetree.AllTemplates(keeper.RootSchema())
		table, err := ids.NewPathHashTable(tableVersion, templates)
		if err != nil {
			return nil, err
		}
		a.table = table
	}
	return a, nil
}

// PathHashTable exposes the table built at construction, for the schema
// introspection endpoint.
func (a *Adapter) PathHashTable() *ids.PathHashTable { return a.table }

// PlayerForSession returns the player a bound session is playing as, for a
// caller (the reference binary's action dispatch loop) that needs to turn
// an inbound frame into a landkeeper.Keeper.HandleAction call.
func (a *Adapter) PlayerForSession(sessionID ids.SessionID) (ids.PlayerID, ids.ClientID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sess, ok := a.sessions[sessionID]
	if !ok || sess.getState() != Bound {
		return "", "", false
	}
	return sess.player, sess.client, true
}

// Keeper exposes the underlying keeper, for callers that need to issue
// commands against it directly (HandleAction dispatch, admin endpoints).
func (a *Adapter) Keeper() *landkeeper.Keeper { return a.keeper }

// OnConnect registers a fresh Unauthenticated session.
func (a *Adapter) OnConnect(sessionID ids.SessionID, client ids.ClientID, t Transport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[sessionID] = newSession(sessionID, client, t)
}

// PerformJoin validates authInfo, runs on_join via the keeper, binds the
// session, and sends the player's firstSync.
func (a *Adapter) PerformJoin(sessionID ids.SessionID, player ids.PlayerID, resolver AuthInfoResolver, path, uri string) error {
	a.mu.RLock()
	sess, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if !ok {
		return errs.New(errs.Unauthorized, "join on unknown session")
	}
	sess.setState(Authenticating)

	if resolver != nil {
		info, err := resolver.Resolve(path, uri)
		if err != nil {
			return errs.Wrap(errs.Unauthorized, "auth resolver rejected join", err)
		}
		if info != nil {
			player = info.PlayerID
		}
	}

	if err := a.keeper.OnJoin(player, sessionID); err != nil {
		return err
	}

	sess.bind(player)
	a.mu.Lock()
	a.playerSession[player] = sessionID
	a.mu.Unlock()

	snapshot, err := a.keeper.BroadcastSnapshot()
	if err != nil {
		return err
	}
	payload, err := a.enc.EncodeFirstSync(snapshot)
	if err != nil {
		return errs.Wrap(errs.EncodeError, "firstSync encode failed", err)
	}
	return sess.transport.Send(payload)
}

// OnDisconnect transitions a session to Draining and, after the configured
// join grace window, releases the player and closes the session.
func (a *Adapter) OnDisconnect(sessionID ids.SessionID) {
	a.mu.RLock()
	sess, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if !ok {
		return
	}
	sess.setState(Draining)
	time.AfterFunc(a.cfg.JoinGrace, func() { a.finalizeDisconnect(sessionID) })
}

func (a *Adapter) finalizeDisconnect(sessionID ids.SessionID) {
	a.mu.Lock()
	sess, ok := a.sessions[sessionID]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.sessions, sessionID)
	if sess.player != "" {
		delete(a.playerSession, sess.player)
	}
	a.mu.Unlock()

	if sess.player != "" {
		if err := a.keeper.OnLeave(sess.player, sessionID); err != nil {
			a.log.Printf("on_leave failed for session %s: %v", sessionID, err)
		}
	}
	sess.setState(Closed)
	_ = sess.transport.Close()
}

// NotifyMutation implements landkeeper.TransportPublisher: every bound
// session's pending diff gets the broadcast-visible subset of entries
// appended. Visibility is global (a field is either broadcast or
// server-only for every player alike), so the filtered set is identical
// for every session — only each session's accumulation window differs.
func (a *Adapter) NotifyMutation(land ids.LandID, entries []dirty.Entry) {
	vis := a.keeper.Visibility()
	visible := make([]dirty.Entry, 0, len(entries))
	for _, e := range entries {
		if vis.Visible(e.Path) {
			visible = append(visible, e)
		}
	}
	if len(visible) == 0 {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, sess := range a.sessions {
		if sess.getState() != Bound {
			continue
		}
		sess.appendPending(visible)
	}
}

// PublishServerEvents implements landkeeper.ServerEventPublisher. Events
// are broadcast to every bound session as their own frame, independent of
// the pending-diff flush.
func (a *Adapter) PublishServerEvents(land ids.LandID, events []landkeeper.ServerEvent) {
	if len(events) == 0 {
		return
	}
	a.mu.RLock()
	sessions := make([]*session, 0, len(a.sessions))
	for _, sess := range a.sessions {
		if sess.getState() == Bound {
			sessions = append(sessions, sess)
		}
	}
	a.mu.RUnlock()
	for _, e := range events {
		frame := encodeServerEvent(e)
		for _, sess := range sessions {
			if err := sess.transport.Send(frame); err != nil {
				a.log.Printf("server event send failed for session %s: %v", sess.id, err)
			}
		}
	}
}

// wireServerEvent is the JSON envelope a server event is sent as; it mirrors
// the {type, payload} shape the state-update messages use for their own
// value encoding so a client only needs one JSON decoder.
type wireServerEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func encodeServerEvent(e landkeeper.ServerEvent) []byte {
	b, err := json.Marshal(wireServerEvent{Type: e.Type, Payload: codec.JSONValue(e.Payload)})
	if err != nil {
		return []byte(`{"type":"` + e.Type + `"}`)
	}
	return b
}

// SyncNow implements landkeeper.TransportPublisher: encodes and sends each
// bound session's non-empty pending diff, applying the parallel-encoding
// controller and per-session backpressure.
func (a *Adapter) SyncNow(land ids.LandID) error {
	a.mu.RLock()
	targets := make([]*session, 0, len(a.sessions))
	for _, sess := range a.sessions {
		if sess.getState() != Bound {
			continue
		}
		if sess.drainedAndStale() {
			targets = append(targets, sess)
			continue
		}
		if len(sess.pending) > 0 {
			targets = append(targets, sess)
		}
	}
	a.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	n := len(targets)
	concurrency := 1
	if a.cfg.ParallelEncoding && a.enc.Kind().SupportsParallelEncoding() {
		switch {
		case n < a.cfg.ParallelMinPlayers:
			concurrency = 1
		case n < a.cfg.ParallelHighThreshold:
			concurrency = a.cfg.ParallelLowCap
		default:
			concurrency = a.cfg.ParallelHighCap
		}
	}
	batchSize := a.cfg.ParallelBatchSize
	if batchSize <= 0 {
		batchSize = n
	}

	sem := make(chan struct{}, maxInt(concurrency, 1))
	var wg sync.WaitGroup
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batch := targets[start:end]
		wg.Add(1)
		sem <- struct{}{}
		go func(batch []*session) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, sess := range batch {
				a.flushSession(sess)
			}
		}(batch)
	}
	wg.Wait()
	return nil
}

func (a *Adapter) flushSession(sess *session) {
	if sess.drainedAndStale() {
		snapshot, err := a.keeper.BroadcastSnapshot()
		if err != nil {
			a.log.Printf("stale-recovery snapshot failed for session %s: %v", sess.id, err)
			return
		}
		payload, err := a.enc.EncodeFirstSync(snapshot)
		if err != nil {
			a.log.Printf("stale-recovery encode failed for session %s: %v", sess.id, err)
			return
		}
		if a.trySend(sess, payload) {
			sess.clearStale()
		}
		return
	}

	entries := sess.takePending()
	if len(entries) == 0 {
		return
	}
	ops := dirty.BuildDiff(entries, alwaysVisible{})
	if len(ops) == 0 {
		return
	}

	if a.enc.Kind() == codec.JSONObject {
		snapshot, err := a.keeper.BroadcastSnapshot()
		if err != nil {
			a.log.Printf("diff snapshot failed for session %s: %v", sess.id, err)
			return
		}
		ops = []dirty.Opcode{{Op: dirty.OpSet, Value: snapshot}}
	}

	payload, err := a.encodeWithRetry(ops)
	if err != nil {
		a.log.Printf("encode_error closing session %s: %v", sess.id, err)
		sess.setState(Closed)
		_ = sess.transport.Close()
		return
	}
	a.trySend(sess, payload)
}

// encodeWithRetry retries a failed encode exactly once, matching the
// policy that a second failure is fatal to the session.
func (a *Adapter) encodeWithRetry(ops []dirty.Opcode) ([]byte, error) {
	payload, err := a.enc.EncodeDiff(ops, a.table)
	if err == nil {
		return payload, nil
	}
	return a.enc.EncodeDiff(ops, a.table)
}

func (a *Adapter) trySend(sess *session, payload []byte) bool {
	if !sess.recordSend(len(payload), a.cfg.OutboundQueueBytesMax) {
		sess.markStale()
		return false
	}
	err := sess.transport.Send(payload)
	sess.ackSend(len(payload))
	if err != nil {
		a.log.Printf("send_timeout closing session %s: %v", sess.id, err)
		sess.setState(Closed)
		_ = sess.transport.Close()
		return false
	}
	return true
}

type alwaysVisible struct{}

func (alwaysVisible) Visible(ids.FieldPath) bool { return true }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
