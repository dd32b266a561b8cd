package landkeeper

import (
	"time"

	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statehash"
	"github.com/rawblock/landkeeper/internal/statetree"
)

func (k *Keeper) submit(cmd *command) (interface{}, error) {
	if k.State() != Running {
		return nil, errs.New(errs.ShuttingDown, "keeper is "+k.State().String())
	}
	cmd.deadline = time.Now().Add(k.cfg.CommandTimeout)
	cmd.resultCh = make(chan commandResult, 1)
	if !k.queue.push(cmd) {
		return nil, errs.New(errs.ShuttingDown, "keeper queue closed")
	}
	res := <-cmd.resultCh
	return res.value, res.err
}

// HandleAction is handle_action(envelope, player, client, session): applies
// one client action via the configured LandRules, returning the typed
// response payload.
func (k *Keeper) HandleAction(player ids.PlayerID, client ids.ClientID, session ids.SessionID, actionType string, payload statetree.SnapshotValue) (statetree.SnapshotValue, error) {
	v, err := k.submit(&command{
		kind:       cmdAction,
		player:     player,
		client:     client,
		session:    session,
		actionType: actionType,
		payload:    payload,
	})
	if err != nil {
		return statetree.SnapshotValue{}, err
	}
	resp, _ := v.(statetree.SnapshotValue)
	return resp, nil
}

// OnJoin is on_join(player, session).
func (k *Keeper) OnJoin(player ids.PlayerID, session ids.SessionID) error {
	_, err := k.submit(&command{kind: cmdJoin, player: player, session: session})
	return err
}

// OnLeave is on_leave(player, session).
func (k *Keeper) OnLeave(player ids.PlayerID, session ids.SessionID) error {
	_, err := k.submit(&command{kind: cmdLeave, player: player, session: session})
	return err
}

// StepTickOnce is step_tick_once(): advances one tick synchronously,
// bypassing the scheduled ticker (used by tests and replay).
func (k *Keeper) StepTickOnce() error {
	_, err := k.submit(&command{kind: cmdTick, tickDelta: 1})
	return err
}

// RequestSyncFlush is request_sync_flush(): schedules a diff emission
// after the current queue item.
func (k *Keeper) RequestSyncFlush() error {
	_, err := k.submit(&command{kind: cmdSyncFlush})
	return err
}

// SetTransport is set_transport(adapter).
func (k *Keeper) SetTransport(t TransportPublisher) error {
	_, err := k.submit(&command{kind: cmdSetTransport, transport: t})
	return err
}

// BroadcastSnapshot returns the current broadcast-projection snapshot,
// submitted through the command queue so it reflects a consistent point in
// the keeper's FIFO rather than racing live mutation.
func (k *Keeper) BroadcastSnapshot() (statetree.SnapshotValue, error) {
	v, err := k.submit(&command{kind: cmdGetProjection})
	if err != nil {
		return statetree.SnapshotValue{}, err
	}
	snap, _ := v.(statetree.SnapshotValue)
	return snap, nil
}

// GetReevaluationRecord is get_reevaluation_record().
func (k *Keeper) GetReevaluationRecord() ([]ReevaluationEntry, error) {
	v, err := k.submit(&command{kind: cmdGetRecord})
	if err != nil {
		return nil, err
	}
	entries, _ := v.([]ReevaluationEntry)
	return entries, nil
}

// Shutdown transitions Running -> Draining; the keeper finishes in-flight
// and queued work, then becomes Terminated once drained.
func (k *Keeper) Shutdown() error {
	_, err := k.submit(&command{kind: cmdShutdown})
	return err
}

func (k *Keeper) processAction(cmd *command) {
	if ok, retryAfter := k.actionLimiter.Allow(string(cmd.session)); !ok {
		cmd.reply(nil, errs.New(errs.RateLimited, "action rate limit exceeded, retry after "+retryAfter.String()))
		return
	}
	preLen := k.tracker.Len()
	var resp statetree.SnapshotValue
	var events []ServerEvent
	err := k.runRule(func() error {
		var ruleErr error
		resp, events, ruleErr = k.rules.HandleAction(k.tree, cmd.player, cmd.client, cmd.session, cmd.actionType, cmd.payload)
		return ruleErr
	})
	if err != nil {
		cmd.reply(nil, err)
		return
	}
	k.notifyMutations(preLen)
	// Reply before fanning out server events, so a caller blocked on this
	// command's response never observes an event ahead of its own result.
	cmd.reply(resp, nil)
	k.emitEvents(events)
}

func (k *Keeper) processJoin(cmd *command) {
	if _, already := k.players[cmd.player]; already {
		cmd.reply(nil, errs.New(errs.AlreadyJoined, "player already joined"))
		return
	}
	if k.cfg.MaxPlayers > 0 && len(k.players) >= k.cfg.MaxPlayers {
		cmd.reply(nil, errs.New(errs.CapacityExceeded, "land at max_players"))
		return
	}
	preLen := k.tracker.Len()
	err := k.runRule(func() error {
		return k.rules.OnJoin(k.tree, cmd.player, cmd.session)
	})
	if err != nil {
		cmd.reply(nil, err)
		return
	}
	k.players[cmd.player] = cmd.session
	k.notifyMutations(preLen)
	cmd.reply(nil, nil)
}

func (k *Keeper) processLeave(cmd *command) {
	if _, ok := k.players[cmd.player]; !ok {
		cmd.reply(nil, nil) // idempotent
		return
	}
	preLen := k.tracker.Len()
	err := k.runRule(func() error {
		return k.rules.OnLeave(k.tree, cmd.player, cmd.session)
	})
	if err != nil {
		cmd.reply(nil, err)
		return
	}
	delete(k.players, cmd.player)
	k.notifyMutations(preLen)
	cmd.reply(nil, nil)
}

func (k *Keeper) processTick(cmd *command) {
	preLen := k.tracker.Len()
	var events []ServerEvent
	var appliedEnvelopes []string
	err := k.runRule(func() error {
		if k.replay != nil {
			for _, action := range k.replay.ActionsByTick[k.tickCount+1] {
				if _, _, rErr := k.rules.HandleAction(k.tree, action.Player, action.Client, action.Session, action.ActionType, action.Payload); rErr != nil {
					return rErr
				}
				appliedEnvelopes = append(appliedEnvelopes, action.ActionType)
			}
		}
		var ruleErr error
		events, ruleErr = k.rules.Tick(k.tree, cmd.tickDelta)
		return ruleErr
	})
	if err != nil {
		cmd.reply(nil, err)
		return
	}
	k.tickCount++
	k.notifyMutations(preLen)
	cmd.reply(nil, nil)
	k.emitEvents(events)

	if k.recorderOn {
		hash := statehash.Of(k.tree.HashProjection())
		entry := ReevaluationEntry{
			Tick:             k.tickCount,
			AppliedEnvelopes: appliedEnvelopes,
			StateHash:        string(hash),
			EmittedEvents:    events,
		}
		if recErr := k.recorder.RecordTick(k.land, entry); recErr != nil {
			k.log.Printf("recorder degraded: %v", recErr)
		}
		if k.replay != nil {
			k.compareReplayTick(entry)
		}
	}
}

func (k *Keeper) compareReplayTick(actual ReevaluationEntry) {
	for _, expected := range k.replay.Entries {
		if expected.Tick != actual.Tick {
			continue
		}
		event := ReplayTickEvent{
			Tick:         actual.Tick,
			IsMatch:      expected.StateHash == actual.StateHash,
			ExpectedHash: expected.StateHash,
			ActualHash:   actual.StateHash,
		}
		for _, sub := range k.replaySubs {
			select {
			case sub <- event:
			default:
			}
		}
		return
	}
}

func (k *Keeper) processSyncFlush(cmd *command) {
	if k.transport != nil {
		if err := k.transport.SyncNow(k.land); err != nil {
			cmd.reply(nil, err)
			return
		}
	}
	cmd.reply(nil, nil)
}

func (k *Keeper) processGetProjection(cmd *command) {
	cmd.reply(k.tree.BroadcastProjection(), nil)
}

func (k *Keeper) processGetRecord(cmd *command) {
	if !k.recorderOn {
		cmd.reply(nil, errs.New(errs.RecorderDisabled, "reevaluation recorder not enabled for this keeper"))
		return
	}
	entries, err := k.recorder.All(k.land)
	cmd.reply(entries, err)
}

func (k *Keeper) emitEvents(events []ServerEvent) {
	if len(events) == 0 || k.transport == nil {
		return
	}
	// Events aren't field mutations, so they don't belong on the
	// NotifyMutation channel; a dedicated optional hook carries them
	// instead.
	if publisher, ok := k.transport.(ServerEventPublisher); ok {
		publisher.PublishServerEvents(k.land, events)
	}
}

// ServerEventPublisher is an optional extension a TransportPublisher may
// implement to receive ServerEvent fan-out; kept separate from
// TransportPublisher's required methods since a keeper used without any
// rule that emits events never needs it.
type ServerEventPublisher interface {
	PublishServerEvents(land ids.LandID, events []ServerEvent)
}
