package recorder

import (
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
)

// Source is the narrow read side of a Recorder a replay loader needs.
type Source interface {
	All(land ids.LandID) ([]landkeeper.ReevaluationEntry, error)
}

// ActionSource supplies the recorded action envelopes a replay needs to
// re-apply at each tick; a concrete land type's own action log (outside
// this package's scope) implements it.
type ActionSource interface {
	ActionsByTick(land ids.LandID) (map[int64][]landkeeper.RecordedAction, error)
}

// LoadReplaySession builds a landkeeper.ReplaySession from a recorded
// land's entries and, when actions is non-nil, its recorded action
// envelopes — the two pieces a keeper needs to re-run a session and
// compare tick-by-tick hashes.
func LoadReplaySession(land ids.LandID, source Source, actions ActionSource) (*landkeeper.ReplaySession, error) {
	entries, err := source.All(land)
	if err != nil {
		return nil, err
	}
	session := &landkeeper.ReplaySession{Entries: entries}
	if actions != nil {
		byTick, err := actions.ActionsByTick(land)
		if err != nil {
			return nil, err
		}
		session.ActionsByTick = byTick
	}
	return session, nil
}
