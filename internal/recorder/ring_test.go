package recorder_test

import (
	"testing"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/recorder"
)

func TestRingRecorderBoundsPerLand(t *testing.T) {
	ring := recorder.NewRing(3)
	land := ids.LandID{LandType: "demo", InstanceID: "a"}

	for i := int64(1); i <= 5; i++ {
		if err := ring.RecordTick(land, landkeeper.ReevaluationEntry{Tick: i, StateHash: "h"}); err != nil {
			t.Fatalf("RecordTick(%d): %v", i, err)
		}
	}

	entries, err := ring.All(land)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected ring bounded to 3 entries, got %d", len(entries))
	}
	if entries[0].Tick != 3 || entries[2].Tick != 5 {
		t.Fatalf("expected the oldest two ticks evicted, got ticks %d..%d", entries[0].Tick, entries[2].Tick)
	}
}

func TestRingRecorderSeparatesLands(t *testing.T) {
	ring := recorder.NewRing(10)
	landA := ids.LandID{LandType: "demo", InstanceID: "a"}
	landB := ids.LandID{LandType: "demo", InstanceID: "b"}

	if err := ring.RecordTick(landA, landkeeper.ReevaluationEntry{Tick: 1}); err != nil {
		t.Fatalf("RecordTick a: %v", err)
	}
	entriesB, err := ring.All(landB)
	if err != nil {
		t.Fatalf("All b: %v", err)
	}
	if len(entriesB) != 0 {
		t.Fatalf("expected land b to have no entries, got %d", len(entriesB))
	}
}

type fakeSource struct {
	entries []landkeeper.ReevaluationEntry
}

func (f fakeSource) All(ids.LandID) ([]landkeeper.ReevaluationEntry, error) { return f.entries, nil }

func TestLoadReplaySessionWithoutActions(t *testing.T) {
	src := fakeSource{entries: []landkeeper.ReevaluationEntry{{Tick: 1, StateHash: "h1"}, {Tick: 2, StateHash: "h2"}}}
	session, err := recorder.LoadReplaySession(ids.LandID{LandType: "demo", InstanceID: "a"}, src, nil)
	if err != nil {
		t.Fatalf("LoadReplaySession: %v", err)
	}
	if len(session.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(session.Entries))
	}
	if session.ActionsByTick != nil {
		t.Fatalf("expected nil ActionsByTick when no ActionSource supplied")
	}
}
