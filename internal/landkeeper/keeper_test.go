package landkeeper_test

import (
	"testing"
	"time"

	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/statetree"
)

func testSchema() *statetree.FieldSchema {
	return &statetree.FieldSchema{
		Kind: statetree.KindComposite,
		Fields: []*statetree.FieldSchema{
			statetree.Leaf("counter", statetree.Broadcast, statetree.Int(0)),
			statetree.MapOf("players", statetree.Broadcast, statetree.Composite("player", statetree.Broadcast,
				statetree.Leaf("hp", statetree.Broadcast, statetree.Int(100)),
			)),
		},
	}
}

// testRules is a minimal LandRules used only to exercise the scheduler.
type testRules struct{}

func (testRules) OnJoin(tree *statetree.Tree, player ids.PlayerID, _ ids.SessionID) error {
	playersPath := ids.FieldPath{ids.NameSeg("players")}
	return tree.SetMapEntry(playersPath, string(player), statetree.Object(map[string]statetree.SnapshotValue{"hp": statetree.Int(100)}))
}

func (testRules) OnLeave(tree *statetree.Tree, player ids.PlayerID, _ ids.SessionID) error {
	playersPath := ids.FieldPath{ids.NameSeg("players")}
	return tree.DeleteMapEntry(playersPath, string(player))
}

func (testRules) HandleAction(tree *statetree.Tree, player ids.PlayerID, _ ids.ClientID, _ ids.SessionID, actionType string, payload statetree.SnapshotValue) (statetree.SnapshotValue, []landkeeper.ServerEvent, error) {
	switch actionType {
	case "ping":
		return statetree.Str("pong"), nil, nil
	case "panic":
		panic("boom")
	case "damage":
		hpPath := ids.FieldPath{ids.NameSeg("players")}.Append(ids.KeySeg(string(player))).Append(ids.NameSeg("hp"))
		cur, err := tree.Get(hpPath)
		if err != nil {
			return statetree.SnapshotValue{}, nil, err
		}
		if err := tree.SetLeaf(hpPath, statetree.Int(cur.Int-payload.Int)); err != nil {
			return statetree.SnapshotValue{}, nil, err
		}
		return statetree.Null(), []landkeeper.ServerEvent{{Type: "damaged", Payload: payload}}, nil
	}
	return statetree.SnapshotValue{}, nil, errs.New(errs.InvalidAction, "unknown action "+actionType)
}

func (testRules) Tick(tree *statetree.Tree, deltaTicks int64) ([]landkeeper.ServerEvent, error) {
	path := ids.FieldPath{ids.NameSeg("counter")}
	cur, err := tree.Get(path)
	if err != nil {
		return nil, err
	}
	if err := tree.SetLeaf(path, statetree.Int(cur.Int+deltaTicks)); err != nil {
		return nil, err
	}
	return nil, nil
}

type fakeTransport struct {
	mutations [][]dirty.Entry
	synced    int
	events    []landkeeper.ServerEvent
}

func (f *fakeTransport) NotifyMutation(_ ids.LandID, entries []dirty.Entry) {
	f.mutations = append(f.mutations, entries)
}
func (f *fakeTransport) SyncNow(ids.LandID) error { f.synced++; return nil }
func (f *fakeTransport) PublishServerEvents(_ ids.LandID, events []landkeeper.ServerEvent) {
	f.events = append(f.events, events...)
}

func testConfig() config.Land {
	cfg := config.Default()
	cfg.TickPeriod = time.Hour // disable the background ticker for deterministic tests
	cfg.CommandTimeout = 5 * time.Second
	return cfg
}

func TestJoinActionTickLifecycle(t *testing.T) {
	land := ids.LandID{LandType: "demo", InstanceID: "t1"}
	k := landkeeper.New(land, testSchema(), testRules{}, testConfig())
	transport := &fakeTransport{}
	k.Start()
	defer k.Shutdown()

	if err := k.SetTransport(transport); err != nil {
		t.Fatalf("SetTransport: %v", err)
	}
	if err := k.OnJoin(ids.PlayerID("alice"), ids.NewSessionID()); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if err := k.OnJoin(ids.PlayerID("alice"), ids.NewSessionID()); !errs.Is(err, errs.AlreadyJoined) {
		t.Fatalf("expected already_joined, got %v", err)
	}

	resp, err := k.HandleAction(ids.PlayerID("alice"), ids.NewClientID(), ids.NewSessionID(), "ping", statetree.Null())
	if err != nil {
		t.Fatalf("HandleAction ping: %v", err)
	}
	if resp.Str != "pong" {
		t.Fatalf("ping response = %v, want pong", resp)
	}

	if _, err := k.HandleAction(ids.PlayerID("alice"), ids.NewClientID(), ids.NewSessionID(), "damage", statetree.Int(30)); err != nil {
		t.Fatalf("HandleAction damage: %v", err)
	}

	if err := k.StepTickOnce(); err != nil {
		t.Fatalf("StepTickOnce: %v", err)
	}

	if len(transport.mutations) == 0 {
		t.Fatal("expected at least one mutation notification")
	}
	if len(transport.events) != 1 || transport.events[0].Type != "damaged" {
		t.Fatalf("expected one damaged event, got %v", transport.events)
	}
}

func TestActionPanicRollsBack(t *testing.T) {
	land := ids.LandID{LandType: "demo", InstanceID: "t2"}
	k := landkeeper.New(land, testSchema(), testRules{}, testConfig())
	k.Start()
	defer k.Shutdown()

	if err := k.OnJoin(ids.PlayerID("bob"), ids.NewSessionID()); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}

	_, err := k.HandleAction(ids.PlayerID("bob"), ids.NewClientID(), ids.NewSessionID(), "panic", statetree.Null())
	if !errs.Is(err, errs.InternalFault) {
		t.Fatalf("expected internal_fault from panicking rule, got %v", err)
	}

	// A panicking mutator fails only that one action; the keeper keeps
	// running and serves every other player's commands normally.
	resp, err := k.HandleAction(ids.PlayerID("bob"), ids.NewClientID(), ids.NewSessionID(), "ping", statetree.Null())
	if err != nil {
		t.Fatalf("HandleAction after panic: %v", err)
	}
	if resp.Str != "pong" {
		t.Fatalf("resp = %v, want pong", resp)
	}
}

func TestRateLimitedAction(t *testing.T) {
	land := ids.LandID{LandType: "demo", InstanceID: "t3"}
	k := landkeeper.New(land, testSchema(), testRules{}, testConfig())
	k.Start()
	defer k.Shutdown()

	player := ids.PlayerID("carol")
	session := ids.NewSessionID()
	if err := k.OnJoin(player, session); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}

	var lastErr error
	for i := 0; i < 64; i++ {
		_, lastErr = k.HandleAction(player, ids.NewClientID(), session, "ping", statetree.Null())
		if lastErr != nil {
			break
		}
	}
	if !errs.Is(lastErr, errs.RateLimited) {
		t.Fatalf("expected rate_limited after burst exhaustion, got %v", lastErr)
	}
}
