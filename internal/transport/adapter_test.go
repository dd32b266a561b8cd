package transport_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rawblock/landkeeper/internal/codec"
	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/statetree"
	"github.com/rawblock/landkeeper/internal/transport"
)

func testSchema() *statetree.FieldSchema {
	return statetree.Composite("root", statetree.Broadcast,
		statetree.Leaf("counter", statetree.Broadcast, statetree.Int(0)),
		statetree.MapOf("players", statetree.Broadcast, statetree.Composite("player", statetree.Broadcast,
			statetree.Leaf("hp", statetree.Broadcast, statetree.Int(100)),
		)),
	)
}

type noopRules struct{}

func (noopRules) OnJoin(tree *statetree.Tree, player ids.PlayerID, _ ids.SessionID) error {
	return tree.SetMapEntry(ids.FieldPath{ids.NameSeg("players")}, string(player),
		statetree.Object(map[string]statetree.SnapshotValue{"hp": statetree.Int(100)}))
}

func (noopRules) OnLeave(tree *statetree.Tree, player ids.PlayerID, _ ids.SessionID) error {
	return tree.DeleteMapEntry(ids.FieldPath{ids.NameSeg("players")}, string(player))
}

func (noopRules) HandleAction(tree *statetree.Tree, player ids.PlayerID, _ ids.ClientID, _ ids.SessionID, actionType string, payload statetree.SnapshotValue) (statetree.SnapshotValue, []landkeeper.ServerEvent, error) {
	hpPath := ids.FieldPath{ids.NameSeg("players")}.Append(ids.KeySeg(string(player))).Append(ids.NameSeg("hp"))
	cur, err := tree.Get(hpPath)
	if err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	if err := tree.SetLeaf(hpPath, statetree.Int(cur.Int-payload.Int)); err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	return statetree.Null(), nil, nil
}

func (noopRules) Tick(tree *statetree.Tree, deltaTicks int64) ([]landkeeper.ServerEvent, error) {
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
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func newTestKeeper(t *testing.T) (*landkeeper.Keeper, *transport.Adapter, codec.Kind) {
	t.Helper()
	cfg := config.Default()
	cfg.TickPeriod = time.Hour
	cfg.CommandTimeout = 5 * time.Second
	cfg.OutboundQueueBytesMax = 1 << 20

	k := landkeeper.New(ids.LandID{LandType: "demo", InstanceID: "test"}, testSchema(), noopRules{}, cfg)
	k.Start()
	t.Cleanup(func() { _ = k.Shutdown() })

	adapter, err := transport.NewAdapter(k, cfg, codec.JSONObject, "v1")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := k.SetTransport(adapter); err != nil {
		t.Fatalf("SetTransport: %v", err)
	}
	return k, adapter, codec.JSONObject
}

func TestJoinSendsFirstSync(t *testing.T) {
	_, adapter, _ := newTestKeeper(t)

	sessionID := ids.NewSessionID()
	tr := &fakeTransport{}
	adapter.OnConnect(sessionID, ids.NewClientID(), tr)

	if err := adapter.PerformJoin(sessionID, ids.PlayerID("alice"), nil, "/", "/connect"); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}
	if tr.count() != 1 {
		t.Fatalf("expected exactly one firstSync frame, got %d", tr.count())
	}
}

func TestMutationFlushesDiffOnSyncNow(t *testing.T) {
	k, adapter, _ := newTestKeeper(t)

	sessionID := ids.NewSessionID()
	tr := &fakeTransport{}
	adapter.OnConnect(sessionID, ids.NewClientID(), tr)
	if err := adapter.PerformJoin(sessionID, ids.PlayerID("alice"), nil, "/", "/connect"); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}
	firstSyncCount := tr.count()

	if _, err := k.HandleAction(ids.PlayerID("alice"), ids.NewClientID(), sessionID, "damage", statetree.Int(10)); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	if err := k.RequestSyncFlush(); err != nil {
		t.Fatalf("RequestSyncFlush: %v", err)
	}

	if tr.count() != firstSyncCount+1 {
		t.Fatalf("expected one diff frame after the mutation, got %d new frames", tr.count()-firstSyncCount)
	}

	// The jsonObject encoding only ever sends full-tree snapshots, never
	// opcodes, so the diff frame must carry the post-mutation tree — not
	// an empty one — or a reconnecting client would silently roll back
	// every field to its schema default.
	var decoded struct {
		Kind string `json:"kind"`
		Tree struct {
			Players map[string]struct {
				HP int `json:"hp"`
			} `json:"players"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(tr.last(), &decoded); err != nil {
		t.Fatalf("Unmarshal diff frame: %v", err)
	}
	if decoded.Kind != "diff" {
		t.Fatalf("kind = %q, want diff", decoded.Kind)
	}
	alice, ok := decoded.Tree.Players["alice"]
	if !ok {
		t.Fatalf("diff tree missing alice: %+v", decoded.Tree)
	}
	if alice.HP != 90 {
		t.Fatalf("alice.hp = %d, want 90", alice.HP)
	}
}

func TestBackpressureMarksSessionStale(t *testing.T) {
	cfg := config.Default()
	cfg.TickPeriod = time.Hour
	cfg.CommandTimeout = 5 * time.Second
	cfg.OutboundQueueBytesMax = 1 // smaller than any real frame

	k := landkeeper.New(ids.LandID{LandType: "demo", InstanceID: "test"}, testSchema(), noopRules{}, cfg)
	k.Start()
	t.Cleanup(func() { _ = k.Shutdown() })

	adapter, err := transport.NewAdapter(k, cfg, codec.JSONObject, "v1")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := k.SetTransport(adapter); err != nil {
		t.Fatalf("SetTransport: %v", err)
	}

	sessionID := ids.NewSessionID()
	tr := &fakeTransport{}
	adapter.OnConnect(sessionID, ids.NewClientID(), tr)
	if err := adapter.PerformJoin(sessionID, ids.PlayerID("alice"), nil, "/", "/connect"); err != nil {
		t.Fatalf("PerformJoin: %v", err)
	}

	if _, err := k.HandleAction(ids.PlayerID("alice"), ids.NewClientID(), sessionID, "damage", statetree.Int(5)); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	// Over budget: SyncNow should drop the diff rather than send a frame
	// that blows the configured outbound byte ceiling.
	if err := k.RequestSyncFlush(); err != nil {
		t.Fatalf("RequestSyncFlush: %v", err)
	}
	if got := tr.count(); got != 1 {
		t.Fatalf("frames sent = %d, want only the firstSync frame", got)
	}
}

func TestParallelEncodingThresholdSelection(t *testing.T) {
	cfg := config.Default()
	cfg.TickPeriod = time.Hour
	cfg.CommandTimeout = 5 * time.Second
	cfg.ParallelEncoding = true
	cfg.ParallelMinPlayers = 2
	cfg.ParallelBatchSize = 4

	k := landkeeper.New(ids.LandID{LandType: "demo", InstanceID: "test"}, testSchema(), noopRules{}, cfg)
	k.Start()
	t.Cleanup(func() { _ = k.Shutdown() })

	adapter, err := transport.NewAdapter(k, cfg, codec.OpcodeJSONArray, "v1")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := k.SetTransport(adapter); err != nil {
		t.Fatalf("SetTransport: %v", err)
	}

	const players = 5
	sessions := make([]ids.SessionID, players)
	fakes := make([]*fakeTransport, players)
	for i := 0; i < players; i++ {
		sessions[i] = ids.NewSessionID()
		fakes[i] = &fakeTransport{}
		player := ids.PlayerID(string(rune('a' + i)))
		adapter.OnConnect(sessions[i], ids.NewClientID(), fakes[i])
		if err := adapter.PerformJoin(sessions[i], player, nil, "/", "/connect"); err != nil {
			t.Fatalf("PerformJoin %d: %v", i, err)
		}
	}

	if err := k.StepTickOnce(); err != nil {
		t.Fatalf("StepTickOnce: %v", err)
	}
	if err := k.RequestSyncFlush(); err != nil {
		t.Fatalf("RequestSyncFlush: %v", err)
	}

	for i, f := range fakes {
		if f.count() < 2 {
			t.Fatalf("session %d: expected firstSync plus a tick diff, got %d frames", i, f.count())
		}
	}
}
