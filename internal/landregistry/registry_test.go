package landregistry_test

import (
	"testing"
	"time"

	"github.com/rawblock/landkeeper/internal/codec"
	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/landregistry"
	"github.com/rawblock/landkeeper/internal/statetree"
)

type noopRules struct{}

func (noopRules) OnJoin(*statetree.Tree, ids.PlayerID, ids.SessionID) error  { return nil }
func (noopRules) OnLeave(*statetree.Tree, ids.PlayerID, ids.SessionID) error { return nil }
func (noopRules) HandleAction(*statetree.Tree, ids.PlayerID, ids.ClientID, ids.SessionID, string, statetree.SnapshotValue) (statetree.SnapshotValue, []landkeeper.ServerEvent, error) {
	return statetree.Null(), nil, nil
}
func (noopRules) Tick(*statetree.Tree, int64) ([]landkeeper.ServerEvent, error) { return nil, nil }

func testType() landregistry.LandType {
	return landregistry.LandType{
		Schema: func() *statetree.FieldSchema {
			return statetree.Composite("root", statetree.Broadcast,
				statetree.Leaf("counter", statetree.Broadcast, statetree.Int(0)),
			)
		},
		NewRules:      func() landkeeper.LandRules { return noopRules{} },
		Encoding:      codec.JSONObject,
		SchemaVersion: "v1",
	}
}

func testConfig() config.Land {
	cfg := config.Default()
	cfg.TickPeriod = time.Hour
	cfg.CommandTimeout = 5 * time.Second
	return cfg
}

func TestCreateInstanceUnregisteredType(t *testing.T) {
	reg := landregistry.New()
	land := ids.LandID{LandType: "missing", InstanceID: "a"}
	_, _, err := reg.CreateInstance(land, testConfig())
	if !errs.Is(err, errs.SchemaMismatch) {
		t.Fatalf("expected schema_mismatch for unregistered land_type, got %v", err)
	}
}

func TestGetOrCreateReusesRunningInstance(t *testing.T) {
	reg := landregistry.New()
	reg.Register("demo", testType())
	land := ids.LandID{LandType: "demo", InstanceID: "a"}

	k1, _, err := reg.GetOrCreate(land, testConfig())
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	k2, _, err := reg.GetOrCreate(land, testConfig())
	if err != nil {
		t.Fatalf("GetOrCreate (second): %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected the same keeper instance returned on a second GetOrCreate")
	}
	_ = k1.Shutdown()
}

func TestRemoveShutsDownInstance(t *testing.T) {
	reg := landregistry.New()
	reg.Register("demo", testType())
	land := ids.LandID{LandType: "demo", InstanceID: "b"}

	keeper, _, err := reg.CreateInstance(land, testConfig())
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	reg.Remove(land)

	if _, _, ok := reg.Lookup(land); ok {
		t.Fatalf("expected instance to be forgotten after Remove")
	}
	// Remove requests Shutdown, so the keeper has left Running by now.
	if keeper.State() == landkeeper.Running {
		t.Fatalf("expected keeper to leave Running after Remove, got %v", keeper.State())
	}
}
