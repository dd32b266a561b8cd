package demoland_test

import (
	"testing"

	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
	"github.com/rawblock/landkeeper/pkg/demoland"
)

func newTestTree() *statetree.Tree {
	return statetree.NewTree(demoland.RootSchema(), dirty.New())
}

func TestOnJoinAddsPlayerAndRejectsDuplicate(t *testing.T) {
	tree := newTestTree()
	rules := demoland.NewRules()

	if err := rules.OnJoin(tree, "alice", "sess-1"); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	v, err := tree.Get(ids.FieldPath{ids.NameSeg("players"), ids.KeySeg("alice")})
	if err != nil {
		t.Fatalf("expected alice in players map: %v", err)
	}
	if v.Object["hp"].Int != 100 {
		t.Fatalf("expected fresh hp 100, got %d", v.Object["hp"].Int)
	}

	if err := rules.OnJoin(tree, "alice", "sess-2"); err == nil {
		t.Fatalf("expected AlreadyJoined rejoining the same player")
	}
}

func TestOnLeaveIsIdempotent(t *testing.T) {
	tree := newTestTree()
	rules := demoland.NewRules()
	if err := rules.OnJoin(tree, "bob", "sess-1"); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if err := rules.OnLeave(tree, "bob", "sess-1"); err != nil {
		t.Fatalf("OnLeave: %v", err)
	}
	if err := rules.OnLeave(tree, "bob", "sess-1"); err != nil {
		t.Fatalf("second OnLeave should be a no-op, got %v", err)
	}
}

func TestMoveAndTickAdvancesPosition(t *testing.T) {
	tree := newTestTree()
	rules := demoland.NewRules()
	if err := rules.OnJoin(tree, "carol", "sess-1"); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}

	payload := statetree.Object(map[string]statetree.SnapshotValue{"dx": statetree.Int(1), "dy": statetree.Int(0)})
	if _, _, err := rules.HandleAction(tree, "carol", "client-1", "sess-1", "move", payload); err != nil {
		t.Fatalf("move action: %v", err)
	}
	if _, err := rules.Tick(tree, 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	v, err := tree.Get(ids.FieldPath{ids.NameSeg("players"), ids.KeySeg("carol")})
	if err != nil {
		t.Fatalf("Get player: %v", err)
	}
	if v.Object["x"].Int <= 0 {
		t.Fatalf("expected carol's x to advance after a rightward move + tick, got %d", v.Object["x"].Int)
	}
}

func TestFireInsertsProjectileAndHandlesUnknownAction(t *testing.T) {
	tree := newTestTree()
	rules := demoland.NewRules()
	if err := rules.OnJoin(tree, "dave", "sess-1"); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}

	if _, _, err := rules.HandleAction(tree, "dave", "client-1", "sess-1", "fire", statetree.Null()); err != nil {
		t.Fatalf("fire action: %v", err)
	}
	projectiles, err := tree.Get(ids.FieldPath{ids.NameSeg("projectiles")})
	if err != nil {
		t.Fatalf("Get projectiles: %v", err)
	}
	if len(projectiles.Array) != 1 {
		t.Fatalf("expected one projectile after firing, got %d", len(projectiles.Array))
	}
	if projectiles.Array[0].Object["owner"].Str != "dave" {
		t.Fatalf("expected owner dave, got %q", projectiles.Array[0].Object["owner"].Str)
	}

	if _, _, err := rules.HandleAction(tree, "dave", "client-1", "sess-1", "bogus", statetree.Null()); err == nil {
		t.Fatalf("expected an error for an unknown action type")
	}
}

func TestTickHitsTargetAndEmitsEvents(t *testing.T) {
	tree := newTestTree()
	rules := demoland.NewRules()
	if err := rules.OnJoin(tree, "shooter", "sess-1"); err != nil {
		t.Fatalf("OnJoin shooter: %v", err)
	}
	if err := rules.OnJoin(tree, "target", "sess-2"); err != nil {
		t.Fatalf("OnJoin target: %v", err)
	}

	// Place target directly in front of shooter (facing 0 degrees = +X) so
	// the very first tick's projectile motion lands inside its hit radius.
	targetPath := ids.FieldPath{ids.NameSeg("players"), ids.KeySeg("target")}
	if err := tree.SetLeaf(targetPath.Append(ids.NameSeg("x")), statetree.Int(1000)); err != nil {
		t.Fatalf("position target: %v", err)
	}

	if _, _, err := rules.HandleAction(tree, "shooter", "client-1", "sess-1", "fire", statetree.Null()); err != nil {
		t.Fatalf("fire: %v", err)
	}

	var events []string
	for i := 0; i < 10; i++ {
		evs, err := rules.Tick(tree, 1)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		for _, e := range evs {
			events = append(events, e.Type)
		}
	}

	found := false
	for _, e := range events {
		if e == "hit" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a hit event within 10 ticks, got events %v", events)
	}

	v, err := tree.Get(targetPath)
	if err != nil {
		t.Fatalf("Get target: %v", err)
	}
	if v.Object["hp"].Int >= 100 {
		t.Fatalf("expected target's hp reduced after being hit, got %d", v.Object["hp"].Int)
	}
}

func TestNextProjectileIDIsServerOnlyButHashed(t *testing.T) {
	tree := newTestTree()
	rules := demoland.NewRules()
	if err := rules.OnJoin(tree, "erin", "sess-1"); err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if _, _, err := rules.HandleAction(tree, "erin", "client-1", "sess-1", "fire", statetree.Null()); err != nil {
		t.Fatalf("fire: %v", err)
	}

	broadcast := tree.BroadcastProjection()
	if _, ok := broadcast.Object["next_projectile_id"]; ok {
		t.Fatalf("next_projectile_id must never appear in the broadcast projection")
	}
	hashed := tree.HashProjection()
	if _, ok := hashed.Object["next_projectile_id"]; !ok {
		t.Fatalf("next_projectile_id must still feed the reevaluation hash")
	}
}
