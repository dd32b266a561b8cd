package demoland

import (
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/fixedpoint"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/statetree"
)

var (
	playersPath     = ids.FieldPath{ids.NameSeg("players")}
	projectilesPath = ids.FieldPath{ids.NameSeg("projectiles")}
	elapsedPath     = ids.FieldPath{ids.NameSeg("elapsed_ticks")}
	nextProjIDPath  = ids.FieldPath{ids.NameSeg("next_projectile_id")}
)

func playerPath(player ids.PlayerID) ids.FieldPath {
	return playersPath.Append(ids.KeySeg(string(player)))
}

// Rules implements landkeeper.LandRules for one arena instance. It carries
// no state of its own beyond what the tree holds — a fresh Rules is
// constructed per instance by LandType.NewRules.
type Rules struct{}

func NewRules() landkeeper.LandRules { return Rules{} }

func freshPlayer() statetree.SnapshotValue {
	return statetree.Object(map[string]statetree.SnapshotValue{
		"x": statetree.Int(0), "y": statetree.Int(0),
		"vx": statetree.Int(0), "vy": statetree.Int(0),
		"facing_deg": statetree.Int(0),
		"hp":         statetree.Int(maxHP),
		"score":      statetree.Int(0),
	})
}

func (Rules) OnJoin(tree *statetree.Tree, player ids.PlayerID, _ ids.SessionID) error {
	if _, err := tree.Get(playerPath(player)); err == nil {
		return errs.New(errs.AlreadyJoined, "player already in arena")
	}
	return tree.SetMapEntry(playersPath, string(player), freshPlayer())
}

func (Rules) OnLeave(tree *statetree.Tree, player ids.PlayerID, _ ids.SessionID) error {
	if _, err := tree.Get(playerPath(player)); err != nil {
		return nil
	}
	return tree.DeleteMapEntry(playersPath, string(player))
}

func (r Rules) HandleAction(tree *statetree.Tree, player ids.PlayerID, _ ids.ClientID, _ ids.SessionID, actionType string, payload statetree.SnapshotValue) (statetree.SnapshotValue, []landkeeper.ServerEvent, error) {
	if _, err := tree.Get(playerPath(player)); err != nil {
		return statetree.SnapshotValue{}, nil, errs.New(errs.InvalidAction, "player has not joined the arena")
	}

	switch actionType {
	case "rotate":
		return statetree.Null(), nil, r.rotate(tree, player, payload)
	case "move":
		return statetree.Null(), nil, r.move(tree, player, payload)
	case "fire":
		return r.fire(tree, player)
	case "respawn":
		return statetree.Null(), nil, tree.SetMapEntry(playersPath, string(player), freshPlayer())
	}
	return statetree.SnapshotValue{}, nil, errs.New(errs.InvalidAction, "unknown action type "+actionType)
}

func (Rules) rotate(tree *statetree.Tree, player ids.PlayerID, payload statetree.SnapshotValue) error {
	deg, ok := payload.Object["facing_deg"]
	if !ok {
		return errs.New(errs.InvalidAction, "rotate requires facing_deg")
	}
	return tree.SetLeaf(playerPath(player).Append(ids.NameSeg("facing_deg")), statetree.Int(deg.Int))
}

func (Rules) move(tree *statetree.Tree, player ids.PlayerID, payload statetree.SnapshotValue) error {
	dx, ok1 := payload.Object["dx"]
	dy, ok2 := payload.Object["dy"]
	if !ok1 || !ok2 {
		return errs.New(errs.InvalidAction, "move requires dx and dy")
	}
	base := playerPath(player)
	if err := tree.SetLeaf(base.Append(ids.NameSeg("vx")), statetree.Int(clampDir(dx.Int)*moveSpeedPerTick)); err != nil {
		return err
	}
	return tree.SetLeaf(base.Append(ids.NameSeg("vy")), statetree.Int(clampDir(dy.Int)*moveSpeedPerTick))
}

// clampDir reduces an arbitrary move input to the {-1, 0, 1} direction the
// demo arena supports; a client sending a raw pixel delta doesn't get a
// speed boost out of it.
func clampDir(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (Rules) fire(tree *statetree.Tree, player ids.PlayerID) (statetree.SnapshotValue, []landkeeper.ServerEvent, error) {
	base := playerPath(player)
	x, err := tree.Get(base.Append(ids.NameSeg("x")))
	if err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	y, err := tree.Get(base.Append(ids.NameSeg("y")))
	if err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	facing, err := tree.Get(base.Append(ids.NameSeg("facing_deg")))
	if err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	idVal, err := tree.Get(nextProjIDPath)
	if err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	if err := tree.SetLeaf(nextProjIDPath, statetree.Int(idVal.Int+1)); err != nil {
		return statetree.SnapshotValue{}, nil, err
	}

	sin, cos := fixedpoint.SinCosDegrees(facing.Int)
	vx := (cos * int64(projectileSpeed)) / fixedpoint.S
	vy := (sin * int64(projectileSpeed)) / fixedpoint.S

	proj := statetree.Object(map[string]statetree.SnapshotValue{
		"x":     statetree.Int(x.Int),
		"y":     statetree.Int(y.Int),
		"vx":    statetree.Int(vx),
		"vy":    statetree.Int(vy),
		"owner": statetree.Str(string(player)),
		"ttl":   statetree.Int(projectileTTLTicks),
	})
	length, err := arrayLen(tree, projectilesPath)
	if err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	if err := tree.InsertArrayElement(projectilesPath, length, proj); err != nil {
		return statetree.SnapshotValue{}, nil, err
	}
	return statetree.Int(idVal.Int), nil, nil
}

func arrayLen(tree *statetree.Tree, path ids.FieldPath) (int, error) {
	v, err := tree.Get(path)
	if err != nil {
		return 0, err
	}
	return len(v.Array), nil
}

func (Rules) Tick(tree *statetree.Tree, deltaTicks int64) ([]landkeeper.ServerEvent, error) {
	var events []landkeeper.ServerEvent

	players, err := tree.Get(playersPath)
	if err != nil {
		return nil, err
	}
	projectiles, err := tree.Get(projectilesPath)
	if err != nil {
		return nil, err
	}

	var toRemove []int
	for i, proj := range projectiles.Array {
		p := proj.Object
		base := projectilesPath.Append(ids.IndexSeg(i))

		newX := p["x"].Int + p["vx"].Int*deltaTicks
		newY := p["y"].Int + p["vy"].Int*deltaTicks
		newTTL := p["ttl"].Int - deltaTicks

		hit := false
		if newTTL > 0 && withinWorld(newX, newY) {
			hit = applyProjectileHit(tree, p["owner"].Str, newX, newY, players, &events)
		} else {
			hit = true // expired or out of bounds: same removal path
		}

		if hit || newTTL <= 0 {
			toRemove = append(toRemove, i)
			continue
		}
		if err := tree.SetLeaf(base.Append(ids.NameSeg("x")), statetree.Int(newX)); err != nil {
			return events, err
		}
		if err := tree.SetLeaf(base.Append(ids.NameSeg("y")), statetree.Int(newY)); err != nil {
			return events, err
		}
		if err := tree.SetLeaf(base.Append(ids.NameSeg("ttl")), statetree.Int(newTTL)); err != nil {
			return events, err
		}
	}

	for i := len(toRemove) - 1; i >= 0; i-- {
		if err := tree.DeleteArrayElement(projectilesPath, toRemove[i]); err != nil {
			return events, err
		}
	}

	for key, pv := range players.Object {
		base := playerPath(ids.PlayerID(key))
		newX := pv.Object["x"].Int + pv.Object["vx"].Int*deltaTicks
		newY := pv.Object["y"].Int + pv.Object["vy"].Int*deltaTicks
		newX, newY = clampWorld(newX), clampWorld(newY)
		if err := tree.SetLeaf(base.Append(ids.NameSeg("x")), statetree.Int(newX)); err != nil {
			return events, err
		}
		if err := tree.SetLeaf(base.Append(ids.NameSeg("y")), statetree.Int(newY)); err != nil {
			return events, err
		}
	}

	elapsed, err := tree.Get(elapsedPath)
	if err != nil {
		return events, err
	}
	if err := tree.SetLeaf(elapsedPath, statetree.Int(elapsed.Int+deltaTicks)); err != nil {
		return events, err
	}
	return events, nil
}

// applyProjectileHit checks one projectile's new position against every
// player but its owner, applies damage and a respawn on the first player it
// touches, and reports whether the projectile should be removed.
func applyProjectileHit(tree *statetree.Tree, owner string, x, y int64, players statetree.SnapshotValue, events *[]landkeeper.ServerEvent) bool {
	projCircle := fixedpoint.NewICircle(fixedpoint.NewIVec2(int32(x), int32(y)), projectileRadius)

	for key, pv := range players.Object {
		if key == owner {
			continue
		}
		px, py := pv.Object["x"].Int, pv.Object["y"].Int
		playerCircle := fixedpoint.NewICircle(fixedpoint.NewIVec2(int32(px), int32(py)), playerRadius)
		if !projCircle.IntersectsCircle(playerCircle) {
			continue
		}

		base := playerPath(ids.PlayerID(key))
		newHP := pv.Object["hp"].Int - hitDamage
		*events = append(*events, landkeeper.ServerEvent{
			Type: "hit",
			Payload: statetree.Object(map[string]statetree.SnapshotValue{
				"player": statetree.Str(key),
				"by":     statetree.Str(owner),
				"damage": statetree.Int(hitDamage),
			}),
		})

		if newHP <= 0 {
			_ = tree.SetMapEntry(playersPath, key, freshPlayer())
			*events = append(*events, landkeeper.ServerEvent{
				Type:    "down",
				Payload: statetree.Object(map[string]statetree.SnapshotValue{"player": statetree.Str(key), "by": statetree.Str(owner)}),
			})
			if ownerVal, err := tree.Get(playerPath(ids.PlayerID(owner))); err == nil {
				_ = tree.SetLeaf(playerPath(ids.PlayerID(owner)).Append(ids.NameSeg("score")), statetree.Int(ownerVal.Object["score"].Int+1))
			}
		} else {
			_ = tree.SetLeaf(base.Append(ids.NameSeg("hp")), statetree.Int(newHP))
		}
		return true
	}
	return false
}

func withinWorld(x, y int64) bool {
	return x >= -worldHalfExtent && x <= worldHalfExtent && y >= -worldHalfExtent && y <= worldHalfExtent
}

func clampWorld(v int64) int64 {
	if v < -worldHalfExtent {
		return -worldHalfExtent
	}
	if v > worldHalfExtent {
		return worldHalfExtent
	}
	return v
}
