// Package demoland is the reference land type: a small top-down arena where
// players move, rotate, and fire projectiles that travel deterministically
// and damage whoever they touch. It exists to give every wire path a
// concrete exerciser — joins, actions, ticks, array inserts (projectiles),
// map inserts (players), server events, and a server-only hashed field — and
// to be the thing cmd/landkeeper actually serves.
package demoland

import "github.com/rawblock/landkeeper/internal/statetree"

// Fixed-point world constants. Positions and velocities are stored already
// scaled by fixedpoint.S; 1000 fixed-point units is one world unit.
const (
	worldHalfExtent     int64 = 10_000
	playerRadius        int32 = 300
	projectileRadius    int32 = 120
	projectileSpeed     int32 = 1_400
	projectileTTLTicks  int64 = 45
	moveSpeedPerTick    int64 = 220
	maxHP               int64 = 100
	hitDamage           int64 = 25
)

func playerSchema() *statetree.FieldSchema {
	return statetree.Composite("player", statetree.Broadcast,
		statetree.Leaf("x", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("y", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("vx", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("vy", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("facing_deg", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("hp", statetree.Broadcast, statetree.Int(maxHP)),
		statetree.Leaf("score", statetree.Broadcast, statetree.Int(0)),
	)
}

func projectileSchema() *statetree.FieldSchema {
	return statetree.Composite("projectile", statetree.Broadcast,
		statetree.Leaf("x", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("y", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("vx", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("vy", statetree.Broadcast, statetree.Int(0)),
		statetree.Leaf("owner", statetree.Broadcast, statetree.Str("")),
		statetree.Leaf("ttl", statetree.Broadcast, statetree.Int(projectileTTLTicks)),
	)
}

// RootSchema builds a fresh root schema for one arena instance. Called once
// per instance by internal/landregistry; never shared across instances.
func RootSchema() *statetree.FieldSchema {
	return &statetree.FieldSchema{
		Kind: statetree.KindComposite,
		Fields: []*statetree.FieldSchema{
			statetree.Leaf("elapsed_ticks", statetree.Broadcast, statetree.Int(0)),
			statetree.MapOf("players", statetree.Broadcast, playerSchema()),
			statetree.ArrayOf("projectiles", statetree.Broadcast, projectileSchema()),
			// next_projectile_id never leaves the server, but still feeds
			// the reevaluation hash so a replay divergence in id
			// assignment (and thus in spawn order) still trips the hash
			// check even though no client ever sees the counter itself.
			&statetree.FieldSchema{
				Name:          "next_projectile_id",
				Kind:          statetree.KindLeafField,
				Policy:        statetree.ServerOnly,
				Default:       statetree.Int(0),
				IncludeInHash: true,
			},
		},
	}
}
