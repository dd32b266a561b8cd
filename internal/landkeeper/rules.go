package landkeeper

import (
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// ServerEvent is a fire-and-forget notification emitted by a rule body,
// delivered to transport after the originating command's reply but before
// any sync flush derived from it.
type ServerEvent struct {
	Type    string
	Payload statetree.SnapshotValue
}

// LandRules is the one land-type-specific extension point a keeper runs
// against. A concrete land type (pkg/demoland being the reference one)
// implements this over its own schema; the keeper itself never knows the
// concrete state shape, only that it's a *statetree.Tree.
//
// Every method here must run to completion without suspending on I/O. A
// rule that needs asynchronous data
// rejects with errs.NeedsAsync instead of blocking the keeper's single
// writer task.
type LandRules interface {
	// OnJoin runs when a player's session is accepted into the land. It may
	// mutate tree (e.g. add the player to a players map) and must return
	// errs.CapacityExceeded or errs.AlreadyJoined for rejection.
	OnJoin(tree *statetree.Tree, player ids.PlayerID, session ids.SessionID) error

	// OnLeave runs when a player's session is released. Idempotent: leaving
	// twice is not an error.
	OnLeave(tree *statetree.Tree, player ids.PlayerID, session ids.SessionID) error

	// HandleAction applies one client action. It returns the typed response
	// payload and any server events to broadcast/unicast.
	HandleAction(tree *statetree.Tree, player ids.PlayerID, client ids.ClientID, session ids.SessionID, actionType string, payload statetree.SnapshotValue) (statetree.SnapshotValue, []ServerEvent, error)

	// Tick advances simulation state by deltaTicks logical ticks (>1 when
	// the scheduler coalesced pending tick commands).
	Tick(tree *statetree.Tree, deltaTicks int64) ([]ServerEvent, error)
}
