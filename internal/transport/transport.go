// Package transport implements the TransportAdapter that owns the session
// table, the player-to-session binding, per-player dirty views, and the
// parallel encoding controller. It never mutates land state itself; it
// only dispatches into a landkeeper.Keeper and publishes the diffs the
// keeper's mutations produce.
package transport

import (
	"github.com/rawblock/landkeeper/internal/ids"
)

// Transport is the message-oriented wire the adapter sends encoded frames
// over. One call to Send carries exactly one logical message; framing and
// message boundaries are the Transport implementation's responsibility
// (internal/wire's gorilla/websocket implementation sends one WriteMessage
// per Send call).
type Transport interface {
	Send(payload []byte) error
	Close() error
}

// AuthenticatedInfo is what an AuthInfoResolver returns for a successfully
// authenticated connection.
type AuthenticatedInfo struct {
	PlayerID ids.PlayerID
	Metadata map[string]string
}

// AuthInfoResolver is the authentication boundary the adapter consumes; it
// never parses tokens itself. A nil return with a nil error means
// "anonymous/unauthenticated but otherwise allowed to attempt join" — the
// concrete resolver decides whether that's acceptable for a given land
// type.
type AuthInfoResolver interface {
	Resolve(path, uri string) (*AuthenticatedInfo, error)
}
