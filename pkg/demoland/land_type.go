package demoland

import (
	"github.com/rawblock/landkeeper/internal/codec"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/landregistry"
)

// LandTypeName is the land_type string a land ID must carry for
// internal/landregistry to dispatch to this package.
const LandTypeName = "arena"

// SchemaVersion tags the path-hash table built for this schema. Bump it any
// time RootSchema's field layout changes so stale client-cached tables are
// rejected instead of silently misaddressing fields.
const SchemaVersion = "arena-v1"

// Register adds the arena land type to reg, ready for
// landregistry.Registry.CreateInstance/GetOrCreate under LandTypeName.
func Register(reg *landregistry.Registry) {
	reg.Register(LandTypeName, landregistry.LandType{
		Schema:        RootSchema,
		NewRules:      func() landkeeper.LandRules { return NewRules() },
		Encoding:      codec.OpcodeMessagePack,
		SchemaVersion: SchemaVersion,
	})
}
