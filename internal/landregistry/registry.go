// Package landregistry implements the dynamic dispatch registry keyed by
// land_type: since each Keeper is parametric over one concrete state
// schema, every land type coexists at runtime via a registry of
// type-erased factory handles rather than a generic Keeper[T]. Schema,
// rules, and encoding are all fixed per land_type at registration time —
// none of it is process-wide singleton state; a Registry instance owns all
// of it explicitly, per the "no process-wide singletons" design note.
package landregistry

import (
	"sync"

	"github.com/rawblock/landkeeper/internal/codec"
	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/statetree"
	"github.com/rawblock/landkeeper/internal/transport"
)

// LandType is the vtable-equivalent handle a concrete land implementation
// registers: everything the registry needs to spin up a new instance
// without knowing the concrete state shape or rule logic.
type LandType struct {
	// Schema builds a fresh root schema. Called once per instance, not
	// shared, since statetree.Tree mutates the nodes it's given.
	Schema func() *statetree.FieldSchema
	// NewRules builds a fresh LandRules for one instance.
	NewRules func() landkeeper.LandRules
	// Encoding selects which of the four wire codecs this land type uses.
	Encoding codec.Kind
	// SchemaVersion tags the path-hash table so clients can detect a stale
	// cached schema after a deploy changes field layout.
	SchemaVersion string
}

type instance struct {
	keeper  *landkeeper.Keeper
	adapter *transport.Adapter
}

// Registry holds every registered land_type and every live land instance
// created from one. It is the single place in a process that knows both
// "what land types exist" and "what instances are currently running".
type Registry struct {
	mu    sync.RWMutex
	types map[string]LandType

	instMu    sync.RWMutex
	instances map[ids.LandID]*instance

	recorder landkeeper.Recorder
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		types:     make(map[string]LandType),
		instances: make(map[ids.LandID]*instance),
	}
}

// SetRecorder wires a reevaluation recorder into every instance created
// afterward. WithRecorder isn't safe to call once a keeper is running, so
// this only takes effect for CreateInstance calls that happen after it —
// it does not retroactively attach to instances already live.
func (r *Registry) SetRecorder(rec landkeeper.Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// Register adds a land type's factory handle. Re-registering the same
// land_type replaces the handle for any instance created afterward; it
// does not affect instances already running under the old handle.
func (r *Registry) Register(landType string, lt LandType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[landType] = lt
}

// CreateInstance spins up a new Keeper+Adapter pair for land, using the
// registered LandType for land.LandType. Returns errs.SchemaMismatch if no
// such land_type was ever registered.
func (r *Registry) CreateInstance(land ids.LandID, cfg config.Land) (*landkeeper.Keeper, *transport.Adapter, error) {
	r.mu.RLock()
	lt, ok := r.types[land.LandType]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, errs.New(errs.SchemaMismatch, "unregistered land_type "+land.LandType)
	}

	keeper := landkeeper.New(land, lt.Schema(), lt.NewRules(), cfg)
	adapter, err := transport.NewAdapter(keeper, cfg, lt.Encoding, lt.SchemaVersion)
	if err != nil {
		return nil, nil, err
	}

	r.mu.RLock()
	rec := r.recorder
	r.mu.RUnlock()
	if rec != nil {
		keeper.WithRecorder(rec)
	}

	// SetTransport submits through the command queue, which only accepts
	// work once the keeper's processing goroutine is running.
	keeper.Start()
	if err := keeper.SetTransport(adapter); err != nil {
		return nil, nil, err
	}

	r.instMu.Lock()
	r.instances[land] = &instance{keeper: keeper, adapter: adapter}
	r.instMu.Unlock()

	return keeper, adapter, nil
}

// Lookup returns the running instance for land, if any.
func (r *Registry) Lookup(land ids.LandID) (*landkeeper.Keeper, *transport.Adapter, bool) {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	inst, ok := r.instances[land]
	if !ok {
		return nil, nil, false
	}
	return inst.keeper, inst.adapter, true
}

// GetOrCreate returns the running instance for land, creating one via the
// registered land_type if it doesn't exist yet.
func (r *Registry) GetOrCreate(land ids.LandID, cfg config.Land) (*landkeeper.Keeper, *transport.Adapter, error) {
	if keeper, adapter, ok := r.Lookup(land); ok {
		return keeper, adapter, nil
	}
	return r.CreateInstance(land, cfg)
}

// Remove shuts down and forgets an instance. Safe to call on an instance
// that's already draining itself via Keeper.Shutdown.
func (r *Registry) Remove(land ids.LandID) {
	r.instMu.Lock()
	inst, ok := r.instances[land]
	delete(r.instances, land)
	r.instMu.Unlock()
	if ok {
		_ = inst.keeper.Shutdown()
	}
}
