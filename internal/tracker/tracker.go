package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tessellate-cad/topotrack/internal/graph"
	"github.com/tessellate-cad/topotrack/internal/topo"
)

// ErrIndexCollision means one reconciliation pass tried to bind the
// same display index (or uuid) twice within a feature and type. The
// algorithm cannot produce this on its own; it signals a kernel
// adapter bug and must be treated as fatal by the caller.
var ErrIndexCollision = errors.New("display index collision")

// ChangeListener observes topology changes. It receives the affected
// feature id once per successful reconciliation or feature removal.
type ChangeListener func(featureID string)

// Option configures a Tracker.
type Option func(*Tracker)

// WithScorer sets the signature similarity strategy.
func WithScorer(s topo.Scorer) Option {
	return func(t *Tracker) { t.scorer = s }
}

// WithThreshold sets the matching confidence threshold.
func WithThreshold(threshold float64) Option {
	return func(t *Tracker) { t.threshold = threshold }
}

// WithIDGenerator sets the uuid generator. Tests install a
// deterministic generator; production uses UUIDv7.
func WithIDGenerator(g topo.IDGenerator) Option {
	return func(t *Tracker) { t.idGen = g }
}

// WithTracer sets an OpenTelemetry tracer for reconciliation spans.
// The default is a noop tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Tracker) {
		if tracer != nil {
			t.tracer = tracer
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// Tracker is the stable topology tracking service for one open
// document. Construct one per document and pass it by reference to
// collaborators; there is no process-wide instance.
type Tracker struct {
	mu sync.Mutex

	graph     *graph.Graph
	scorer    topo.Scorer
	threshold float64
	idGen     topo.IDGenerator
	tracer    trace.Tracer
	log       *slog.Logger

	mappings map[string]*featureMapping
	pending  map[string]*regenSnapshot

	listeners    map[int]ChangeListener
	nextListener int

	// opCounter generates unique operation ids; it is serialized with
	// the document so restored trackers never reuse an id.
	opCounter int64
	currentOp *opContext
}

// opContext is an in-flight (operationId, operationName) pair, valid
// between BeginOperation and EndOperation.
type opContext struct {
	id   string
	name string
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		idGen:     topo.UUIDv7Generator{},
		threshold: topo.DefaultConfidenceThreshold,
		tracer:    noop.NewTracerProvider().Tracer("topotrack"),
		log:       slog.Default(),
		mappings:  make(map[string]*featureMapping),
		pending:   make(map[string]*regenSnapshot),
		listeners: make(map[int]ChangeListener),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.scorer == nil {
		t.scorer = topo.NewStockScorer()
	}
	t.graph = graph.New(t.scorer)
	return t
}

// BeginOperation opens a provenance scope and returns its operation
// id. Every registration issued before the matching EndOperation is
// stamped with this context. Opening a new scope while one is in
// flight replaces it; the replaced scope is still logged.
func (t *Tracker) BeginOperation(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentOp != nil {
		t.log.Warn("operation context replaced while open",
			"replaced_id", t.currentOp.id,
			"replaced_name", t.currentOp.name,
		)
		t.graph.RecordOperation(t.currentOp.id, t.currentOp.name)
	}

	t.opCounter++
	op := &opContext{
		id:   fmt.Sprintf("op-%d", t.opCounter),
		name: topo.NormalizeKey(name),
	}
	t.currentOp = op

	t.log.Debug("operation started", "operation_id", op.id, "name", op.name)
	return op.id
}

// EndOperation closes the current provenance scope and appends it to
// the graph's operation log. Calling it with no open scope is a no-op.
func (t *Tracker) EndOperation() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentOp == nil {
		t.log.Warn("EndOperation called with no open operation")
		return
	}
	t.graph.RecordOperation(t.currentOp.id, t.currentOp.name)
	t.log.Debug("operation ended", "operation_id", t.currentOp.id)
	t.currentOp = nil
}

// currentOpLocked returns the in-flight operation context, or the
// sentinel unknown context. Callers must hold t.mu.
func (t *Tracker) currentOpLocked() (id, name string) {
	if t.currentOp == nil {
		return topo.UnknownOperationID, ""
	}
	return t.currentOp.id, t.currentOp.name
}

// RegisterFace mints a stable id for a genuinely new face.
// Used for initial builds and for entities the reconciliation
// algorithm decides are new; matched entities keep their ids.
func (t *Tracker) RegisterFace(featureID string, index int, links []topo.GeneratorLink, sig *topo.Signature, label string) (topo.StableID, error) {
	return t.register(featureID, topo.EntityFace, index, links, sig, label)
}

// RegisterEdge mints a stable id for a genuinely new edge.
func (t *Tracker) RegisterEdge(featureID string, index int, links []topo.GeneratorLink, sig *topo.Signature, label string) (topo.StableID, error) {
	return t.register(featureID, topo.EntityEdge, index, links, sig, label)
}

// RegisterVertex mints a stable id for a genuinely new vertex.
func (t *Tracker) RegisterVertex(featureID string, index int, links []topo.GeneratorLink, sig *topo.Signature, label string) (topo.StableID, error) {
	return t.register(featureID, topo.EntityVertex, index, links, sig, label)
}

func (t *Tracker) register(featureID string, typ topo.EntityType, index int, links []topo.GeneratorLink, sig *topo.Signature, label string) (topo.StableID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, err := t.registerLocked(featureID, typ, index, links, sig, label)
	if err != nil {
		return topo.StableID{}, err
	}

	// Bind into the feature's index map. Outside a reconciliation pass
	// a collision means the caller registered two entities at one index.
	fm := t.mappingLocked(topo.NormalizeKey(featureID))
	if err := fm.byType(typ).set(index, id.UUID); err != nil {
		return topo.StableID{}, err
	}
	return id, nil
}

// registerLocked mints an id and inserts the graph node without
// touching the feature mapping. The reconciliation pass uses it
// directly because it rebuilds mappings wholesale afterwards.
// Callers must hold t.mu.
func (t *Tracker) registerLocked(featureID string, typ topo.EntityType, index int, links []topo.GeneratorLink, sig *topo.Signature, label string) (topo.StableID, error) {
	opID, opName := t.currentOpLocked()
	id, err := topo.NewStableID(t.idGen.Generate(), typ, featureID, opID, opName, links, sig, label)
	if err != nil {
		return topo.StableID{}, fmt.Errorf("mint %s for feature %s: %w", typ, featureID, err)
	}
	if err := t.graph.AddNode(id, index); err != nil {
		return topo.StableID{}, err
	}
	return id, nil
}

// mappingLocked returns the feature's mapping, creating it on first
// use. Callers must hold t.mu and pass a normalized feature id.
func (t *Tracker) mappingLocked(featureID string) *featureMapping {
	fm, ok := t.mappings[featureID]
	if !ok {
		fm = newFeatureMapping(featureID)
		t.mappings[featureID] = fm
	}
	return fm
}

// StableIDForIndex resolves a (feature, type, index) triple to its
// stable id. Returns false for stale or unknown keys; dropping a stale
// selection is the caller's policy, not the tracker's.
func (t *Tracker) StableIDForIndex(featureID string, typ topo.EntityType, index int) (topo.StableID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fm, ok := t.mappings[topo.NormalizeKey(featureID)]
	if !ok || !typ.Valid() {
		return topo.StableID{}, false
	}
	uuid, ok := fm.byType(typ).uuidAt(index)
	if !ok {
		return topo.StableID{}, false
	}
	return t.graph.StableID(uuid)
}

// IndexForStableID resolves a uuid to its current display index within
// a feature and type. Returns false for stale or unknown keys.
func (t *Tracker) IndexForStableID(featureID string, typ topo.EntityType, uuid string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fm, ok := t.mappings[topo.NormalizeKey(featureID)]
	if !ok || !typ.Valid() {
		return 0, false
	}
	return fm.byType(typ).indexOf(uuid)
}

// StableID returns the identity record for a uuid, dead or alive.
func (t *Tracker) StableID(uuid string) (topo.StableID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.StableID(uuid)
}

// NodesForFeature returns all graph nodes for a feature, dead included.
func (t *Tracker) NodesForFeature(featureID string) []graph.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.NodesForFeature(topo.NormalizeKey(featureID))
}

// AliveNodesForFeature returns only the alive nodes for a feature.
func (t *Tracker) AliveNodesForFeature(featureID string) []graph.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.AliveNodesForFeature(topo.NormalizeKey(featureID))
}

// FeatureMapping returns a read-only summary of a feature's mapping.
func (t *Tracker) FeatureMapping(featureID string) (MappingInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fm, ok := t.mappings[topo.NormalizeKey(featureID)]
	if !ok {
		return MappingInfo{}, false
	}
	return fm.info(), true
}

// Features returns the ids of all tracked features, sorted.
func (t *Tracker) Features() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.mappings))
	for id := range t.mappings {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stats returns the graph's liveness and operation-log counts.
func (t *Tracker) Stats() graph.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.Stats()
}

// OperationLog returns a copy of the provenance log.
func (t *Tracker) OperationLog() []graph.OperationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.OperationLog()
}

// RemoveFeature deletes all of a feature's nodes from the graph and
// drops its mapping. This is the only path that physically removes
// nodes. Fires one notification.
func (t *Tracker) RemoveFeature(featureID string) {
	featureID = topo.NormalizeKey(featureID)

	t.mu.Lock()
	nodes := t.graph.NodesForFeature(featureID)
	for _, n := range nodes {
		// RemoveNode only fails for unknown uuids, which cannot happen
		// while holding the mutex.
		if err := t.graph.RemoveNode(n.ID.UUID); err != nil {
			t.log.Error("remove node failed", "uuid", n.ID.UUID, "error", err)
		}
	}
	delete(t.mappings, featureID)
	delete(t.pending, featureID)
	removed := len(nodes)
	t.mu.Unlock()

	t.log.Info("feature removed", "feature_id", featureID, "nodes", removed)
	t.notify(featureID)
}

// Clear resets the tracker to empty, as for a new document.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.graph = graph.New(t.scorer)
	t.mappings = make(map[string]*featureMapping)
	t.pending = make(map[string]*regenSnapshot)
	t.opCounter = 0
	t.currentOp = nil
	t.log.Info("tracker cleared")
}

// AddChangeListener registers a synchronous observer and returns a
// handle for removal.
func (t *Tracker) AddChangeListener(fn ChangeListener) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextListener++
	t.listeners[t.nextListener] = fn
	return t.nextListener
}

// RemoveChangeListener unregisters the listener for handle.
// Unknown handles are ignored.
func (t *Tracker) RemoveChangeListener(handle int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, handle)
}

// notify invokes all listeners with the affected feature id.
//
// Called without the mutex held so listeners can query the tracker for
// other features. Each listener runs under its own recover: a panic is
// logged and the remaining listeners still fire.
func (t *Tracker) notify(featureID string) {
	t.mu.Lock()
	handles := make([]int, 0, len(t.listeners))
	for h := range t.listeners {
		handles = append(handles, h)
	}
	sort.Ints(handles)
	fns := make([]ChangeListener, len(handles))
	for i, h := range handles {
		fns[i] = t.listeners[h]
	}
	t.mu.Unlock()

	for i, fn := range fns {
		t.safeNotify(handles[i], fn, featureID)
	}
}

func (t *Tracker) safeNotify(handle int, fn ChangeListener, featureID string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("change listener panicked",
				"listener", handle,
				"feature_id", featureID,
				"panic", r,
			)
		}
	}()
	fn(featureID)
}

// now is swappable for deterministic serialization tests.
var now = func() time.Time { return time.Now().UTC() }
