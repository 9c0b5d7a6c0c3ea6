package bridge

import "github.com/matthewbaird/pvbridge/internal/forms"

// State is the binding state of one native object.
type State int

const (
	// Absent: the native object has never been bound, or was unbound.
	Absent State = iota
	// Pending: a binding is in progress. Reaching a pending object again
	// means a reference cycle and must not recurse.
	Pending
	// Bound: the native object has a mirror proxy.
	Bound
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Bound:
		return "bound"
	default:
		return "unknown"
	}
}

type binding struct {
	state State
	id    forms.ID
}

// identityMap maps native global ids to mirror ids, and back.
type identityMap struct {
	byNative map[string]binding
	byMirror map[forms.ID]string
}

func newIdentityMap() *identityMap {
	return &identityMap{
		byNative: make(map[string]binding),
		byMirror: make(map[forms.ID]string),
	}
}

// lookup returns the state of nativeID and, when bound, its mirror id.
func (m *identityMap) lookup(nativeID string) (State, forms.ID) {
	b, ok := m.byNative[nativeID]
	if !ok {
		return Absent, forms.NoID
	}
	return b.state, b.id
}

// reserve marks nativeID pending. It reports false when nativeID is already
// pending or bound.
func (m *identityMap) reserve(nativeID string) bool {
	if _, ok := m.byNative[nativeID]; ok {
		return false
	}
	m.byNative[nativeID] = binding{state: Pending}
	return true
}

func (m *identityMap) bind(nativeID string, id forms.ID) {
	m.byNative[nativeID] = binding{state: Bound, id: id}
	m.byMirror[id] = nativeID
}

// forget drops nativeID whatever its state and returns the mirror id it was
// bound to.
func (m *identityMap) forget(nativeID string) forms.ID {
	b, ok := m.byNative[nativeID]
	if !ok {
		return forms.NoID
	}
	delete(m.byNative, nativeID)
	if b.state == Bound {
		delete(m.byMirror, b.id)
	}
	return b.id
}

func (m *identityMap) nativeOf(id forms.ID) (string, bool) {
	nid, ok := m.byMirror[id]
	return nid, ok
}

func (m *identityMap) len() int { return len(m.byMirror) }
