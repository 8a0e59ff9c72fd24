package memory

import "medconnect/pkg/domain"

// collection keeps records keyed by ID while remembering insertion order,
// which listing and search results must preserve.
type collection[T any] struct {
	order []string
	items map[string]T
}

func newCollection[T any]() collection[T] {
	return collection[T]{items: make(map[string]T)}
}

func (c collection[T]) clone(cp func(T) T) collection[T] {
	out := collection[T]{
		order: append([]string(nil), c.order...),
		items: make(map[string]T, len(c.items)),
	}
	for k, v := range c.items {
		out.items[k] = cp(v)
	}
	return out
}

func (c collection[T]) get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

func (c collection[T]) has(id string) bool {
	_, ok := c.items[id]
	return ok
}

func (c *collection[T]) put(id string, v T) {
	if _, exists := c.items[id]; !exists {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *collection[T]) remove(id string) {
	if _, exists := c.items[id]; !exists {
		return
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c collection[T]) list(cp func(T) T) []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cp(c.items[id]))
	}
	return out
}

type memoryState struct {
	trials      collection[domain.Trial]
	communities collection[domain.Community]
	patients    collection[domain.PatientProfile]
	researchers collection[domain.ResearcherProfile]
	documents   collection[domain.Document]
	contacts    collection[domain.ContactRequest]
}

func newMemoryState() memoryState {
	return memoryState{
		trials:      newCollection[domain.Trial](),
		communities: newCollection[domain.Community](),
		patients:    newCollection[domain.PatientProfile](),
		researchers: newCollection[domain.ResearcherProfile](),
		documents:   newCollection[domain.Document](),
		contacts:    newCollection[domain.ContactRequest](),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		trials:      s.trials.clone(cloneTrial),
		communities: s.communities.clone(cloneCommunity),
		patients:    s.patients.clone(clonePatient),
		researchers: s.researchers.clone(cloneResearcher),
		documents:   s.documents.clone(cloneDocument),
		contacts:    s.contacts.clone(cloneContactRequest),
	}
}

// Snapshot captures a point-in-time, insertion-ordered copy of the store state.
type Snapshot struct {
	Trials          []domain.Trial             `json:"trials"`
	Communities     []domain.Community         `json:"communities"`
	Patients        []domain.PatientProfile    `json:"patients"`
	Researchers     []domain.ResearcherProfile `json:"researchers"`
	Documents       []domain.Document          `json:"documents"`
	ContactRequests []domain.ContactRequest    `json:"contact_requests"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Trials:          state.trials.list(cloneTrial),
		Communities:     state.communities.list(cloneCommunity),
		Patients:        state.patients.list(clonePatient),
		Researchers:     state.researchers.list(cloneResearcher),
		Documents:       state.documents.list(cloneDocument),
		ContactRequests: state.contacts.list(cloneContactRequest),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, v := range s.Trials {
		state.trials.put(v.ID, cloneTrial(v))
	}
	for _, v := range s.Communities {
		state.communities.put(v.ID, cloneCommunity(v))
	}
	for _, v := range s.Patients {
		state.patients.put(v.ID, clonePatient(v))
	}
	for _, v := range s.Researchers {
		state.researchers.put(v.ID, cloneResearcher(v))
	}
	for _, v := range s.Documents {
		state.documents.put(v.ID, cloneDocument(v))
	}
	for _, v := range s.ContactRequests {
		state.contacts.put(v.ID, cloneContactRequest(v))
	}
	return state
}

func cloneTrial(t domain.Trial) domain.Trial {
	cp := t
	cp.EligibilityCriteria = append([]string(nil), t.EligibilityCriteria...)
	cp.Conditions = append([]string(nil), t.Conditions...)
	cp.Interventions = append([]string(nil), t.Interventions...)
	return cp
}

func cloneCommunity(c domain.Community) domain.Community {
	cp := c
	cp.Tags = append([]string(nil), c.Tags...)
	cp.Moderators = append([]string(nil), c.Moderators...)
	return cp
}

func clonePatient(p domain.PatientProfile) domain.PatientProfile          { return p }
func cloneResearcher(r domain.ResearcherProfile) domain.ResearcherProfile { return r }
func cloneDocument(d domain.Document) domain.Document                     { return d }

func cloneContactRequest(r domain.ContactRequest) domain.ContactRequest {
	cp := r
	if r.RespondedAt != nil {
		at := *r.RespondedAt
		cp.RespondedAt = &at
	}
	return cp
}

// SnapshotBuckets lists the persisted bucket names in a stable order.
var SnapshotBuckets = []string{
	"trials",
	"communities",
	"patients",
	"researchers",
	"documents",
	"contact_requests",
}

// Bucket returns a pointer to the snapshot slice backing the named bucket so
// snapshot-backed stores can encode and decode buckets uniformly.
func (s *Snapshot) Bucket(name string) (any, bool) {
	switch name {
	case "trials":
		return &s.Trials, true
	case "communities":
		return &s.Communities, true
	case "patients":
		return &s.Patients, true
	case "researchers":
		return &s.Researchers, true
	case "documents":
		return &s.Documents, true
	case "contact_requests":
		return &s.ContactRequests, true
	default:
		return nil, false
	}
}
