// Package memory provides the in-memory implementation of the entity store.
// It is the canonical store: the sqlite and postgres backends wrap it and
// snapshot its state after every committed transaction.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"medconnect/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.Transaction     = (*transaction)(nil)
	_ domain.TransactionView = view{}
)

// Store holds every entity collection in process memory. Writers are
// serialized by a single lock and operate on a cloned state that replaces the
// committed state only when the transaction function and rules succeed.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
	idFn   func() string
	commit []CommitHook
}

// CommitHook receives the candidate state of a transaction that passed the
// rules engine. A non-nil error aborts the commit and leaves state unchanged.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp records.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// WithIDGenerator overrides identity generation for records created without an ID.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// WithCommitHook registers fn to run under the writer lock before a
// transaction's state replaces the committed state.
func WithCommitHook(fn CommitHook) Option {
	return func(s *Store) {
		if fn != nil {
			s.commit = append(s.commit, fn)
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(s.commit) > 0 {
		snapshot := snapshotFromMemoryState(tx.state)
		for _, hook := range s.commit {
			if err := hook(ctx, snapshot); err != nil {
				return result, err
			}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

// ExportState returns a deep copy of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the committed state with the snapshot contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) assignID(id string) string {
	if id == "" {
		return tx.store.idFn()
	}
	return id
}

// Snapshot returns a read-only view over the in-flight transaction state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

func (tx *transaction) CreateTrial(t domain.Trial) (domain.Trial, error) {
	t.ID = tx.assignID(t.ID)
	if tx.state.trials.has(t.ID) {
		return domain.Trial{}, fmt.Errorf("trial %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.trials.put(t.ID, cloneTrial(t))
	tx.recordChange(domain.Change{Entity: domain.EntityTrial, Action: domain.ActionCreate, After: cloneTrial(t)})
	return cloneTrial(t), nil
}

func (tx *transaction) UpdateTrial(id string, mutator func(*domain.Trial) error) (domain.Trial, error) {
	current, ok := tx.state.trials.get(id)
	if !ok {
		return domain.Trial{}, domain.NotFoundError{Entity: domain.EntityTrial, ID: id}
	}
	before := cloneTrial(current)
	current = cloneTrial(current)
	if err := mutator(&current); err != nil {
		return domain.Trial{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.trials.put(id, cloneTrial(current))
	tx.recordChange(domain.Change{Entity: domain.EntityTrial, Action: domain.ActionUpdate, Before: before, After: cloneTrial(current)})
	return cloneTrial(current), nil
}

func (tx *transaction) CreateCommunity(c domain.Community) (domain.Community, error) {
	c.ID = tx.assignID(c.ID)
	if tx.state.communities.has(c.ID) {
		return domain.Community{}, fmt.Errorf("community %q already exists", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = tx.now
	}
	if c.LastActivity.IsZero() {
		c.LastActivity = c.CreatedAt
	}
	c.UpdatedAt = tx.now
	tx.state.communities.put(c.ID, cloneCommunity(c))
	tx.recordChange(domain.Change{Entity: domain.EntityCommunity, Action: domain.ActionCreate, After: cloneCommunity(c)})
	return cloneCommunity(c), nil
}

func (tx *transaction) UpdateCommunity(id string, mutator func(*domain.Community) error) (domain.Community, error) {
	current, ok := tx.state.communities.get(id)
	if !ok {
		return domain.Community{}, domain.NotFoundError{Entity: domain.EntityCommunity, ID: id}
	}
	before := cloneCommunity(current)
	current = cloneCommunity(current)
	if err := mutator(&current); err != nil {
		return domain.Community{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.communities.put(id, cloneCommunity(current))
	tx.recordChange(domain.Change{Entity: domain.EntityCommunity, Action: domain.ActionUpdate, Before: before, After: cloneCommunity(current)})
	return cloneCommunity(current), nil
}

func (tx *transaction) CreatePatient(p domain.PatientProfile) (domain.PatientProfile, error) {
	p.ID = tx.assignID(p.ID)
	if tx.state.patients.has(p.ID) {
		return domain.PatientProfile{}, fmt.Errorf("patient %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	if p.LastActive.IsZero() {
		p.LastActive = tx.now
	}
	tx.state.patients.put(p.ID, p)
	tx.recordChange(domain.Change{Entity: domain.EntityPatient, Action: domain.ActionCreate, After: p})
	return p, nil
}

func (tx *transaction) UpdatePatient(id string, mutator func(*domain.PatientProfile) error) (domain.PatientProfile, error) {
	current, ok := tx.state.patients.get(id)
	if !ok {
		return domain.PatientProfile{}, domain.NotFoundError{Entity: domain.EntityPatient, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.PatientProfile{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.patients.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityPatient, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) CreateResearcher(r domain.ResearcherProfile) (domain.ResearcherProfile, error) {
	r.ID = tx.assignID(r.ID)
	if tx.state.researchers.has(r.ID) {
		return domain.ResearcherProfile{}, fmt.Errorf("researcher %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.researchers.put(r.ID, r)
	tx.recordChange(domain.Change{Entity: domain.EntityResearcher, Action: domain.ActionCreate, After: r})
	return r, nil
}

func (tx *transaction) CreateDocument(d domain.Document) (domain.Document, error) {
	d.ID = tx.assignID(d.ID)
	if tx.state.documents.has(d.ID) {
		return domain.Document{}, fmt.Errorf("document %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	if d.UploadedAt.IsZero() {
		d.UploadedAt = tx.now
	}
	tx.state.documents.put(d.ID, d)
	tx.recordChange(domain.Change{Entity: domain.EntityDocument, Action: domain.ActionCreate, After: d})
	return d, nil
}

func (tx *transaction) DeleteDocument(id string) error {
	current, ok := tx.state.documents.get(id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
	}
	tx.state.documents.remove(id)
	tx.recordChange(domain.Change{Entity: domain.EntityDocument, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) CreateContactRequest(r domain.ContactRequest) (domain.ContactRequest, error) {
	r.ID = tx.assignID(r.ID)
	if tx.state.contacts.has(r.ID) {
		return domain.ContactRequest{}, fmt.Errorf("contact request %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.contacts.put(r.ID, cloneContactRequest(r))
	tx.recordChange(domain.Change{Entity: domain.EntityContactRequest, Action: domain.ActionCreate, After: cloneContactRequest(r)})
	return cloneContactRequest(r), nil
}

func (tx *transaction) UpdateContactRequest(id string, mutator func(*domain.ContactRequest) error) (domain.ContactRequest, error) {
	current, ok := tx.state.contacts.get(id)
	if !ok {
		return domain.ContactRequest{}, domain.NotFoundError{Entity: domain.EntityContactRequest, ID: id}
	}
	before := cloneContactRequest(current)
	current = cloneContactRequest(current)
	if err := mutator(&current); err != nil {
		return domain.ContactRequest{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.contacts.put(id, cloneContactRequest(current))
	tx.recordChange(domain.Change{Entity: domain.EntityContactRequest, Action: domain.ActionUpdate, Before: before, After: cloneContactRequest(current)})
	return cloneContactRequest(current), nil
}

func (tx *transaction) FindTrial(id string) (domain.Trial, bool) {
	return view{state: &tx.state}.FindTrial(id)
}

func (tx *transaction) FindCommunity(id string) (domain.Community, bool) {
	return view{state: &tx.state}.FindCommunity(id)
}

func (tx *transaction) FindDocument(id string) (domain.Document, bool) {
	return view{state: &tx.state}.FindDocument(id)
}

func (tx *transaction) FindContactRequest(id string) (domain.ContactRequest, bool) {
	return view{state: &tx.state}.FindContactRequest(id)
}

// view exposes a read-only snapshot of state to rules and readers.
type view struct {
	state *memoryState
}

func (v view) ListTrials() []domain.Trial { return v.state.trials.list(cloneTrial) }
func (v view) ListCommunities() []domain.Community {
	return v.state.communities.list(cloneCommunity)
}
func (v view) ListPatients() []domain.PatientProfile { return v.state.patients.list(clonePatient) }
func (v view) ListResearchers() []domain.ResearcherProfile {
	return v.state.researchers.list(cloneResearcher)
}
func (v view) ListDocuments() []domain.Document { return v.state.documents.list(cloneDocument) }
func (v view) ListContactRequests() []domain.ContactRequest {
	return v.state.contacts.list(cloneContactRequest)
}

func (v view) FindTrial(id string) (domain.Trial, bool) {
	t, ok := v.state.trials.get(id)
	if !ok {
		return domain.Trial{}, false
	}
	return cloneTrial(t), true
}

func (v view) FindCommunity(id string) (domain.Community, bool) {
	c, ok := v.state.communities.get(id)
	if !ok {
		return domain.Community{}, false
	}
	return cloneCommunity(c), true
}

func (v view) FindPatient(id string) (domain.PatientProfile, bool) {
	return v.state.patients.get(id)
}

func (v view) FindResearcher(id string) (domain.ResearcherProfile, bool) {
	return v.state.researchers.get(id)
}

func (v view) FindDocument(id string) (domain.Document, bool) {
	return v.state.documents.get(id)
}

func (v view) FindContactRequest(id string) (domain.ContactRequest, bool) {
	r, ok := v.state.contacts.get(id)
	if !ok {
		return domain.ContactRequest{}, false
	}
	return cloneContactRequest(r), true
}

// Read helpers ---------------------------------------------------------------

func (s *Store) read() view {
	return view{state: &s.state}
}

// GetTrial retrieves a trial by ID from committed state.
func (s *Store) GetTrial(id string) (domain.Trial, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindTrial(id)
}

// ListTrials returns all trials in insertion order.
func (s *Store) ListTrials() []domain.Trial {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListTrials()
}

// GetCommunity retrieves a community by ID.
func (s *Store) GetCommunity(id string) (domain.Community, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindCommunity(id)
}

// ListCommunities returns all communities in insertion order.
func (s *Store) ListCommunities() []domain.Community {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListCommunities()
}

// ListPatients returns all patient profiles.
func (s *Store) ListPatients() []domain.PatientProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPatients()
}

// ListResearchers returns all researcher profiles.
func (s *Store) ListResearchers() []domain.ResearcherProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListResearchers()
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(id string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindDocument(id)
}

// ListDocuments returns all documents in upload order.
func (s *Store) ListDocuments() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListDocuments()
}

// GetContactRequest retrieves a contact request by ID.
func (s *Store) GetContactRequest(id string) (domain.ContactRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindContactRequest(id)
}

// ListContactRequests returns all contact requests in creation order.
func (s *Store) ListContactRequests() []domain.ContactRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListContactRequests()
}
