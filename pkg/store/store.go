// Package store provides in-memory storage for evaluations and batches.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lemonberrylabs/infixcalc/pkg/types"
)

var (
	// ErrNotFound is returned when a named resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a batch whose name is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// EvaluationState represents the outcome of an evaluation.
type EvaluationState string

const (
	EvaluationSucceeded EvaluationState = "SUCCEEDED"
	EvaluationFailed    EvaluationState = "FAILED"
)

// BatchState represents the state of a stored batch.
type BatchState string

const (
	BatchActive    BatchState = "ACTIVE"
	BatchSucceeded BatchState = "SUCCEEDED"
	BatchFailed    BatchState = "FAILED"
)

// Evaluation is a stored evaluation record.
type Evaluation struct {
	Name       string           `json:"name"`
	Expression string           `json:"expression"`
	State      EvaluationState  `json:"state"`
	Result     string           `json:"result,omitempty"`
	Error      *EvaluationError `json:"error,omitempty"`
	CreateTime time.Time        `json:"createTime"`
	// Batch is the owning batch name, empty for standalone evaluations.
	Batch   string `json:"batch,omitempty"`
	EntryID string `json:"entryId,omitempty"`
	Expect  string `json:"expect,omitempty"`
	Matched *bool  `json:"matched,omitempty"`

	seq int64
}

// EvaluationError is the failure recorded for a FAILED evaluation.
type EvaluationError struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
	Pos     int    `json:"pos"`
}

// Batch is a stored batch of evaluations.
type Batch struct {
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	SourceContents string     `json:"sourceContents"`
	State          BatchState `json:"state"`
	CreateTime     time.Time  `json:"createTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`

	seq int64
}

// BatchEntry carries the outcome of one batch entry to RecordBatchEntry.
type BatchEntry struct {
	ID         string
	Expression string
	Expect     string
	Result     string
	Err        error
	Matched    *bool
}

// Store is a thread-safe in-memory storage for evaluations and batches.
type Store struct {
	mu          sync.RWMutex
	evaluations map[string]*Evaluation
	batches     map[string]*Batch

	// Counters for generating unique IDs and creation order
	evalCounter int64
	seqCounter  int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		evaluations: make(map[string]*Evaluation),
		batches:     make(map[string]*Batch),
	}
}

// BatchName returns the resource name for a batch ID.
func BatchName(batchID string) string {
	return "batches/" + batchID
}

// RecordEvaluation stores the outcome of evaluating expression. parent is
// empty for standalone evaluations or a batch name. A nil err records a
// SUCCEEDED evaluation with result; otherwise the evaluation is FAILED.
func (s *Store) RecordEvaluation(parent, expression, result string, err error) (*Evaluation, error) {
	return s.record(parent, BatchEntry{Expression: expression, Result: result, Err: err})
}

// RecordBatchEntry stores the outcome of one batch entry under batchName.
func (s *Store) RecordBatchEntry(batchName string, e BatchEntry) (*Evaluation, error) {
	return s.record(batchName, e)
}

func (s *Store) record(parent string, e BatchEntry) (*Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parent != "" {
		if _, ok := s.batches[parent]; !ok {
			return nil, fmt.Errorf("batch '%s' %w", parent, ErrNotFound)
		}
	}

	s.evalCounter++
	s.seqCounter++
	name := fmt.Sprintf("evaluations/eval-%d", s.evalCounter)
	if parent != "" {
		name = parent + "/" + name
	}

	ev := &Evaluation{
		Name:       name,
		Expression: e.Expression,
		CreateTime: time.Now(),
		Batch:      parent,
		EntryID:    e.ID,
		Expect:     e.Expect,
		Matched:    e.Matched,
		seq:        s.seqCounter,
	}
	if e.Err != nil {
		ev.State = EvaluationFailed
		ev.Error = toEvaluationError(e.Err)
	} else {
		ev.State = EvaluationSucceeded
		ev.Result = e.Result
	}
	s.evaluations[name] = ev
	cp := *ev
	return &cp, nil
}

func toEvaluationError(err error) *EvaluationError {
	var ee *types.EvalError
	if errors.As(err, &ee) {
		return &EvaluationError{Tag: ee.Tag, Message: ee.Message, Pos: ee.Pos}
	}
	return &EvaluationError{Message: err.Error(), Pos: -1}
}

// GetEvaluation retrieves an evaluation by its full name.
func (s *Store) GetEvaluation(name string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.evaluations[name]
	if !ok {
		return nil, fmt.Errorf("evaluation '%s' %w", name, ErrNotFound)
	}
	cp := *ev
	return &cp, nil
}

// ListEvaluations returns copies of the evaluations directly under parent in
// creation order. An empty parent lists standalone evaluations.
func (s *Store) ListEvaluations(parent string) []*Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Evaluation
	for _, ev := range s.evaluations {
		if ev.Batch == parent {
			cp := *ev
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

// CreateBatch creates a new ACTIVE batch.
func (s *Store) CreateBatch(batchID, description, sourceContents string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := BatchName(batchID)
	if _, exists := s.batches[name]; exists {
		return nil, fmt.Errorf("batch '%s' %w", name, ErrAlreadyExists)
	}

	s.seqCounter++
	b := &Batch{
		Name:           name,
		Description:    description,
		SourceContents: sourceContents,
		State:          BatchActive,
		CreateTime:     time.Now(),
		seq:            s.seqCounter,
	}
	s.batches[name] = b
	cp := *b
	return &cp, nil
}

// CompleteBatch marks a batch SUCCEEDED, or FAILED when failed is set, and
// returns the completed batch.
func (s *Store) CompleteBatch(name string, failed bool) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[name]
	if !ok {
		return nil, fmt.Errorf("batch '%s' %w", name, ErrNotFound)
	}
	b.State = BatchSucceeded
	if failed {
		b.State = BatchFailed
	}
	now := time.Now()
	b.EndTime = &now
	cp := *b
	return &cp, nil
}

// GetBatch retrieves a batch by its full name.
func (s *Store) GetBatch(name string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[name]
	if !ok {
		return nil, fmt.Errorf("batch '%s' %w", name, ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// ListBatches returns copies of all batches in creation order.
func (s *Store) ListBatches() []*Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Batch, 0, len(s.batches))
	for _, b := range s.batches {
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

// DeleteBatch removes a batch and every evaluation recorded under it.
func (s *Store) DeleteBatch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[name]; !ok {
		return fmt.Errorf("batch '%s' %w", name, ErrNotFound)
	}
	delete(s.batches, name)

	prefix := name + "/evaluations/"
	for evName := range s.evaluations {
		if strings.HasPrefix(evName, prefix) {
			delete(s.evaluations, evName)
		}
	}
	return nil
}
