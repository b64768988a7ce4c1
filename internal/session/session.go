// Package session keeps the desk's cases, transcription history and
// working buffer, persisted to a localstore.Store after every change.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/snarg/case-register/internal/localstore"
)

// Storage keys.
const (
	KeyHistory = "transcriptionHistory"
	KeyCases   = "caseSessions"
	KeyActive  = "activeCaseId"
)

// Separator is inserted between accepted transcriptions.
const Separator = "\n\n"

var (
	ErrNotFound   = errors.New("case not found")
	ErrEmptyTitle = errors.New("case title cannot be empty")
	ErrEmptyText  = errors.New("transcription text is empty")
)

// Segment is one accepted transcription within a case.
type Segment struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Case groups the transcriptions of one matter.
type Case struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	Transcript  string    `json:"transcript"`
	Segments    []Segment `json:"segments"`
}

func (c Case) clone() Case {
	c.Segments = append(make([]Segment, 0, len(c.Segments)), c.Segments...)
	return c
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is safe for concurrent use.
type Store struct {
	kv  localstore.Store
	now func() time.Time

	mu      sync.Mutex
	cases   []Case
	active  string
	history []string
	buffer  string
}

// Open restores state from kv. An active id that no longer matches a case
// is dropped. The working buffer starts as the active case's transcript.
func Open(kv localstore.Store, opts ...Option) (*Store, error) {
	s := &Store{kv: kv, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	if _, err := localstore.GetJSON(kv, KeyCases, &s.cases); err != nil {
		return nil, err
	}
	if _, err := localstore.GetJSON(kv, KeyHistory, &s.history); err != nil {
		return nil, err
	}
	if _, err := localstore.GetJSON(kv, KeyActive, &s.active); err != nil {
		return nil, err
	}
	if i := s.indexOf(s.active); i >= 0 {
		s.buffer = s.cases[i].Transcript
	} else {
		s.active = ""
	}
	return s, nil
}

// CreateCase adds an empty case, makes it active and clears the buffer.
func (s *Store) CreateCase() (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := Case{
		ID:          "case-" + uuid.NewString(),
		Title:       "Case " + now.Format("Jan 2, 2006"),
		CreatedAt:   now,
		LastUpdated: now,
		Segments:    []Segment{},
	}
	next := s.snapshot()
	next.cases = append(next.cases, c)
	next.active = c.ID
	if err := s.commit(next, ""); err != nil {
		return Case{}, err
	}
	return c.clone(), nil
}

// LoadCase makes id active and restores its transcript into the buffer.
func (s *Store) LoadCase(id string) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Case{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := s.snapshot()
	next.active = id
	if err := s.commit(next, next.cases[i].Transcript); err != nil {
		return Case{}, err
	}
	return s.cases[i].clone(), nil
}

// RenameCase sets a case's title.
func (s *Store) RenameCase(id, title string) (Case, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Case{}, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Case{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := s.snapshot()
	next.cases[i].Title = title
	next.cases[i].LastUpdated = s.now()
	if err := s.commit(next, s.buffer); err != nil {
		return Case{}, err
	}
	return s.cases[i].clone(), nil
}

// AppendTranscript records an accepted transcription: it extends the
// buffer and the history, and when a case is active, that case's
// transcript and segments. It returns the updated active case, if any.
// Nothing changes when the write fails.
func (s *Store) AppendTranscript(text string) (*Case, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	next := s.snapshot()
	next.history = append(next.history, text)

	i := s.indexOf(s.active)
	if i >= 0 {
		c := &next.cases[i]
		c.Transcript = join(c.Transcript, text)
		c.Segments = append(c.Segments, Segment{Text: text, Timestamp: now})
		c.LastUpdated = now
	}
	if err := s.commit(next, join(s.buffer, text)); err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, nil
	}
	cp := s.cases[i].clone()
	return &cp, nil
}

// SetBuffer replaces the working buffer (operator edits). Persisted case
// transcripts are not touched.
func (s *Store) SetBuffer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = text
}

// ClearBuffer empties the working buffer.
func (s *Store) ClearBuffer() { s.SetBuffer("") }

// Buffer returns the working buffer.
func (s *Store) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Cases returns all cases in creation order.
func (s *Store) Cases() []Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Case, len(s.cases))
	for i, c := range s.cases {
		out[i] = c.clone()
	}
	return out
}

// Active returns the active case.
func (s *Store) Active() (Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.active); i >= 0 {
		return s.cases[i].clone(), true
	}
	return Case{}, false
}

// History returns every accepted transcription, oldest first.
func (s *Store) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.cases {
		if s.cases[i].ID == id {
			return i
		}
	}
	return -1
}

// state is the persisted part of a Store.
type state struct {
	cases   []Case
	active  string
	history []string
}

// snapshot deep-copies the persisted state. Caller holds s.mu.
func (s *Store) snapshot() state {
	cases := make([]Case, len(s.cases))
	for i, c := range s.cases {
		cases[i] = c.clone()
	}
	return state{
		cases:   cases,
		active:  s.active,
		history: append([]string(nil), s.history...),
	}
}

// commit writes next and, only once every key is stored, makes it and
// buffer current. On failure the previous state is written back so the
// keys stay consistent with memory. Caller holds s.mu.
func (s *Store) commit(next state, buffer string) error {
	if err := s.persist(next); err != nil {
		_ = s.persist(state{cases: s.cases, active: s.active, history: s.history})
		return err
	}
	s.cases, s.active, s.history = next.cases, next.active, next.history
	s.buffer = buffer
	return nil
}

func (s *Store) persist(st state) error {
	cases := st.cases
	if cases == nil {
		cases = []Case{}
	}
	history := st.history
	if history == nil {
		history = []string{}
	}
	if err := localstore.SetJSON(s.kv, KeyCases, cases); err != nil {
		return fmt.Errorf("persist cases: %w", err)
	}
	if err := localstore.SetJSON(s.kv, KeyActive, st.active); err != nil {
		return fmt.Errorf("persist active case: %w", err)
	}
	if err := localstore.SetJSON(s.kv, KeyHistory, history); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func join(existing, text string) string {
	if existing == "" {
		return text
	}
	return existing + Separator + text
}
