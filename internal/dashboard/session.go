package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the controller state of a session.
type State int

const (
	// Idle shows the last rendered figure.
	Idle State = iota
	// Recomputing is running the region filter and renderer for an event.
	Recomputing
)

func (s State) String() string {
	if s == Recomputing {
		return "recomputing"
	}
	return "idle"
}

// Session is one browser's view: its current selection and metric. The
// reference data it renders from is shared and never copied into it.
type Session struct {
	ID string

	// run serializes events; mu guards the fields below.
	run      sync.Mutex
	mu       sync.Mutex
	state    State
	selected []string
	metric   string
	lastSeen time.Time
}

func (s *Session) begin() {
	s.run.Lock()
	s.mu.Lock()
	s.state = Recomputing
	s.mu.Unlock()
}

func (s *Session) end() {
	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
	s.run.Unlock()
}

// State returns the controller state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Selected returns a copy of the selected state names.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.selected))
	copy(out, s.selected)
	return out
}

// SetSelected replaces the selection.
func (s *Session) SetSelected(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append([]string(nil), names...)
}

// Metric returns the metric the map is colored by.
func (s *Session) Metric() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metric
}

// SetMetric changes the metric.
func (s *Session) SetMetric(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metric = key
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps sessions in memory, keyed by a random id. Sessions idle
// longer than the TTL are evicted on a later access; there is no background
// sweeper.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	ttl       time.Duration
	selected  []string
	metric    string
	lastSweep time.Time
	now       func() time.Time
	onChange  func(active int)
}

// NewSessionStore creates a store whose new sessions start with the given
// selection and metric.
func NewSessionStore(ttl time.Duration, selected []string, metric string) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		selected: append([]string(nil), selected...),
		metric:   metric,
		now:      time.Now,
	}
}

// OnChange registers a callback that receives the session count whenever it
// changes.
func (st *SessionStore) OnChange(fn func(active int)) {
	st.mu.Lock()
	st.onChange = fn
	st.mu.Unlock()
}

// Get returns a live session and marks it used.
func (st *SessionStore) Get(id string) (*Session, bool) {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(now)

	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if now.Sub(s.idleSince()) > st.ttl {
		delete(st.sessions, id)
		st.changedLocked()
		return nil, false
	}
	s.touch(now)
	return s, true
}

// GetOrCreate returns the session for id, creating a new one (with a new
// id) when id is unknown or expired. created reports which happened.
func (st *SessionStore) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

// Create starts a new session with the store defaults.
func (st *SessionStore) Create() *Session {
	now := st.now()
	s := &Session{
		ID:       uuid.New().String(),
		selected: append([]string(nil), st.selected...),
		metric:   st.metric,
		lastSeen: now,
	}

	st.mu.Lock()
	st.sweepLocked(now)
	st.sessions[s.ID] = s
	st.changedLocked()
	st.mu.Unlock()

	zap.L().Debug("dashboard: session created", zap.String("session", s.ID))
	return s
}

// Delete discards a session, e.g. when its page is closed.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	st.changedLocked()
	return true
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts every expired session and returns how many were removed.
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSweep = time.Time{}
	return st.sweepLocked(st.now())
}

// sweepLocked runs at most once per half TTL.
func (st *SessionStore) sweepLocked(now time.Time) int {
	if now.Sub(st.lastSweep) < st.ttl/2 {
		return 0
	}
	st.lastSweep = now

	var evicted int
	for id, s := range st.sessions {
		if now.Sub(s.idleSince()) > st.ttl {
			delete(st.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		st.changedLocked()
		zap.L().Debug("dashboard: evicted idle sessions", zap.Int("evicted", evicted))
	}
	return evicted
}

func (st *SessionStore) changedLocked() {
	if st.onChange != nil {
		st.onChange(len(st.sessions))
	}
}
