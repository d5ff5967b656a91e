package present

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/recommend"
)

// Session is one visitor's presentation state: favorites, the last result
// and the page being viewed.
type Session struct {
	ID string

	mu             sync.Mutex
	favorites      *Favorites
	page           int
	query          recommend.Query
	results        *recommend.Result
	catalogVersion uint64
}

func newSession(id string) *Session {
	return &Session{ID: id, favorites: NewFavorites(), page: 1}
}

// SetFavorite marks or unmarks model.
func (s *Session) SetFavorite(model string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites.Set(model, on)
}

// ToggleFavorite flips model and returns its new state.
func (s *Session) ToggleFavorite(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Toggle(model)
}

// Favorites returns a copy of the favorite set.
func (s *Session) Favorites() *Favorites {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewFavorites(s.favorites.Models()...)
}

// SetResults stores a fresh result and resets the view to page 1.
func (s *Session) SetResults(q recommend.Query, res *recommend.Result, catalogVersion uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	s.results = res
	s.catalogVersion = catalogVersion
	s.page = 1
}

// Results returns the last result, its query and the catalog version it was
// computed against. ok is false before the first search.
func (s *Session) Results() (res *recommend.Result, q recommend.Query, catalogVersion uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results, s.query, s.catalogVersion, s.results != nil
}

// SetPage records the page being viewed.
func (s *Session) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

// Page is the page last viewed.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Sessions is a bounded store of sessions that expire after a period of
// inactivity. Sessions live only in memory.
type Sessions struct {
	cache   *expirable.LRU[string, *Session]
	metrics *metrics.Metrics
}

// NewSessions builds a store holding at most capacity sessions.
func NewSessions(capacity int, ttl time.Duration, m *metrics.Metrics) *Sessions {
	return &Sessions{
		cache:   expirable.NewLRU[string, *Session](capacity, nil, ttl),
		metrics: m,
	}
}

// Get returns the session for id and refreshes its expiry.
func (s *Sessions) Get(id string) (*Session, bool) {
	sess, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	s.cache.Add(id, sess)
	return sess, true
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or not a valid session ID. created reports whether a session was made.
func (s *Sessions) GetOrCreate(id string) (sess *Session, created bool) {
	if _, err := uuid.Parse(id); err == nil {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	sess = newSession(uuid.NewString())
	s.cache.Add(sess.ID, sess)
	s.metrics.SetActiveSessions(s.cache.Len())
	return sess, true
}

// Len is the number of live sessions.
func (s *Sessions) Len() int {
	n := s.cache.Len()
	s.metrics.SetActiveSessions(n)
	return n
}
