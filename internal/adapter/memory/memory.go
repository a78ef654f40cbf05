// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu            sync.Mutex
	experiments   []domain.Experiment
	parameters    []domain.Parameter
	entries       []domain.DailyEntry
	users         []*domain.User
	sessions      map[string]*domain.Session
	conversations map[int64][]byte

	experimentIDCounter int64
	parameterIDCounter  int64
	entryIDCounter      int64
	userIDCounter       int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions:      make(map[string]*domain.Session),
		conversations: make(map[int64][]byte),
	}
}

// Ensure interfaces are met.
var _ domain.ExperimentRepository = (*DB)(nil)
var _ domain.ParameterRepository = (*DB)(nil)
var _ domain.EntryRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)
var _ conversation.SessionStore = (*ConversationStore)(nil)

// --- ExperimentRepository ---

// CreateExperiment adds an experiment owned by userID.
func (db *DB) CreateExperiment(ctx context.Context, userID int64, name string) (*domain.Experiment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.experimentIDCounter++
	e := domain.Experiment{
		ID:        db.experimentIDCounter,
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	db.experiments = append(db.experiments, e)
	return &e, nil
}

// ListExperiments lists the user's experiments in creation order.
func (db *DB) ListExperiments(ctx context.Context, userID int64) ([]domain.Experiment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.Experiment
	for _, e := range db.experiments {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

// GetExperiment retrieves an experiment by ID.
func (db *DB) GetExperiment(ctx context.Context, id int64) (*domain.Experiment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range db.experiments {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

// DeleteExperimentCascade removes an experiment with its parameters and entries.
func (db *DB) DeleteExperimentCascade(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.experiments = filter(db.experiments, func(e domain.Experiment) bool { return e.ID != id })
	db.parameters = filter(db.parameters, func(p domain.Parameter) bool { return p.ExperimentID != id })
	db.entries = filter(db.entries, func(e domain.DailyEntry) bool { return e.ExperimentID != id })
	return nil
}

func filter[T any](xs []T, keep func(T) bool) []T {
	out := xs[:0]
	for _, x := range xs {
		if keep(x) {
			out = append(out, x)
		}
	}
	return out
}

// --- ParameterRepository ---

// CreateParameter adds a parameter. Names are unique within an experiment.
func (db *DB) CreateParameter(ctx context.Context, p domain.Parameter) (*domain.Parameter, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.parameters {
		if existing.ExperimentID == p.ExperimentID && existing.Name == p.Name {
			return nil, &domain.ValidationError{Field: "name", Reason: fmt.Sprintf("parameter %q already exists", p.Name)}
		}
	}

	db.parameterIDCounter++
	p.ID = db.parameterIDCounter
	db.parameters = append(db.parameters, p)
	return &p, nil
}

// ListParameters lists an experiment's parameters in creation order.
func (db *DB) ListParameters(ctx context.Context, experimentID int64) ([]domain.Parameter, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.Parameter
	for _, p := range db.parameters {
		if p.ExperimentID == experimentID {
			result = append(result, p)
		}
	}
	return result, nil
}

// GetParameter retrieves a parameter by ID.
func (db *DB) GetParameter(ctx context.Context, id int64) (*domain.Parameter, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, p := range db.parameters {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

// --- EntryRepository ---

// UpsertDailyEntry stores values for (user, experiment, date), replacing an
// existing entry's values.
func (db *DB) UpsertDailyEntry(ctx context.Context, userID, experimentID int64, date string, values map[string]domain.Value) (*domain.DailyEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := time.Parse(domain.DayLayout, date); err != nil {
		return nil, fmt.Errorf("invalid entry date %q: %w", date, err)
	}

	now := time.Now().UTC()
	for i := range db.entries {
		e := &db.entries[i]
		if e.UserID == userID && e.ExperimentID == experimentID && e.Date == date {
			e.Values = maps.Clone(values)
			e.UpdatedAt = now
			ret := *e
			ret.Values = maps.Clone(e.Values)
			return &ret, nil
		}
	}

	db.entryIDCounter++
	e := domain.DailyEntry{
		ID:           db.entryIDCounter,
		UserID:       userID,
		ExperimentID: experimentID,
		Date:         date,
		Values:       maps.Clone(values),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	db.entries = append(db.entries, e)
	e.Values = maps.Clone(values)
	return &e, nil
}

// ListEntries lists the user's entries of an experiment by ascending date.
func (db *DB) ListEntries(ctx context.Context, userID, experimentID int64) ([]domain.DailyEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.DailyEntry
	for _, e := range db.entries {
		if e.UserID == userID && e.ExperimentID == experimentID {
			e.Values = maps.Clone(e.Values)
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// FindUsersMissingEntry returns users that own an experiment but logged
// nothing on day.
func (db *DB) FindUsersMissingEntry(ctx context.Context, day string) ([]domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	owners := make(map[int64]bool)
	for _, e := range db.experiments {
		owners[e.UserID] = true
	}
	for _, e := range db.entries {
		if e.Date == day {
			delete(owners, e.UserID)
		}
	}

	var result []domain.User
	for _, u := range db.users {
		if owners[u.ID] {
			result = append(result, *u)
		}
	}
	return result, nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			ret := *u
			return &ret, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			ret := *u
			return &ret, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	ret := *u
	return &ret, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// SetChatID links or unlinks the user's reminder chat.
func (db *DB) SetChatID(ctx context.Context, userID int64, chatID *int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == userID {
			u.ChatID = chatID
			return nil
		}
	}
	return &domain.NotFoundError{Kind: "user", ID: userID}
}

// --- SessionRepository ---

// SessionRepo implements login session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		if time.Now().After(s.ExpiresAt) {
			delete(r.db.sessions, token)
			return nil, nil
		}
		ret := *s
		return &ret, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

// --- conversation.SessionStore ---

// ConversationStore keeps conversation sessions as JSON so callers never
// share a session value with the store.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a conversation session store.
func (db *DB) NewConversationStore() *ConversationStore {
	return &ConversationStore{db: db}
}

// Load returns the user's session, or nil when there is none.
func (c *ConversationStore) Load(ctx context.Context, userID int64) (*conversation.Session, error) {
	c.db.mu.Lock()
	raw, ok := c.db.conversations[userID]
	c.db.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var s conversation.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Save stores s, replacing the user's previous session.
func (c *ConversationStore) Save(ctx context.Context, s *conversation.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.conversations[s.UserID] = raw
	return nil
}

// Delete removes the user's session.
func (c *ConversationStore) Delete(ctx context.Context, userID int64) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	delete(c.db.conversations, userID)
	return nil
}
