package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ridebroker/internal/dispatch"
	"ridebroker/internal/domain"
	"ridebroker/internal/redis"
	"ridebroker/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK SESSION REPOSITORY
// ──────────────────────────────────────────────

// MockSessionRepository is a mock implementation of SessionRepository.
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.RideSession

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockSessionRepository creates a new mock session repository.
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[string]*domain.RideSession),
	}
}

// AddSession adds a session to the mock repository.
func (m *MockSessionRepository) AddSession(session *domain.RideSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.RideSession) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.RideSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *session
	return &copy, nil
}

func (m *MockSessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.RideSession, error) {
	return m.GetByID(ctx, id)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.RideSession) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

func (m *MockSessionRepository) ListByStatusOlderThan(ctx context.Context, status domain.SessionStatus, cutoff time.Time, limit int) ([]*domain.RideSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RideSession
	for _, s := range m.sessions {
		if s.Status != status {
			continue
		}
		ref := s.CreatedAt
		switch status {
		case domain.SessionStatusDiscovery:
			ref = s.DiscoveryStartAt
			if !s.LastWaveAt.IsZero() {
				ref = s.LastWaveAt
			}
		case domain.SessionStatusHold:
			ref = s.HoldStartAt
		}
		if ref.Before(cutoff) {
			copy := *s
			result = append(result, &copy)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// GetSession returns the session by ID (for test assertions).
func (m *MockSessionRepository) GetSession(id string) *domain.RideSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// ──────────────────────────────────────────────
// MOCK OFFER REPOSITORY
// ──────────────────────────────────────────────

// MockOfferRepository is a mock implementation of OfferRepository.
type MockOfferRepository struct {
	mu     sync.RWMutex
	offers map[string]*domain.Offer
	order  []string // insertion order for deterministic listings

	// Counters
	CreateCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockOfferRepository creates a new mock offer repository.
func NewMockOfferRepository() *MockOfferRepository {
	return &MockOfferRepository{
		offers: make(map[string]*domain.Offer),
	}
}

// AddOffer adds an offer to the mock repository.
func (m *MockOfferRepository) AddOffer(offer *domain.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offer.ID] = offer
	m.order = append(m.order, offer.ID)
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offer.ID] = offer
	m.order = append(m.order, offer.ID)
	return nil
}

func (m *MockOfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offer, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *offer
	return &copy, nil
}

func (m *MockOfferRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Offer
	for _, id := range m.order {
		o := m.offers[id]
		if o.SessionID == sessionID {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockOfferRepository) CountPendingBySession(ctx context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, o := range m.offers {
		if o.SessionID == sessionID && o.Status == domain.OfferStatusPending {
			count++
		}
	}
	return count, nil
}

func (m *MockOfferRepository) UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error {
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	offer.Status = status
	return nil
}

func (m *MockOfferRepository) RejectPendingExcept(ctx context.Context, sessionID, keepOfferID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rejected []string
	for _, o := range m.offers {
		if o.SessionID == sessionID && o.ID != keepOfferID && o.Status == domain.OfferStatusPending {
			o.Status = domain.OfferStatusRejected
			rejected = append(rejected, o.ID)
		}
	}
	return rejected, nil
}

func (m *MockOfferRepository) ExpirePendingBefore(ctx context.Context, sessionID string, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for _, o := range m.offers {
		if sessionID != "" && o.SessionID != sessionID {
			continue
		}
		if o.Status == domain.OfferStatusPending && o.ExpiresAt.Before(cutoff) {
			o.Status = domain.OfferStatusExpired
			expired = append(expired, o.ID)
		}
	}
	return expired, nil
}

// GetOffer returns the offer by ID (for test assertions).
func (m *MockOfferRepository) GetOffer(id string) *domain.Offer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offers[id]
}

// CountByStatus counts a session's offers in the given status.
func (m *MockOfferRepository) CountByStatus(sessionID string, status domain.OfferStatus) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, o := range m.offers {
		if o.SessionID == sessionID && o.Status == status {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK EVENT REPOSITORY
// ──────────────────────────────────────────────

// MockEventRepository is a mock implementation of EventRepository.
type MockEventRepository struct {
	mu     sync.RWMutex
	events []*domain.RideEvent

	// Error injection
	AppendError error
}

// NewMockEventRepository creates a new mock event repository.
func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Append(ctx context.Context, event *domain.RideEvent) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.RideEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RideEvent
	for _, e := range m.events {
		if e.SessionID == sessionID {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// AllEvents returns every recorded event (for assertions).
func (m *MockEventRepository) AllEvents() []*domain.RideEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.RideEvent, len(m.events))
	copy(result, m.events)
	return result
}

// CountByType counts a session's events of one type (for assertions).
func (m *MockEventRepository) CountByType(sessionID string, t domain.EventType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.events {
		if e.SessionID == sessionID && e.Type == t {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION REPOSITORY
// ──────────────────────────────────────────────

// MockNotificationRepository is a mock implementation of NotificationRepository.
type MockNotificationRepository struct {
	mu   sync.RWMutex
	rows []*domain.DriverNotification

	// Error injection
	CreateError error
}

// NewMockNotificationRepository creates a new mock notification repository.
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.DriverNotification) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, n)
	return nil
}

func (m *MockNotificationRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.DriverNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.DriverNotification
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].DriverID == driverID {
			copy := *m.rows[i]
			result = append(result, &copy)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// CountForDriver counts notifications written for a driver.
func (m *MockNotificationRepository) CountForDriver(driverID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.rows {
		if n.DriverID == driverID {
			count++
		}
	}
	return count
}

// CountForSession counts notifications written for a session.
func (m *MockNotificationRepository) CountForSession(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.rows {
		if n.SessionID == sessionID {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu        sync.RWMutex
	drivers   map[string]*domain.Driver
	favorites map[string][]string // rider id -> driver ids
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers:   make(map[string]*domain.Driver),
		favorites: make(map[string][]string),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// AddFavorite marks a driver as one of the rider's favorites.
func (m *MockDriverRepository) AddFavorite(riderID, driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favorites[riderID] = append(m.favorites[riderID], driverID)
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]*domain.Driver, len(ids))
	for _, id := range ids {
		if d, ok := m.drivers[id]; ok {
			copy := *d
			result[id] = &copy
		}
	}
	return result, nil
}

func (m *MockDriverRepository) ListFavorites(ctx context.Context, riderID string) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Driver
	for _, id := range m.favorites[riderID] {
		if d, ok := m.drivers[id]; ok {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK TX STORE
// ──────────────────────────────────────────────

// MockTxStore runs transaction functions against the shared mocks. A
// mutex stands in for the session row lock, serializing concurrent
// commits the way FOR UPDATE does. Writes apply eagerly; every
// coordinator path validates before it writes, so the missing rollback
// never shows.
type MockTxStore struct {
	mu       sync.Mutex
	Sessions *MockSessionRepository
	Offers   *MockOfferRepository
	Events   *MockEventRepository

	// Counters
	RunCallCount int32

	// Error injection, returned before fn runs
	RunError error
}

// NewMockTxStore creates a mock tx store over the given mocks.
func NewMockTxStore(sessions *MockSessionRepository, offers *MockOfferRepository, events *MockEventRepository) *MockTxStore {
	return &MockTxStore{Sessions: sessions, Offers: offers, Events: events}
}

func (m *MockTxStore) RunInTx(ctx context.Context, fn func(repos repository.TxRepos) error) error {
	atomic.AddInt32(&m.RunCallCount, 1)
	if m.RunError != nil {
		return m.RunError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(repository.TxRepos{
		Sessions: m.Sessions,
		Offers:   m.Offers,
		Events:   m.Events,
	})
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of the location store. It
// returns every stored location; the discovery service applies the
// exact distance cutoff itself.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.DriverLocation

	// Error injection
	FindNearbyDriversError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{}
}

// AddDriverLocation adds a driver location to the mock store.
func (m *MockLocationStore) AddDriverLocation(loc redis.DriverLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.DriverID == driverID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng})
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.DriverLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.DriverID == driverID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIED STORE
// ──────────────────────────────────────────────

// MockNotifiedStore is a mock implementation of the wave dedupe set.
type MockNotifiedStore struct {
	mu       sync.Mutex
	notified map[string]map[string]struct{} // session id -> driver ids

	// Error injection
	MarkError error
}

// NewMockNotifiedStore creates a new mock notified store.
func NewMockNotifiedStore() *MockNotifiedStore {
	return &MockNotifiedStore{
		notified: make(map[string]map[string]struct{}),
	}
}

func (m *MockNotifiedStore) MarkNotified(ctx context.Context, sessionID, driverID string) (bool, error) {
	if m.MarkError != nil {
		return false, m.MarkError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.notified[sessionID]
	if !ok {
		set = make(map[string]struct{})
		m.notified[sessionID] = set
	}
	if _, seen := set[driverID]; seen {
		return false, nil
	}
	set[driverID] = struct{}{}
	return true, nil
}

func (m *MockNotifiedStore) WasNotified(ctx context.Context, sessionID, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, seen := m.notified[sessionID][driverID]
	return seen, nil
}

func (m *MockNotifiedStore) NotifiedCount(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.notified[sessionID])), nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of the distributed lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, exists := m.locks[name]; exists && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of the session summary cache.
type MockCacheStore struct {
	mu        sync.Mutex
	summaries map[string]*redis.SessionSummary

	// Error injection
	GetError error
	SetError error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		summaries: make(map[string]*redis.SessionSummary),
	}
}

func (m *MockCacheStore) GetSessionSummary(ctx context.Context, sessionID string) (*redis.SessionSummary, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.summaries[sessionID]
	if !ok {
		return nil, nil
	}
	copy := *summary
	return &copy, nil
}

func (m *MockCacheStore) SetSessionSummary(ctx context.Context, summary *redis.SessionSummary) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.SessionID] = summary
	return nil
}

// Drop removes a cached summary (forces the resolve fallback path).
func (m *MockCacheStore) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, sessionID)
}

// ──────────────────────────────────────────────
// MOCK PUSHER
// ──────────────────────────────────────────────

// MockPusher records push notifications instead of delivering them.
type MockPusher struct {
	mu      sync.Mutex
	notices []dispatch.Notice

	// Error injection
	PushError error
}

// NewMockPusher creates a new mock pusher.
func NewMockPusher() *MockPusher {
	return &MockPusher{}
}

func (m *MockPusher) Push(ctx context.Context, notice dispatch.Notice) error {
	if m.PushError != nil {
		return m.PushError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice)
	return nil
}

// Notices returns a copy of the recorded notices.
func (m *MockPusher) Notices() []dispatch.Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]dispatch.Notice, len(m.notices))
	copy(result, m.notices)
	return result
}

// CountForRecipient counts notices sent to one recipient.
func (m *MockPusher) CountForRecipient(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notices {
		if n.RecipientID == id {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
