package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/bookstore/internal/hash"
	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
)

const (
	defaultExchangeTimeout = 15 * time.Second
	storageTimeout         = 5 * time.Second
)

// Store owns the authentication state of one client installation. Every
// mutating operation takes a new generation; results of an older generation
// are dropped instead of overwriting fresher state.
type Store struct {
	storage  TokenStorage
	identity IdentityExchanger
	notifier LogoutNotifier

	publisher Publisher
	topic     string
	log       *slog.Logger

	persistAfterExchange bool
	exchangeTimeout      time.Duration
	onSignOut            func()

	// ioMu orders storage writes. mu is only ever taken briefly inside it.
	ioMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	token   string
	user    *models.UserIdentity
	loading bool
	state   State
	closed  bool
	subs    map[int]chan Snapshot
	nextSub int
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithPublisher(p Publisher, topic string) Option {
	return func(s *Store) {
		s.publisher = p
		s.topic = topic
	}
}

// WithPersistAfterExchange writes the token to storage only once the backend
// has resolved it. The default writes first so a reload during the exchange
// still finds the token.
func WithPersistAfterExchange() Option {
	return func(s *Store) { s.persistAfterExchange = true }
}

func WithExchangeTimeout(d time.Duration) Option {
	return func(s *Store) { s.exchangeTimeout = d }
}

// WithSignOutHook registers fn to run whenever a known identity is dropped or
// replaced: logout, expiry, a failed login or a new login over it.
func WithSignOutHook(fn func()) Option {
	return func(s *Store) { s.onSignOut = fn }
}

func New(storage TokenStorage, identity IdentityExchanger, notifier LogoutNotifier, opts ...Option) *Store {
	s := &Store{
		storage:         storage,
		identity:        identity,
		notifier:        notifier,
		exchangeTimeout: defaultExchangeTimeout,
		log:             logging.Discard(),
		loading:         true,
		state:           Uninitialized,
		subs:            make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type operation struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// begin supersedes whatever operation is in flight. The operation context is
// detached from the caller's cancellation so an abandoned HTTP request does not
// read as an identity failure; supersession and Close still cancel it.
func (s *Store) begin(ctx context.Context) (*operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.beginLocked(ctx), nil
}

func (s *Store) beginLocked(ctx context.Context) *operation {
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.exchangeTimeout)
	s.cancel = cancel
	return &operation{gen: s.gen, ctx: opCtx, cancel: cancel}
}

func (s *Store) finish(op *operation) {
	op.cancel()
	s.mu.Lock()
	if s.gen == op.gen {
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Store) currentLocked(op *operation) error {
	if s.closed {
		return ErrClosed
	}
	if s.gen != op.gen {
		return ErrSuperseded
	}
	return nil
}

// commit runs fn under the lock only while op is still the newest operation.
// fn must not do I/O.
func (s *Store) commit(op *operation, fn func() error) error {
	s.mu.Lock()
	if err := s.currentLocked(op); err != nil {
		s.mu.Unlock()
		return err
	}
	before := s.user
	err := fn()
	s.broadcastLocked()
	dropped := before != nil && (s.user == nil || s.user.ID != before.ID)
	s.mu.Unlock()

	if dropped && s.onSignOut != nil {
		s.onSignOut()
	}
	return err
}

// persist runs one storage write for op outside mu. Writes are serialized and
// skipped once op is superseded, so an older operation never lands after a
// newer one. The write gets its own deadline since a slow exchange may have
// spent op.ctx already.
func (s *Store) persist(op *operation, write func(ctx context.Context) error) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	err := s.currentLocked(op)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(op.ctx), storageTimeout)
	defer cancel()
	return write(ctx)
}

func lostRace(err error) bool {
	return errors.Is(err, ErrSuperseded) || errors.Is(err, ErrClosed)
}

// save persists token for op. A storage failure leaves the store anonymous.
func (s *Store) save(op *operation, token string) error {
	err := s.persist(op, func(ctx context.Context) error {
		return s.storage.Save(ctx, token)
	})
	if err == nil || lostRace(err) {
		return err
	}
	if cerr := s.commit(op, func() error {
		s.resetLocked()
		return nil
	}); cerr != nil {
		return cerr
	}
	s.log.Error("session_save_token_error", "error", err)
	return fmt.Errorf("save token: %w", err)
}

// clearStorage drops the persisted token for op. Failures are only logged;
// the in-memory state is reset by the caller regardless.
func (s *Store) clearStorage(op *operation) {
	if err := s.persist(op, s.storage.Clear); err != nil && !lostRace(err) {
		s.log.Error("session_clear_token_error", "error", err)
	}
}

func (s *Store) resetLocked() {
	s.token = ""
	s.user = nil
	s.loading = false
	s.state = Anonymous
}

// Hydrate restores the session from storage. A token the backend rejects is
// dropped silently; only storage failures are returned.
func (s *Store) Hydrate(ctx context.Context) error {
	op, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer s.finish(op)

	if err := s.commit(op, func() error {
		s.loading = true
		s.state = Hydrating
		return nil
	}); err != nil {
		return err
	}

	token, err := s.storage.Load(op.ctx)
	if err == nil && token == "" {
		err = ErrNoToken
	}
	if err != nil {
		cerr := s.commit(op, func() error {
			s.resetLocked()
			return nil
		})
		if cerr != nil {
			return cerr
		}
		if errors.Is(err, ErrNoToken) {
			s.log.Info("session_hydrated", "state", Anonymous.String())
			return nil
		}
		s.log.Error("session_hydrate_storage_error", "error", err)
		return fmt.Errorf("load token: %w", err)
	}

	if err := s.commit(op, func() error {
		s.token = token
		return nil
	}); err != nil {
		return err
	}

	user, err := s.identity.TokenInfo(op.ctx, token)
	if err != nil {
		s.clearStorage(op)
		cerr := s.commit(op, func() error {
			s.resetLocked()
			return nil
		})
		if cerr != nil {
			return cerr
		}
		s.log.Warn("session_hydrate_rejected", "token", hash.Fingerprint(token), "error", err)
		s.publish(op.ctx, "session.hydrate_failed", token, nil)
		return nil
	}

	if err := s.commit(op, func() error {
		s.user = user
		s.loading = false
		s.state = Authenticated
		return nil
	}); err != nil {
		return err
	}

	s.log.Info("session_hydrated", "state", Authenticated.String(), "user_id", user.ID)
	s.publish(op.ctx, "session.hydrated", token, user)
	return nil
}

// Login adopts a token produced by a credential login or an OAuth callback.
// Exchange failures leave the store anonymous with no persisted token and
// are returned to the caller.
func (s *Store) Login(ctx context.Context, token string) (*models.UserIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}

	op, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.finish(op)

	if !s.persistAfterExchange {
		if err := s.save(op, token); err != nil {
			return nil, err
		}
	}

	err = s.commit(op, func() error {
		s.token = token
		s.user = nil
		s.loading = true
		s.state = Hydrating
		return nil
	})
	if err != nil {
		return nil, err
	}

	user, err := s.identity.TokenInfo(op.ctx, token)
	if err != nil {
		// Cleared in both persistence modes, so no earlier token survives.
		s.clearStorage(op)
		if cerr := s.commit(op, func() error {
			s.resetLocked()
			return nil
		}); cerr != nil {
			return nil, cerr
		}
		s.log.Warn("session_login_failed", "token", hash.Fingerprint(token), "error", err)
		s.publish(op.ctx, "session.login_failed", token, nil)
		return nil, fmt.Errorf("exchange token: %w", err)
	}

	if s.persistAfterExchange {
		if err := s.save(op, token); err != nil {
			return nil, err
		}
	}

	err = s.commit(op, func() error {
		s.user = user
		s.loading = false
		s.state = Authenticated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session_login", "user_id", user.ID, "role", user.RoleName)
	s.publish(op.ctx, "session.login", token, user)
	return user, nil
}

// Logout always ends anonymous locally. The backend notification is best
// effort.
func (s *Store) Logout(ctx context.Context) {
	op, err := s.begin(ctx)
	if err != nil {
		return
	}
	defer s.finish(op)

	s.mu.Lock()
	token, user := s.token, s.user
	s.mu.Unlock()

	if s.notifier != nil {
		if err := s.notifier.Logout(op.ctx, token); err != nil {
			s.log.Warn("session_logout_notify_failed", "error", err)
		}
	}

	s.clearStorage(op)
	err = s.commit(op, func() error {
		s.resetLocked()
		return nil
	})
	if err != nil {
		s.log.Info("session_logout_superseded", "error", err)
		return
	}

	s.log.Info("session_logout")
	s.publish(op.ctx, "session.logout", token, user)
}

// Expire drops the session the backend rejected token for. A token that is no
// longer current is ignored, so a late 401 for an older bearer cannot end a
// newer session. Unlike Logout the backend is not notified.
func (s *Store) Expire(ctx context.Context, token string) {
	s.mu.Lock()
	if s.closed || token == "" || token != s.token {
		s.mu.Unlock()
		s.log.Info("session_expire_ignored", "token", hash.Fingerprint(token))
		return
	}
	op := s.beginLocked(ctx)
	user := s.user
	s.mu.Unlock()
	defer s.finish(op)

	s.clearStorage(op)
	if err := s.commit(op, func() error {
		s.resetLocked()
		return nil
	}); err != nil {
		return
	}

	s.log.Warn("session_expired", "token", hash.Fingerprint(token))
	s.publish(op.ctx, "session.expired", token, user)
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Token:     s.token,
		User:      s.user,
		Loading:   s.loading,
		State:     s.state,
		ExpiresAt: tokenExpiry(s.token),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Token is the bearer source for outgoing API requests.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe delivers the latest snapshot after every state change. Slow
// readers only ever see the newest snapshot.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) broadcastLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Close cancels any in-flight exchange and releases subscribers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Token     string    `json:"token_fingerprint,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) publish(ctx context.Context, typ, token string, user *models.UserIdentity) {
	if s.publisher == nil {
		return
	}
	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Token:     hash.Fingerprint(token),
		CreatedAt: time.Now().UTC(),
	}
	key := ev.Token
	if user != nil {
		ev.UserID = user.ID
		ev.Role = user.RoleName
		key = fmt.Sprint(user.ID)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishEvent(pubCtx, s.topic, key, ev); err != nil {
		s.log.Warn("session_event_publish_failed", "type", typ, "error", err)
	}
}
