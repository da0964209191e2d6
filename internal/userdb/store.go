// Package userdb persists each user's profile and saved inquiries as one JSON
// record in a kv.Store, plus a per-device pointer to the logged-in user.
package userdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/kv"
	"github.com/hanzhi-dmd/companion/internal/logger"
)

const (
	currentUserKey = "hanzhi_current_user"
	recordPrefix   = "hanzhi_db_"
)

var (
	ErrAuthRejected = errors.New("userdb: login rejected")
	ErrNoSession    = errors.New("userdb: no user logged in")
)

// Latencies are artificial delays applied before the matching operation.
type Latencies struct {
	Login       time.Duration
	Logout      time.Duration
	SaveProfile time.Duration
}

func DefaultLatencies() Latencies {
	return Latencies{Login: 600 * time.Millisecond, Logout: 200 * time.Millisecond, SaveProfile: 300 * time.Millisecond}
}

type Store struct {
	kv         kv.Store
	authn      auth.Authenticator
	log        *logger.Logger
	latency    Latencies
	sessionTTL time.Duration

	locks sync.Map // username -> *sync.Mutex
}

type Option func(*Store)

// WithSessionTTL lets the current-user pointer expire on backends that
// support key expiry. Zero keeps it until logout.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Store) { s.sessionTTL = d }
}

func NewStore(store kv.Store, authn auth.Authenticator, latency Latencies, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		kv:      store,
		authn:   authn,
		log:     logger.OrNop(log).With("component", "userdb"),
		latency: latency,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CurrentUserKey is the scalar key naming the logged-in user for device. The
// empty device maps to the single-device key.
func CurrentUserKey(device string) string {
	if device == "" {
		return currentUserKey
	}
	return currentUserKey + ":" + device
}

func RecordKey(username string) string { return recordPrefix + username }

func (s *Store) CurrentUser(ctx context.Context, device string) (string, bool, error) {
	u, err := s.kv.Get(ctx, CurrentUserKey(device))
	if errors.Is(err, kv.ErrNotFound) || (err == nil && u == "") {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u, true, nil
}

// Login checks credentials after the configured delay. A rejected login
// leaves any existing current-user pointer untouched. The record is created
// before the pointer is written, so a device never points at a missing record.
func (s *Store) Login(ctx context.Context, device, username, password string) (*Session, error) {
	if err := sleep(ctx, s.latency.Login); err != nil {
		return nil, err
	}
	id, err := s.authn.Authenticate(ctx, auth.Credentials{Username: username, Password: password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.Info("login rejected", "username", username, "device", device)
			return nil, ErrAuthRejected
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if err := s.ensureRecord(ctx, id.Username); err != nil {
		return nil, err
	}
	if err := kv.SetWithTTL(ctx, s.kv, CurrentUserKey(device), id.Username, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("set current user: %w", err)
	}
	s.log.Info("login", "username", id.Username, "device", device)
	return &Session{store: s, device: device, username: id.Username}, nil
}

// Resume restores the session a device was left in.
func (s *Store) Resume(ctx context.Context, device string) (*Session, error) {
	u, ok, err := s.CurrentUser(ctx, device)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSession
	}
	return &Session{store: s, device: device, username: u}, nil
}

// Record reads a user's record directly, bypassing the session check. It is
// meant for operator tooling.
func (s *Store) Record(ctx context.Context, username string) (*Record, error) {
	return s.load(ctx, username)
}

func (s *Store) ensureRecord(ctx context.Context, username string) error {
	mu := s.lock(username)
	mu.Lock()
	defer mu.Unlock()

	_, err := s.kv.Get(ctx, RecordKey(username))
	if err == nil {
		return nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("load record: %w", err)
	}
	return s.save(ctx, newRecord(username))
}

func (s *Store) lock(username string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(username, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Store) load(ctx context.Context, username string) (*Record, error) {
	raw, err := s.kv.Get(ctx, RecordKey(username))
	if errors.Is(err, kv.ErrNotFound) {
		return newRecord(username), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if r.Username == "" {
		r.Username = username
	}
	if r.SavedInquiries == nil {
		r.SavedInquiries = []Inquiry{}
	}
	return &r, nil
}

func (s *Store) save(ctx context.Context, r *Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.kv.Set(ctx, RecordKey(r.Username), string(b)); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
