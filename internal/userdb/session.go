package userdb

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/hanzhi-dmd/companion/internal/profile"
)

// Session is a logged-in user on one device. Writes through a session whose
// device has since logged out are dropped silently.
type Session struct {
	store    *Store
	device   string
	username string
}

func (s *Session) Username() string { return s.username }
func (s *Session) Device() string   { return s.device }

// Active reports whether the device still points at this session's user.
func (s *Session) Active(ctx context.Context) (bool, error) {
	u, ok, err := s.store.CurrentUser(ctx, s.device)
	if err != nil {
		return false, err
	}
	return ok && u == s.username, nil
}

// Logout clears the device pointer. The user's record is kept.
func (s *Session) Logout(ctx context.Context) error {
	if err := sleep(ctx, s.store.latency.Logout); err != nil {
		return err
	}
	active, err := s.Active(ctx)
	if err != nil {
		return err
	}
	if !active {
		return nil
	}
	if err := s.store.kv.Delete(ctx, CurrentUserKey(s.device)); err != nil {
		return fmt.Errorf("clear current user: %w", err)
	}
	s.store.log.Info("logout", "username", s.username, "device", s.device)
	return nil
}

func (s *Session) UserData(ctx context.Context) (*Record, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNoSession
	}
	return s.store.load(ctx, s.username)
}

// SaveProfile replaces the stored profile wholesale. Only a fully configured,
// valid profile is accepted.
func (s *Session) SaveProfile(ctx context.Context, p profile.Profile) error {
	if err := sleep(ctx, s.store.latency.SaveProfile); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.Interests = append([]profile.InterestArea(nil), p.Interests...)
	return s.mutate(ctx, "save_profile", func(r *Record) {
		r.Profile = &p
	})
}

// SaveInquiry overwrites the inquiry with the same id in place, or prepends
// it when the id is new.
func (s *Session) SaveInquiry(ctx context.Context, inq Inquiry) error {
	if inq.ChatHistory == nil {
		inq.ChatHistory = []Turn{}
	}
	return s.mutate(ctx, "save_inquiry", func(r *Record) {
		if _, idx, ok := lo.FindIndexOf(r.SavedInquiries, func(i Inquiry) bool { return i.ID == inq.ID }); ok {
			r.SavedInquiries[idx] = inq
			return
		}
		r.SavedInquiries = append([]Inquiry{inq}, r.SavedInquiries...)
	})
}

func (s *Session) DeleteInquiry(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_inquiry", func(r *Record) {
		r.SavedInquiries = lo.Reject(r.SavedInquiries, func(i Inquiry, _ int) bool { return i.ID == id })
	})
}

// mutate reads the whole record, applies fn and writes the whole record back
// with the next revision. Writers for one username are serialized.
func (s *Session) mutate(ctx context.Context, op string, fn func(*Record)) error {
	mu := s.store.lock(s.username)
	mu.Lock()
	defer mu.Unlock()

	active, err := s.Active(ctx)
	if err != nil {
		return err
	}
	if !active {
		s.store.log.Warn("write dropped, no active session", "op", op, "username", s.username, "device", s.device)
		return nil
	}

	r, err := s.store.load(ctx, s.username)
	if err != nil {
		return err
	}
	fn(r)
	r.Revision++
	return s.store.save(ctx, r)
}
