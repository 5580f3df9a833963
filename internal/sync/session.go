package sync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/jobboard/internal/store"
)

const (
	sessionUserKey  = "session.user_id"
	sessionGuestKey = "session.guest"
)

// SessionState is who is using the profile.
type SessionState struct {
	// UserID is zero when nobody is signed in.
	UserID int64
	// Guest browses without an account. Guests never receive messages.
	Guest bool
}

// SignedIn reports whether an account is signed in.
func (s SessionState) SignedIn() bool {
	return s.UserID != 0 && !s.Guest
}

// Session persists the signed-in user in sync_state so it survives
// daemon restarts.
type Session struct {
	db *store.DB
}

// NewSession creates a session backed by db.
func NewSession(db *store.DB) *Session {
	return &Session{db: db}
}

// SignIn records userID as the current user.
func (s *Session) SignIn(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("sign in: user id is required")
	}
	if err := s.db.PutState(ctx, sessionUserKey, strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return s.db.DeleteState(ctx, sessionGuestKey)
}

// SignInGuest starts a guest session.
func (s *Session) SignInGuest(ctx context.Context) error {
	if err := s.db.DeleteState(ctx, sessionUserKey); err != nil {
		return fmt.Errorf("guest sign in: %w", err)
	}
	return s.db.PutState(ctx, sessionGuestKey, "1")
}

// SignOut ends the current session.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.db.DeleteState(ctx, sessionUserKey); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return s.db.DeleteState(ctx, sessionGuestKey)
}

// Current returns the stored session.
func (s *Session) Current(ctx context.Context) (SessionState, error) {
	var st SessionState
	raw, ok, err := s.db.GetState(ctx, sessionUserKey)
	if err != nil {
		return st, fmt.Errorf("read session: %w", err)
	}
	if ok {
		if st.UserID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return SessionState{}, fmt.Errorf("read session: user id %q: %w", raw, err)
		}
	}
	_, st.Guest, err = s.db.GetState(ctx, sessionGuestKey)
	if err != nil {
		return SessionState{}, fmt.Errorf("read session: %w", err)
	}
	return st, nil
}
