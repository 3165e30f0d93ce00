package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/pkg/api"
	"github.com/msniranjan18/chit-chat-client/pkg/logging"
	"github.com/msniranjan18/chit-chat-client/pkg/models"
	"github.com/msniranjan18/chit-chat-client/pkg/notify"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
)

// AuthAPI is the part of api.Client the Session needs.
type AuthAPI interface {
	CheckAuth(ctx context.Context) (*models.User, error)
	Signup(ctx context.Context, req models.AuthRequest) (*models.User, error)
	Login(ctx context.Context, req models.AuthRequest) (*models.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error)
}

// Dialer opens the push channel for an authenticated user. *push.Dialer
// satisfies it.
type Dialer interface {
	Dial(ctx context.Context, userID string) (push.Channel, error)
}

type SessionState struct {
	AuthUser          *models.User
	IsSigningUp       bool
	IsLoggingIn       bool
	IsUpdatingProfile bool
	IsCheckingAuth    bool
	OnlineUsers       []string
	Channel           push.Channel
}

func (s SessionState) clone() SessionState {
	if s.OnlineUsers != nil {
		s.OnlineUsers = append([]string{}, s.OnlineUsers...)
	}
	if s.AuthUser != nil {
		u := *s.AuthUser
		s.AuthUser = &u
	}
	return s
}

// IsOnline reports whether userID appears in the last presence broadcast.
func (s SessionState) IsOnline(userID string) bool {
	for _, id := range s.OnlineUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Session tracks the authenticated user and owns the push channel.
type Session struct {
	api      AuthAPI
	dialer   Dialer
	notifier notify.Notifier
	logger   zerolog.Logger
	state    *Observable[SessionState]

	// connMu serializes opening and closing the push channel.
	connMu sync.Mutex
	// channelUser is the user the open channel was dialed for.
	channelUser string
}

// NewSession creates a Session that is still checking auth. dialer may be
// nil, in which case no push channel is ever opened.
func NewSession(authAPI AuthAPI, dialer Dialer, notifier notify.Notifier, logger zerolog.Logger) *Session {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Session{
		api:      authAPI,
		dialer:   dialer,
		notifier: notifier,
		logger:   logging.Component(logger, "session"),
		state:    NewCopyingObservable(SessionState{IsCheckingAuth: true}, SessionState.clone),
	}
}

func (s *Session) State() SessionState {
	return s.state.Get()
}

func (s *Session) Subscribe(fn func(SessionState)) func() {
	return s.state.Subscribe(fn)
}

// Channel returns the open push channel, or nil.
func (s *Session) Channel() push.Channel {
	return s.state.Get().Channel
}

// CheckSession restores the user from an existing cookie. Failure means
// "not logged in" and is not reported to the user.
func (s *Session) CheckSession(ctx context.Context) {
	s.state.Update(func(st *SessionState) { st.IsCheckingAuth = true })
	defer s.state.Update(func(st *SessionState) { st.IsCheckingAuth = false })

	user, err := s.api.CheckAuth(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No active session")
		s.state.Update(func(st *SessionState) { st.AuthUser = nil })
		return
	}

	s.state.Update(func(st *SessionState) { st.AuthUser = user })
	s.logger.Info().Str("user_id", user.ID).Msg("Session restored")
	s.connect(ctx, user)
}

func (s *Session) SignUp(ctx context.Context, req models.AuthRequest) error {
	return s.authenticate(ctx, "signup", signingUp, s.api.Signup, req, "Account created successfully")
}

func (s *Session) Login(ctx context.Context, req models.AuthRequest) error {
	return s.authenticate(ctx, "login", loggingIn, s.api.Login, req, "Logged in successfully")
}

func (s *Session) authenticate(
	ctx context.Context,
	op string,
	flag func(*SessionState) *bool,
	call func(context.Context, models.AuthRequest) (*models.User, error),
	req models.AuthRequest,
	success string,
) error {
	if !s.acquire(flag) {
		return ErrBusy
	}
	defer s.release(flag)

	user, err := call(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("op", op).Str("email", req.Email).Msg("Authentication failed")
		s.notifier.Error(api.Message(err))
		return err
	}

	s.state.Update(func(st *SessionState) { st.AuthUser = user })
	s.logger.Info().Str("op", op).Str("user_id", user.ID).Msg("Authenticated")
	s.notifier.Success(success)
	s.connect(ctx, user)
	return nil
}

// Logout ends the server session. On failure the user stays logged in.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Logout failed")
		s.notifier.Error(api.Message(err))
		return err
	}

	s.disconnect()
	s.state.Update(func(st *SessionState) { st.AuthUser = nil })
	s.logger.Info().Msg("Logged out")
	s.notifier.Success("Logged out successfully")
	return nil
}

func (s *Session) UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) error {
	if !s.acquire(updatingProfile) {
		return ErrBusy
	}
	defer s.release(updatingProfile)

	user, err := s.api.UpdateProfile(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Profile update failed")
		s.notifier.Error(api.Message(err))
		return err
	}

	s.state.Update(func(st *SessionState) { st.AuthUser = user })
	s.notifier.Success("Profile updated successfully")
	return nil
}

// Close drops the push channel and every subscriber. The server session
// is left intact.
func (s *Session) Close() {
	s.disconnect()
	s.state.Close()
}

func signingUp(st *SessionState) *bool       { return &st.IsSigningUp }
func loggingIn(st *SessionState) *bool       { return &st.IsLoggingIn }
func updatingProfile(st *SessionState) *bool { return &st.IsUpdatingProfile }

func (s *Session) acquire(flag func(*SessionState) *bool) bool {
	return s.state.TryUpdate(func(st *SessionState) bool {
		p := flag(st)
		if *p {
			return false
		}
		*p = true
		return true
	})
}

func (s *Session) release(flag func(*SessionState) *bool) {
	s.state.Update(func(st *SessionState) { *flag(st) = false })
}

// connect opens the push channel for user unless one is already open for
// that user. A channel dialed for someone else is closed first. Dial
// failures leave the session usable without live updates.
func (s *Session) connect(ctx context.Context, user *models.User) {
	if s.dialer == nil || user == nil {
		return
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.state.Get().Channel != nil {
		if s.channelUser == user.ID {
			return
		}
		s.logger.Info().Str("user_id", s.channelUser).Msg("Closing push channel of previous user")
		s.disconnectLocked()
	}

	ch, err := s.dialer.Dial(ctx, user.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Push channel unavailable")
		return
	}

	ch.On(push.EventOnlineUsers, s.handleOnlineUsers)
	s.channelUser = user.ID
	s.state.Update(func(st *SessionState) { st.Channel = ch })
	s.logger.Info().Str("user_id", user.ID).Msg("Push channel connected")

	if d, ok := ch.(interface{ Done() <-chan struct{} }); ok {
		go s.watch(ch, d.Done())
	}
}

// watch forgets ch once the server side drops it.
func (s *Session) watch(ch push.Channel, done <-chan struct{}) {
	<-done

	s.connMu.Lock()
	defer s.connMu.Unlock()

	dropped := s.state.TryUpdate(func(st *SessionState) bool {
		if st.Channel != ch {
			return false
		}
		st.Channel = nil
		st.OnlineUsers = nil
		return true
	})
	if dropped {
		s.channelUser = ""
		s.logger.Warn().Msg("Push channel closed by server")
	}
}

func (s *Session) disconnect() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.disconnectLocked()
}

func (s *Session) disconnectLocked() {
	s.channelUser = ""

	var ch push.Channel
	s.state.Update(func(st *SessionState) {
		ch = st.Channel
		st.Channel = nil
		st.OnlineUsers = nil
	})
	if ch == nil {
		return
	}

	ch.Off(push.EventOnlineUsers)
	if err := ch.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing push channel")
	}
}

func (s *Session) handleOnlineUsers(payload json.RawMessage) {
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		s.logger.Warn().Err(err).Str("event", push.EventOnlineUsers).Msg("Malformed push payload")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.state.Update(func(st *SessionState) { st.OnlineUsers = ids })
}
