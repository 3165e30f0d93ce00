package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/pkg/api"
	"github.com/msniranjan18/chit-chat-client/pkg/logging"
	"github.com/msniranjan18/chit-chat-client/pkg/metrics"
	"github.com/msniranjan18/chit-chat-client/pkg/models"
	"github.com/msniranjan18/chit-chat-client/pkg/notify"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
)

// MessagesAPI is the part of api.Client the Conversation needs.
type MessagesAPI interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetMessages(ctx context.Context, peerID string) ([]models.Message, error)
	SendMessage(ctx context.Context, peerID string, req models.MessageRequest) (*models.Message, error)
}

// ChannelSource exposes the current push channel, nil when offline.
// *Session satisfies it.
type ChannelSource interface {
	Channel() push.Channel
}

type ConversationState struct {
	Users             []models.User
	SelectedUser      *models.User
	Messages          []models.Message
	IsUsersLoading    bool
	IsMessagesLoading bool
}

func (s ConversationState) clone() ConversationState {
	if s.Users != nil {
		s.Users = append([]models.User{}, s.Users...)
	}
	if s.Messages != nil {
		s.Messages = append([]models.Message{}, s.Messages...)
	}
	if s.SelectedUser != nil {
		u := *s.SelectedUser
		s.SelectedUser = &u
	}
	return s
}

// Conversation holds the peer roster, the selected peer and the message
// history with that peer. Messages always belong to SelectedUser.
type Conversation struct {
	api      MessagesAPI
	channels ChannelSource
	notifier notify.Notifier
	logger   zerolog.Logger
	state    *Observable[ConversationState]

	peersGen   atomic.Uint64
	historyGen atomic.Uint64

	bindMu    sync.Mutex
	bound     push.Channel
	boundPeer string
}

func NewConversation(messagesAPI MessagesAPI, channels ChannelSource, notifier notify.Notifier, logger zerolog.Logger) *Conversation {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Conversation{
		api:      messagesAPI,
		channels: channels,
		notifier: notifier,
		logger:   logging.Component(logger, "conversation"),
		state: NewCopyingObservable(ConversationState{
			Users:    []models.User{},
			Messages: []models.Message{},
		}, ConversationState.clone),
	}
}

func (c *Conversation) State() ConversationState {
	return c.state.Get()
}

func (c *Conversation) Subscribe(fn func(ConversationState)) func() {
	return c.state.Subscribe(fn)
}

// FetchPeers replaces the roster. When calls overlap only the most recently
// started one applies its result and clears IsUsersLoading.
func (c *Conversation) FetchPeers(ctx context.Context) error {
	gen := c.peersGen.Add(1)
	c.state.Update(func(st *ConversationState) { st.IsUsersLoading = true })

	users, err := c.api.ListUsers(ctx)

	applied := c.state.TryUpdate(func(st *ConversationState) bool {
		if c.peersGen.Load() != gen {
			return false
		}
		st.IsUsersLoading = false
		if err == nil {
			if users == nil {
				users = []models.User{}
			}
			st.Users = users
		}
		return true
	})
	if !applied {
		c.discarded("fetch_peers")
		return err
	}

	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load users")
		c.notifier.Error(api.Message(err))
		return err
	}
	c.logger.Debug().Int("count", len(users)).Msg("Users loaded")
	return nil
}

// FetchHistory replaces the message sequence with the history shared with
// peerID. Overlapping calls resolve like FetchPeers.
func (c *Conversation) FetchHistory(ctx context.Context, peerID string) error {
	if peerID == "" {
		return ErrNoPeerSelected
	}

	gen := c.historyGen.Add(1)
	c.state.Update(func(st *ConversationState) { st.IsMessagesLoading = true })

	messages, err := c.api.GetMessages(ctx, peerID)

	applied := c.state.TryUpdate(func(st *ConversationState) bool {
		if c.historyGen.Load() != gen {
			return false
		}
		st.IsMessagesLoading = false
		if err == nil {
			if messages == nil {
				messages = []models.Message{}
			}
			st.Messages = messages
		}
		return true
	})
	if !applied {
		c.discarded("fetch_history")
		return err
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("peer_id", peerID).Msg("Failed to load messages")
		c.notifier.Error(api.Message(err))
		return err
	}
	c.logger.Debug().Str("peer_id", peerID).Int("count", len(messages)).Msg("Messages loaded")
	return nil
}

func (c *Conversation) discarded(op string) {
	metrics.StaleResultsDiscarded.WithLabelValues(op).Inc()
	c.logger.Debug().Str("op", op).Msg("Discarding superseded result")
}

// SendMessage posts req to the selected peer and appends the stored
// message if that peer is still selected when the server answers.
func (c *Conversation) SendMessage(ctx context.Context, req models.MessageRequest) error {
	peer := c.state.Get().SelectedUser
	if peer == nil {
		return ErrNoPeerSelected
	}
	if req.IsEmpty() {
		return ErrEmptyMessage
	}

	msg, err := c.api.SendMessage(ctx, peer.ID, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("peer_id", peer.ID).Msg("Failed to send message")
		c.notifier.Error(api.Message(err))
		return err
	}

	if !c.appendFrom(peer.ID, *msg) {
		c.logger.Debug().Str("peer_id", peer.ID).Str("message_id", msg.ID).Msg("Sent message not shown, conversation changed")
	}
	return nil
}

// appendFrom appends msg if peerID is the selected peer and msg is not
// already present.
func (c *Conversation) appendFrom(peerID string, msg models.Message) bool {
	return c.state.TryUpdate(func(st *ConversationState) bool {
		if st.SelectedUser == nil || st.SelectedUser.ID != peerID {
			return false
		}
		for _, m := range st.Messages {
			if m.ID != "" && m.ID == msg.ID {
				return false
			}
		}
		next := make([]models.Message, len(st.Messages), len(st.Messages)+1)
		copy(next, st.Messages)
		st.Messages = append(next, msg)
		return true
	})
}

// BindLiveUpdates starts appending incoming messages from the selected peer.
// Any earlier binding is released first.
func (c *Conversation) BindLiveUpdates() error {
	peer := c.state.Get().SelectedUser
	if peer == nil {
		return ErrNoPeerSelected
	}
	ch := c.channels.Channel()
	if ch == nil {
		return ErrNotConnected
	}

	c.bindMu.Lock()
	defer c.bindMu.Unlock()

	c.detachLocked(ch)

	peerID := peer.ID
	ch.On(push.EventNewMessage, func(payload json.RawMessage) {
		c.handleNewMessage(peerID, payload)
	})
	c.bound = ch
	c.boundPeer = peerID

	c.logger.Debug().Str("peer_id", peerID).Msg("Live updates bound")
	return nil
}

// UnbindLiveUpdates stops live appends. It is a no-op when nothing is bound.
func (c *Conversation) UnbindLiveUpdates() {
	var current push.Channel
	if c.channels != nil {
		current = c.channels.Channel()
	}

	c.bindMu.Lock()
	defer c.bindMu.Unlock()
	c.detachLocked(current)
}

func (c *Conversation) detachLocked(current push.Channel) {
	if c.bound != nil {
		c.bound.Off(push.EventNewMessage)
		c.logger.Debug().Str("peer_id", c.boundPeer).Msg("Live updates unbound")
	}
	if current != nil && current != c.bound {
		current.Off(push.EventNewMessage)
	}
	c.bound = nil
	c.boundPeer = ""
}

func (c *Conversation) handleNewMessage(peerID string, payload json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn().Err(err).Str("event", push.EventNewMessage).Msg("Malformed push payload")
		return
	}

	if msg.SenderID != peerID || !c.appendFrom(peerID, msg) {
		metrics.LiveMessagesDropped.Inc()
		c.logger.Debug().
			Str("sender_id", msg.SenderID).
			Str("peer_id", peerID).
			Msg("Dropping live message for another conversation")
	}
}

// SelectPeer changes the selected peer and nothing else. Use
// OpenConversation to also load its history.
func (c *Conversation) SelectPeer(user *models.User) {
	var selected *models.User
	if user != nil {
		u := *user
		selected = &u
	}
	c.state.Update(func(st *ConversationState) { st.SelectedUser = selected })
}

// OpenConversation switches to user: it releases the live binding, selects
// the peer, loads history and binds live updates. Being offline is not an
// error; history still loads.
func (c *Conversation) OpenConversation(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return ErrNoPeerSelected
	}

	c.UnbindLiveUpdates()

	u := *user
	c.state.Update(func(st *ConversationState) {
		st.SelectedUser = &u
		st.Messages = []models.Message{}
	})

	fetchErr := c.FetchHistory(ctx, u.ID)

	if err := c.BindLiveUpdates(); err != nil && !errors.Is(err, ErrNotConnected) {
		return errors.Join(fetchErr, err)
	}
	return fetchErr
}

// CloseConversation unbinds, deselects and clears the history. An in-flight
// FetchHistory is discarded.
func (c *Conversation) CloseConversation() {
	c.UnbindLiveUpdates()
	c.historyGen.Add(1)
	c.state.Update(func(st *ConversationState) {
		st.SelectedUser = nil
		st.Messages = []models.Message{}
		st.IsMessagesLoading = false
	})
}

func (c *Conversation) Close() {
	c.UnbindLiveUpdates()
	c.state.Close()
}
