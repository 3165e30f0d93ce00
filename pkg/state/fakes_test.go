package state

import (
	"context"
	"sync"

	"github.com/msniranjan18/chit-chat-client/pkg/models"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
)

type fakeAuth struct {
	checkAuth     func(ctx context.Context) (*models.User, error)
	signup        func(ctx context.Context, req models.AuthRequest) (*models.User, error)
	login         func(ctx context.Context, req models.AuthRequest) (*models.User, error)
	logout        func(ctx context.Context) error
	updateProfile func(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error)
}

func (f *fakeAuth) CheckAuth(ctx context.Context) (*models.User, error) {
	return f.checkAuth(ctx)
}

func (f *fakeAuth) Signup(ctx context.Context, req models.AuthRequest) (*models.User, error) {
	return f.signup(ctx, req)
}

func (f *fakeAuth) Login(ctx context.Context, req models.AuthRequest) (*models.User, error) {
	return f.login(ctx, req)
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	return f.logout(ctx)
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error) {
	return f.updateProfile(ctx, req)
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	userIDs []string
	last    *push.Emitter
}

func (d *fakeDialer) Dial(_ context.Context, userID string) (push.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userIDs = append(d.userIDs, userID)
	if d.err != nil {
		return nil, d.err
	}
	d.last = push.NewEmitter()
	return d.last, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.userIDs)
}

type staticChannel struct {
	mu sync.Mutex
	ch push.Channel
}

func (s *staticChannel) Channel() push.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *staticChannel) set(ch push.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = ch
}

type sendCall struct {
	peerID string
	req    models.MessageRequest
}

// fakeMessages serves canned data. A gate registered for a peer blocks
// GetMessages for that peer until the gate is closed. Roster gates block
// ListUsers calls in the order they arrive.
type fakeMessages struct {
	mu         sync.Mutex
	users      []models.User
	usersErr   error
	history    map[string][]models.Message
	historyErr error
	gates      map[string]chan struct{}
	started    chan string
	sendErr    error
	sends      []sendCall
	listCalls  int

	listGates   []chan struct{}
	listStarted chan int
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		history:     make(map[string][]models.Message),
		gates:       make(map[string]chan struct{}),
		started:     make(chan string, 16),
		listStarted: make(chan int, 16),
	}
}

// gateRoster blocks the next ListUsers call until the returned channel is
// closed.
func (f *fakeMessages) gateRoster() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.listGates = append(f.listGates, g)
	return g
}

func (f *fakeMessages) gate(peerID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[peerID] = g
	return g
}

func (f *fakeMessages) ListUsers(context.Context) ([]models.User, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	users, err := f.users, f.usersErr
	var g chan struct{}
	if len(f.listGates) > 0 {
		g = f.listGates[0]
		f.listGates = f.listGates[1:]
	}
	f.mu.Unlock()

	select {
	case f.listStarted <- call:
	default:
	}
	if g != nil {
		<-g
	}
	return users, err
}

func (f *fakeMessages) GetMessages(_ context.Context, peerID string) ([]models.Message, error) {
	f.mu.Lock()
	g := f.gates[peerID]
	msgs, err := f.history[peerID], f.historyErr
	f.mu.Unlock()

	f.started <- peerID
	if g != nil {
		<-g
	}
	return msgs, err
}

func (f *fakeMessages) SendMessage(_ context.Context, peerID string, req models.MessageRequest) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{peerID: peerID, req: req})
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{
		ID:         "sent-" + peerID,
		SenderID:   "me",
		ReceiverID: peerID,
		Text:       req.Text,
		Image:      req.Image,
	}, nil
}

func (f *fakeMessages) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}
