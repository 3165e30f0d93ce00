package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msniranjan18/chit-chat-client/pkg/models"
)

var (
	ErrEmailTaken   = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
)

type userRecord struct {
	user         models.User
	passwordHash []byte
}

// Store keeps users and messages in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*userRecord
	byEmail  map[string]string
	messages []models.Message
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]*userRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateUser(fullName, email string, passwordHash []byte) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := s.byEmail[key]; exists {
		return nil, ErrEmailTaken
	}

	now := s.now()
	rec := &userRecord{
		user: models.User{
			ID:        uuid.New().String(),
			FullName:  strings.TrimSpace(fullName),
			Email:     key,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: passwordHash,
	}
	s.users[rec.user.ID] = rec
	s.byEmail[key] = rec.user.ID

	u := rec.user
	return &u, nil
}

// Credentials returns the user and password hash registered for email.
func (s *Store) Credentials(email string) (*models.User, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	rec := s.users[id]
	u := rec.user
	return &u, rec.passwordHash, nil
}

func (s *Store) GetUserByID(userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := rec.user
	return &u, nil
}

func (s *Store) UpdateProfilePic(userID, pic string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	rec.user.ProfilePic = pic
	rec.user.UpdatedAt = s.now()
	u := rec.user
	return &u, nil
}

// UsersExcept lists every user but userID, oldest account first.
func (s *Store) UsersExcept(userID string) []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for id, rec := range s.users {
		if id != userID {
			users = append(users, rec.user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

func (s *Store) SaveMessage(senderID, receiverID, text, image string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[receiverID]; !ok {
		return nil, ErrUserNotFound
	}

	now := s.now()
	msg := models.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

// Conversation returns the messages exchanged between a and b in the order
// they were stored.
func (s *Store) Conversation(a, b string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Message{}
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out
}
