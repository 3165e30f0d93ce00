package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/msniranjan18/chit-chat-client/pkg/models"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
)

const minPasswordLength = 6

type AuthHandler struct {
	store  *Store
	tokens *TokenIssuer
	secure bool
	logger zerolog.Logger
}

func NewAuthHandler(store *Store, tokens *TokenIssuer, secure bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{store: store, tokens: tokens, secure: secure, logger: logger}
}

// Signup godoc
// @Summary      Create an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.AuthRequest  true  "Full name, email and password"
// @Success      201   {object}  models.User
// @Failure      400   {object}  models.ErrorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Signup: invalid request body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error().Err(err).Msg("Signup: failed to hash password")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, err := h.store.CreateUser(req.FullName, req.Email, hash)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		h.logger.Error().Err(err).Msg("Signup: failed to create user")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if !h.issue(w, user.ID) {
		return
	}

	h.logger.Info().Str("user_id", user.ID).Msg("Signup: new user created")
	writeJSON(w, http.StatusCreated, user)
}

// Login godoc
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.AuthRequest  true  "Email and password"
// @Success      200   {object}  models.User
// @Failure      400   {object}  models.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, hash, err := h.store.Credentials(req.Email)
	if err != nil {
		h.logger.Debug().Str("email", req.Email).Msg("Login: unknown email")
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		h.logger.Debug().Str("user_id", user.ID).Msg("Login: wrong password")
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	if !h.issue(w, user.ID) {
		return
	}

	h.logger.Info().Str("user_id", user.ID).Msg("Login: successful")
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) issue(w http.ResponseWriter, userID string) bool {
	token, expiresAt, err := h.tokens.Generate(userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to generate JWT")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return false
	}
	h.tokens.setCookie(w, token, expiresAt, h.secure)
	return true
}

// Logout godoc
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  models.ErrorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w)
	writeJSON(w, http.StatusOK, models.ErrorResponse{Message: "Logged out successfully"})
}

// Check godoc
// @Summary      Current session user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/check [get]
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUserByID(GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary      Change the profile picture
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ProfileUpdateRequest  true  "New picture"
// @Success      200   {object}  models.User
// @Failure      400   {object}  models.ErrorResponse
// @Router       /auth/update-profile [put]
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ProfilePic) == "" {
		writeError(w, http.StatusBadRequest, "Profile pic is required")
		return
	}

	userID := GetUserID(r.Context())
	user, err := h.store.UpdateProfilePic(userID, req.ProfilePic)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	h.logger.Info().Str("user_id", userID).Msg("UpdateProfile: successful")
	writeJSON(w, http.StatusOK, user)
}

type MessageHandler struct {
	store  *Store
	hub    *Hub
	logger zerolog.Logger
}

func NewMessageHandler(store *Store, hub *Hub, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{store: store, hub: hub, logger: logger}
}

// Users godoc
// @Summary      Users available to chat with
// @Tags         messages
// @Produce      json
// @Success      200  {array}  models.User
// @Router       /messages/users [get]
func (h *MessageHandler) Users(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.UsersExcept(GetUserID(r.Context())))
}

// History godoc
// @Summary      Messages exchanged with a peer
// @Tags         messages
// @Produce      json
// @Param        id   path      string  true  "Peer user ID"
// @Success      200  {array}   models.Message
// @Router       /messages/{id} [get]
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, h.store.Conversation(GetUserID(r.Context()), peerID))
}

// Send godoc
// @Summary      Send a message to a peer
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "Receiver user ID"
// @Param        body  body      models.MessageRequest  true  "Text and/or image"
// @Success      201   {object}  models.Message
// @Failure      400   {object}  models.ErrorResponse
// @Failure      404   {object}  models.ErrorResponse
// @Router       /messages/send/{id} [post]
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsEmpty() {
		writeError(w, http.StatusBadRequest, "Message must have text or an image")
		return
	}

	senderID := GetUserID(r.Context())
	receiverID := chi.URLParam(r, "id")

	msg, err := h.store.SaveMessage(senderID, receiverID, req.Text, req.Image)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "Receiver not found")
			return
		}
		h.logger.Error().Err(err).Msg("Send: failed to save message")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	delivered := h.hub.SendTo(receiverID, push.EventNewMessage, msg)
	h.logger.Debug().
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Int("sockets", delivered).
		Msg("Message stored")

	writeJSON(w, http.StatusCreated, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Message: message})
}
