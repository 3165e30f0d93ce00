package devserver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// HandleWS upgrades an authenticated request. The session cookie names the
// user; a userId query parameter, when present, must agree with it.
func HandleWS(h *Hub, tokens *TokenIssuer, ws config.WebSocketConfig, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := tokens.userFromCookie(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized - Invalid Token")
			return
		}
		if q := r.URL.Query().Get("userId"); q != "" && q != userID {
			writeError(w, http.StatusForbidden, "userId does not match session")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("WebSocket upgrade error")
			return
		}

		client := &Client{
			hub:    h,
			UserID: userID,
			conn:   conn,
			send:   make(chan []byte, 256),
			ws:     ws,
		}

		if !h.Register(client) {
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()

		logger.Info().Str("user_id", userID).Msg("WebSocket connection established")
	}
}
