package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"school-chat/internal/auth"
	myMiddleware "school-chat/internal/middleware"
	"school-chat/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (dev mode)
	},
}

// TokenValidator is what we need from the auth service to admit a
// connection.
type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (auth.Identity, error)
}

// UnreadCounter is the slice of the message store the REST presence
// endpoint needs.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type Handler struct {
	dispatcher *Dispatcher
	store      MessageStore
	directory  Directory
	validator  TokenValidator
	unread     UnreadCounter
}

func NewHandler(dispatcher *Dispatcher, store MessageStore, directory Directory, validator TokenValidator, unread UnreadCounter) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		store:      store,
		directory:  directory,
		validator:  validator,
		unread:     unread,
	}
}

// ServeChat handles GET /ws/chat. The bearer credential travels as a query
// parameter because browser clients cannot set headers on the websocket
// handshake. An invalid credential closes the socket with a policy
// violation before any shared state is touched.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	identity, err := h.validator.Validate(r.Context(), token)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid authentication token"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	client := newClient(conn, identity.UserID, identity.FullName, identity.InstitutionID)
	newSession(client, h.dispatcher, h.store, h.directory).run(r.Context())
}

// OnlineUsers handles GET /api/presence/online: the caller's institution
// room as JSON, same shape as the online_users frame, plus the caller's
// unread backlog.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	users := h.dispatcher.OnlineUsers(identity.InstitutionID)
	unread, err := h.unread.UnreadCount(r.Context(), identity.UserID)
	if err != nil {
		log.Printf("unread count for %s failed: %v", identity.UserID, err)
		unread = 0
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users":        users,
		"count":        len(users),
		"unread_count": unread,
	})
}
