package api

import (
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"shipwars/internal/clock"
	"shipwars/internal/fanout"
	"shipwars/internal/matchmaking"
	"shipwars/internal/protocol"
	"shipwars/internal/store"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 5

	// maxFrameSize bounds incoming client frames
	maxFrameSize = 4096

	writeTimeout = 10 * time.Second
)

// SocketHandler owns the /ws endpoint: it authenticates the connection,
// loads the player's profile and cosmetics, and pumps messages between the
// websocket and the matchmaking session.
type SocketHandler struct {
	svc       *matchmaking.Service
	profiles  store.ProfileStore
	inventory store.InventoryStore
	jwtSecret string
	origins   []string

	wsLimiter *WebSocketRateLimiter
	total     atomic.Int32
	upgrader  websocket.Upgrader
}

// NewSocketHandler creates the websocket handler.
func NewSocketHandler(svc *matchmaking.Service, profiles store.ProfileStore, inventory store.InventoryStore, jwtSecret string, origins []string) *SocketHandler {
	h := &SocketHandler{
		svc:       svc,
		profiles:  profiles,
		inventory: inventory,
		jwtSecret: jwtSecret,
		origins:   origins,
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.originAllowed(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

func (h *SocketHandler) originAllowed(origin string) bool {
	if origin == "" {
		return true // non-browser clients
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleWS upgrades an authenticated connection and runs its read loop until
// the client disconnects.
func (h *SocketHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if int(h.total.Load()) >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	// Authenticate before upgrading so bad tokens get a clean 401.
	claims, err := VerifyJWT(TokenFromRequest(r), h.jwtSecret, time.Now())
	if err != nil {
		h.wsLimiter.Release(ip)
		RecordConnectionRejected("auth")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, _ := claims.UserID()

	profile, err := h.profiles.Ensure(r.Context(), userID)
	if err != nil {
		h.wsLimiter.Release(ip)
		log.Printf("⚠️ Profile load failed for %s: %v", userID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.wsLimiter.Release(ip)
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	count := int(h.total.Add(1))
	UpdateWSConnections(count)
	log.Printf("📱 Player %s connected from %s (%d total)", userID, ip, count)

	info := protocol.PlayerInfo{
		UserID:      userID,
		DisplayName: profile.DisplayName,
		ShipType:    protocol.DefaultShipType,
	}
	// Best-effort cosmetics lookup; a store outage never blocks play.
	if owned, err := h.inventory.List(r.Context(), userID); err == nil {
		for _, o := range owned {
			if o.Item.Kind == "flag_skin" && o.Equipped {
				id := o.Item.ID
				info.FlagSkinID = &id
				break
			}
		}
	}

	sess := h.svc.RegisterPlayer(userID, info)

	// Subscribe before the first send so the welcome cannot be missed. The
	// write loop is the only goroutine writing to the socket.
	sub := sess.Personal.Subscribe()
	go h.writeLoop(conn, sess, sub)
	sess.Personal.Send(protocol.Welcome{UserID: userID, ServerTime: clock.UnixMillis()})

	h.readLoop(conn, sess, ip)
	h.teardown(conn, sess, ip)
}

func (h *SocketHandler) teardown(conn *websocket.Conn, sess *matchmaking.Session, ip string) {
	h.svc.UnregisterPlayer(sess)
	conn.Close()
	h.wsLimiter.Release(ip)

	count := int(h.total.Add(-1))
	UpdateWSConnections(count)
	log.Printf("📱 Player %s disconnected (%d remaining)", sess.UserID, count)
}

// readLoop parses client frames and dispatches them through matchmaking.
// Gameplay messages are budgeted per connection; a client exceeding the
// budget gets an error instead of a disconnect.
func (h *SocketHandler) readLoop(conn *websocket.Conn, sess *matchmaking.Session, ip string) {
	limiter := NewInputLimiter()
	conn.SetReadLimit(maxFrameSize)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			log.Printf("⚠️ Binary frame from %s ignored", ip)
			continue
		}
		if !limiter.Allow() {
			RecordConnectionRejected("input_rate")
			sess.Personal.Send(protocol.ErrorMsg{
				Code:    "rate_limited",
				Message: "too many messages, slow down",
			})
			continue
		}

		msg, err := protocol.ParseClientMsg(data)
		if err != nil {
			sess.Personal.Send(protocol.ErrorMsg{
				Code:    "bad_message",
				Message: err.Error(),
			})
			continue
		}
		h.svc.Dispatch(sess, msg)
	}
}

// writeLoop drains the session's personal stream to the socket. A lagging
// connection logs and skips ahead rather than stalling the simulation.
func (h *SocketHandler) writeLoop(conn *websocket.Conn, sess *matchmaking.Session, sub *fanout.Subscription) {
	defer sub.Close()

	for {
		msg, err := sub.Recv()
		if err != nil {
			var lag *fanout.LagError
			if errors.As(err, &lag) {
				log.Printf("⚠️ Connection for %s lagged %d messages", sess.UserID, lag.Count)
				continue
			}
			// Session closed: say goodbye and drop the socket.
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			conn.Close()
			return
		}
		if err := h.writeMsg(conn, msg); err != nil {
			conn.Close()
			return
		}
	}
}

func (h *SocketHandler) writeMsg(conn *websocket.Conn, msg protocol.ServerMsg) error {
	data, err := protocol.EncodeServerMsg(msg)
	if err != nil {
		log.Printf("⚠️ Encode error for %T: %v", msg, err)
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	IncrementWSMessages()
	return nil
}
