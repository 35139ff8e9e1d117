// Package gateway owns the websocket endpoint: upgrade checks, implicit
// registration from query parameters, and the per-connection read loop.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linguacast/linguacast/pkg/relay/config"
	"github.com/linguacast/linguacast/pkg/relay/dispatch"
	"github.com/linguacast/linguacast/pkg/relay/drain"
	"github.com/linguacast/linguacast/pkg/relay/handlers"
	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/sessions"
)

// Handler serves /ws. Each accepted connection gets a registry entry, a
// writer pump, and a read loop that feeds the dispatcher until the socket
// dies or the server drains.
type Handler struct {
	Config     config.Config
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Sessions   *sessions.Lifecycle
	Drain      *drain.State
	Logger     *slog.Logger
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if h.Drain.IsDraining() {
		w.Header().Set("Retry-After", "10")
		handlers.WriteError(w, http.StatusServiceUnavailable, "draining", "server is draining")
		return
	}
	if !h.originAllowed(r) {
		handlers.WriteError(w, http.StatusForbidden, "origin_forbidden", "origin is not allowed")
		return
	}

	q := r.URL.Query()
	role := strings.TrimSpace(q.Get("role"))
	language := strings.TrimSpace(q.Get("language"))
	session := strings.TrimSpace(q.Get("session"))
	if role != "" && role != protocol.RoleSpeaker && role != protocol.RoleListener {
		handlers.WriteError(w, http.StatusBadRequest, "bad_request", "unsupported role")
		return
	}
	// Ended session codes stay blocked for new speakers until their
	// cooldown expires, so a late listener cannot end up in a stranger's
	// reused room.
	if role == protocol.RoleSpeaker && session != "" && !h.Sessions.CanClaim(session) {
		handlers.WriteError(w, http.StatusConflict, "session_cooldown", "session code was recently in use")
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.HandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := registry.NewClient("c_"+randHex(8), conn, registry.ClientConfig{
		SendQueueSize: h.Config.SendQueueSize,
		WriteTimeout:  h.Config.WriteTimeout,
	})
	if role != "" {
		client.SetRole(role)
	}
	if language != "" {
		client.SetLanguage(language)
	}
	if session != "" {
		h.Registry.AdoptSession(client, session)
	}
	h.Registry.Add(client)
	h.Sessions.Touch(client.Session())

	go func() { _ = client.WritePump() }()

	h.Logger.Debug("client connected",
		"client", client.ID(), "session", client.Session(), "role", role, "language", language)

	// Query parameters act as an implicit register, so they get the same
	// acknowledgement a register frame would.
	if role != "" || language != "" || session != "" {
		_ = client.SendJSON(protocol.NewRegisterAck(protocol.RegisterData{
			Role:         client.Role(),
			LanguageCode: client.Language(),
			Settings:     client.Settings(),
		}))
	}

	h.readLoop(r.Context(), conn, client)

	h.Registry.Remove(client.ID())
	client.Close()
	h.Logger.Debug("client disconnected", "client", client.ID(), "session", client.Session())
}

// readLoop pulls frames until the socket errors. Liveness is the heartbeat
// monitor's job; an evicted or drained client is closed, which fails the
// pending read and ends the loop.
func (h Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *registry.Client) {
	if h.Config.ReadLimit > 0 {
		conn.SetReadLimit(h.Config.ReadLimit)
	}
	conn.SetPongHandler(func(appData string) error {
		client.MarkPong(registry.PingRTT(appData))
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.Logger.Debug("read loop ended", "client", client.ID(), "err", err)
			}
			return
		}
		h.Sessions.Touch(client.Session())
		switch messageType {
		case websocket.TextMessage:
			h.Dispatcher.Dispatch(ctx, client, data)
		case websocket.BinaryMessage:
			h.Dispatcher.DispatchBinary(ctx, client, data)
		}
	}
}

func (h Handler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.AllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.AllowedOrigins[origin]
	return ok
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
