package ws

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"community-hub/auth"
	"community-hub/contract"
	"community-hub/domain"
	"community-hub/hub"
	"community-hub/repositories"
	"community-hub/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxFrame   = 1 << 20
)

// Server upgrades authenticated clients to a persistent connection and
// runs one read loop per connection. A connection's requests are
// processed in arrival order; connections interleave freely.
type Server struct {
	upgrader websocket.Upgrader
	validate *validator.Validate

	resolver   auth.IdentityResolver
	presence   *hub.Presence
	router     contract.IRouter
	chat       services.IChatService
	calls      *hub.CallEngine
	groupCalls *hub.GroupCallEngine
	users      repositories.IUserRepository

	bufferSize int
	log        *slog.Logger
}

func NewServer(
	resolver auth.IdentityResolver,
	presence *hub.Presence,
	router contract.IRouter,
	chat services.IChatService,
	calls *hub.CallEngine,
	groupCalls *hub.GroupCallEngine,
	users repositories.IUserRepository,
	bufferSize int,
	log *slog.Logger,
) *Server {
	v := validator.New()
	// Report the wire field name, not the Go one, in validation acks.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser and app clients authenticate with a bearer token;
			// origin filtering happens at the proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		validate:   v,
		resolver:   resolver,
		presence:   presence,
		router:     router,
		chat:       chat,
		calls:      calls,
		groupCalls: groupCalls,
		users:      users,
		bufferSize: bufferSize,
		log:        log,
	}
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// ServeHTTP is the /ws endpoint. The credential is resolved before the
// upgrade; a connection that cannot authenticate never processes a
// single event.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := s.resolver.Resolve(r.Context(), bearerToken(r))
	if err != nil {
		s.log.Warn("handshake refused", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "user_id", principal.ID, "error", err)
		return
	}

	conn := &connection{
		id:        uuid.NewString(),
		principal: principal,
		socket:    socket,
		sink:      NewSink(s.bufferSize),
		server:    s,
		log:       s.log.With("user_id", principal.ID),
	}
	conn.run(r.Context())
}

type connection struct {
	id        string
	principal domain.Principal
	socket    *websocket.Conn
	sink      *Sink
	server    *Server
	log       *slog.Logger
}

// run registers the connection, seeds presence, then blocks in the read
// loop until the client goes away. Cleanup unwinds everything the
// connection touched, in the same shapes voluntary leaves produce.
func (c *connection) run(ctx context.Context) {
	s := c.server

	s.router.Register(c.id, c.sink)
	s.router.Subscribe(c.id, domain.PrincipalTopic(c.principal.ID))

	cameOnline := s.presence.OnConnect(c.principal.ID)
	if err := c.sink.Consume(ctx, contract.Event{
		Name: contract.EventPresenceState,
		Data: presenceState{OnlineUserIDs: s.presence.Snapshot()},
	}); err != nil {
		c.log.Debug("presence snapshot dropped", "error", err)
	}
	if cameOnline {
		s.router.Broadcast(ctx, c.id, contract.Event{
			Name: contract.EventPresenceUpdate,
			Data: presenceUpdate{UserID: c.principal.ID, Online: true},
		})
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	go c.writePump(pumpCtx)

	c.readLoop(ctx)

	cancel()
	_ = c.socket.Close()
	c.cleanup()
}

func (c *connection) cleanup() {
	s := c.server
	// Detached from the request context: the disconnect unwind must run
	// even though the request is already gone.
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	s.router.Unregister(c.id)
	if wentOffline := s.presence.OnDisconnect(c.principal.ID); wentOffline {
		s.router.Broadcast(ctx, c.id, contract.Event{
			Name: contract.EventPresenceUpdate,
			Data: presenceUpdate{UserID: c.principal.ID, Online: false},
		})
		// Call sessions follow the principal, not the socket: they are
		// unwound only when the last connection is gone.
		s.calls.EndAllFor(ctx, c.principal.ID)
		s.groupCalls.LeaveAllFor(ctx, c.principal.ID)
	}
	c.log.Info("disconnected", "conn_id", c.id)
}

func (c *connection) readLoop(ctx context.Context) {
	c.socket.SetReadLimit(maxFrame)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env envelope
		if err := c.socket.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}
		c.dispatch(ctx, env)
	}
}

func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.sink.out:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(frame); err != nil {
				c.log.Debug("write failed", "error", err)
				_ = c.socket.Close()
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.socket.Close()
				return
			}
		}
	}
}
