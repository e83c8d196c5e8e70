package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"community-hub/auth"
	"community-hub/domain"
	"community-hub/hub"
	"community-hub/push"
	"community-hub/repositories"
	"community-hub/services"
	"community-hub/ws"
)

// BaseHubSuite boots the full hub in-process: real storage, real router,
// real websocket transport. Scenarios talk to it exactly as a client
// application would.
type BaseHubSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	db     *badger.DB
	secret []byte

	users  repositories.UserRepository
	groups repositories.GroupRepository

	Alice   domain.Principal
	Bob     domain.Principal
	Mallory domain.Principal
	Admin   domain.Principal
}

func (s *BaseHubSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	s.secret = []byte("e2e-suite-secret")
	log := logs.GetLoggerFromString("error")

	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	s.users = repositories.NewUserRepository(s.db)
	s.groups = repositories.NewGroupRepository(s.db)
	messages := repositories.NewMessageRepository(s.db, log)

	router := hub.NewRouter(log)
	presence := hub.NewPresence()
	notifier := push.NewDispatcher(push.NewSlogNotifier(s.users, log), log, time.Second)
	calls := hub.NewCallEngine(router, notifier, log, s.Config.RingTimeout)
	groupCalls := hub.NewGroupCallEngine(router, s.groups, notifier, log)
	chat := services.NewChatService(messages, s.users, s.groups, router, notifier, log)
	resolver := auth.NewResolver(s.secret, s.users)

	hubServer := ws.NewServer(
		resolver, presence, router, chat, calls, groupCalls, s.users,
		s.Config.BufferSize, log,
	)

	mux := http.NewServeMux()
	mux.Handle("/ws", hubServer)
	s.server = httptest.NewServer(mux)

	s.Alice = s.seedUser("Alice", domain.RoleMember)
	s.Bob = s.seedUser("Bob", domain.RoleMember)
	s.Mallory = s.seedUser("Mallory", domain.RoleMember)
	s.Admin = s.seedUser("Mod", domain.RoleAdmin)

	ctx := context.Background()
	s.Require().NoError(s.groups.PutGroup(ctx, domain.GroupInfo{
		ID:   "g-room",
		Name: "Board Room",
		Members: []domain.GroupMember{
			{UserID: s.Alice.ID}, {UserID: s.Bob.ID},
		},
	}))
	s.Require().NoError(s.groups.PutGroup(ctx, domain.GroupInfo{
		ID:       "g-open",
		Name:     "Open Lounge",
		IsPublic: true,
	}))
}

func (s *BaseHubSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *BaseHubSuite) seedUser(name string, role domain.Role) domain.Principal {
	id, err := s.users.CreateUser(context.Background(), repositories.User{
		Name:  name,
		Email: strings.ToLower(name) + "@hub.local",
		Role:  role,
	})
	s.Require().NoError(err)
	p, err := s.users.GetUser(context.Background(), id)
	s.Require().NoError(err)
	return p
}

// frame is the union of everything the server writes: acks carry an id,
// pushes carry an event name.
type frame struct {
	ID      uint64          `json:"id,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Message string          `json:"message,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// hubClient is one connected principal. A background reader splits the
// inbound stream into acks (correlated by request id) and pushes.
type hubClient struct {
	t      *testing.T
	cfg    Config
	conn   *websocket.Conn
	writes sync.Mutex

	mu     sync.Mutex
	nextID uint64
	acks   map[uint64]chan frame

	events chan frame
	done   chan struct{}
}

// Connect dials the hub as the given principal. The connection is torn
// down with the test.
func (s *BaseHubSuite) Connect(t *testing.T, p domain.Principal) *hubClient {
	t.Helper()
	token, err := auth.GenerateToken(s.secret, p.ID, string(p.Role), time.Hour)
	s.Require().NoError(err)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "dial as %s", p.Name)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &hubClient{
		t:      t,
		cfg:    s.Config,
		conn:   conn,
		acks:   make(map[uint64]chan frame),
		events: make(chan frame, 256),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(c.Close)
	return c
}

// ConnectRaw dials with an arbitrary token and returns the handshake
// response, for scenarios asserting on refused handshakes.
func (s *BaseHubSuite) ConnectRaw(token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func (c *hubClient) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
		_ = c.conn.Close()
	}
}

func (c *hubClient) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		if c.cfg.DebugJSON {
			c.t.Logf("recv: %+v", f)
		}
		if f.Event != "" {
			select {
			case c.events <- f:
			case <-c.done:
				return
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.acks[f.ID]
		delete(c.acks, f.ID)
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}

// Request sends one envelope and waits for its ack.
func (c *hubClient) Request(event string, data any) frame {
	c.t.Helper()

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan frame, 1)
	c.acks[id] = ch
	c.mu.Unlock()

	payload := map[string]any{"id": id, "event": event}
	if data != nil {
		payload["data"] = data
	}
	if c.cfg.DebugJSON {
		raw, _ := json.Marshal(payload)
		c.t.Logf("send: %s", raw)
	}

	c.writes.Lock()
	err := c.conn.WriteJSON(payload)
	c.writes.Unlock()
	if err != nil {
		c.t.Fatalf("write %s: %v", event, err)
	}

	select {
	case f := <-ch:
		return f
	case <-time.After(c.cfg.AckTimeout):
		c.t.Fatalf("no ack for %s within %v", event, c.cfg.AckTimeout)
		return frame{}
	}
}

// MustOK sends one request and fails the test unless it is acknowledged.
func (c *hubClient) MustOK(event string, data any) frame {
	c.t.Helper()
	f := c.Request(event, data)
	if !f.OK {
		c.t.Fatalf("%s refused: %q", event, f.Message)
	}
	return f
}

// WaitEvent blocks until a push with the given name arrives, discarding
// unrelated pushes on the way.
func (c *hubClient) WaitEvent(name string) frame {
	c.t.Helper()
	deadline := time.After(c.cfg.AckTimeout)
	for {
		select {
		case f := <-c.events:
			if f.Event == name {
				return f
			}
			if c.cfg.DebugJSON {
				c.t.Logf("skipping push %s while waiting for %s", f.Event, name)
			}
		case <-deadline:
			c.t.Fatalf("push %s never arrived within %v", name, c.cfg.AckTimeout)
			return frame{}
		}
	}
}

// NoEvent asserts that no push with the given name arrives within the
// quiet window.
func (c *hubClient) NoEvent(name string, quiet time.Duration) {
	c.t.Helper()
	deadline := time.After(quiet)
	for {
		select {
		case f := <-c.events:
			if f.Event == name {
				c.t.Fatalf("unexpected push %s: %s", name, f.Data)
			}
		case <-deadline:
			return
		}
	}
}

// Decode unmarshals a frame's data into out.
func (f frame) Decode(t *testing.T, out any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, out); err != nil {
		t.Fatalf("decode %s: %v", f.Event, err)
	}
}

func (f frame) String() string {
	return fmt.Sprintf("frame{id:%d ok:%t event:%q message:%q}", f.ID, f.OK, f.Event, f.Message)
}
