package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle-server/internal/proto"
)

const (
	// DefaultHistoryLimit is the bootstrap window fetched after every (re)connect.
	DefaultHistoryLimit = 50

	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 10 * time.Second
	welcomeTimeout      = 5 * time.Second
)

// ErrNoIdentity is returned by Send before SetIdentity (or Options.Identity) provided a name.
var ErrNoIdentity = errors.New("client: identity not set")

// State is the position of the client in its sync state machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateBootstrapping
	StateLive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateBootstrapping:
		return "bootstrapping"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Options configures a Client. Only BaseURL is required.
type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL      string
	Identity     string
	HistoryLimit int

	ReconnectMin time.Duration
	ReconnectMax time.Duration

	HTTPClient *http.Client
	Logger     *zerolog.Logger

	// Callbacks run on the client's reader goroutine (or the caller of Send for
	// fallback deliveries) and must not block.
	OnStateChange func(State)
	OnMessage     func(proto.EventMessage)
	OnPresence    func(event string, presence proto.EventPresence)
	OnServerError func(proto.Error)
}

// Client keeps a local, de-duplicated view of the room and follows the
// Disconnected -> Connecting -> Bootstrapping -> Live cycle, falling back to
// the HTTP endpoint for sends while the live channel is down.
type Client struct {
	opts  Options
	wsURL string
	http  *http.Client
	log   *zerolog.Logger

	mu       sync.Mutex
	state    State
	identity string
	conn     *websocket.Conn
	messages []proto.EventMessage
	seen     map[int64]struct{}
	online   []string
	pending  []proto.EventMessage
	// welcome is closed by the reader when the server greets the current connection.
	welcome chan struct{}
}

// New validates the options and returns an idle client. Call Run to connect.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	var wsURL string
	switch {
	case strings.HasPrefix(base, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	case strings.HasPrefix(base, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	default:
		return nil, fmt.Errorf("client: base url must be http(s), got %q", opts.BaseURL)
	}
	opts.BaseURL = base

	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = defaultReconnectMin
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = max(defaultReconnectMax, opts.ReconnectMin)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Client{
		opts:     opts,
		wsURL:    wsURL,
		http:     httpClient,
		log:      logger,
		identity: strings.TrimSpace(opts.Identity),
		seen:     make(map[int64]struct{}),
	}, nil
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the display name the client binds on every connect.
func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Messages returns a copy of the local view, ordered by sequence number.
func (c *Client) Messages() []proto.EventMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]proto.EventMessage(nil), c.messages...)
}

// Online returns the last online list pushed by the server.
func (c *Client) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.online...)
}

// Run connects and keeps reconnecting until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	delay := c.opts.ReconnectMin
	for {
		reachedLive, err := c.session(ctx)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if reachedLive {
			delay = c.opts.ReconnectMin
		}
		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("live channel lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, c.opts.ReconnectMax)
	}
}

// session runs one connection from dial to transport close.
func (c *Client) session(ctx context.Context) (bool, error) {
	c.setState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, c.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	welcomed := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.pending = c.pending[:0]
	c.welcome = welcomed
	identity := c.identity
	c.mu.Unlock()
	defer c.detach(conn)

	// Live events are buffered from here until history is merged.
	c.setState(StateBootstrapping)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(ctx, conn)
	}()

	if identity != "" {
		if err := c.write(ctx, conn, proto.InboundTypeSetIdentity, proto.SetIdentityData{Identity: identity}); err != nil {
			return false, fmt.Errorf("bind identity: %w", err)
		}
	}

	// The welcome marks the connection as registered for broadcasts.
	select {
	case <-welcomed:
	case err := <-readErr:
		return false, fmt.Errorf("awaiting welcome: %w", err)
	case <-time.After(welcomeTimeout):
		return false, errors.New("no welcome from server")
	case <-ctx.Done():
		return false, ctx.Err()
	}

	history, err := c.FetchHistory(ctx)
	if err != nil {
		return false, fmt.Errorf("bootstrap history: %w", err)
	}
	c.goLive(history)

	select {
	case err := <-readErr:
		return true, err
	case <-ctx.Done():
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return true, ctx.Err()
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.pending = nil
	c.welcome = nil
	c.mu.Unlock()
}

// goLive merges the history window, then the buffered live events in arrival order.
func (c *Client) goLive(history []proto.EventMessage) {
	c.mu.Lock()
	applied := c.mergeLocked(history)
	applied = append(applied, c.mergeLocked(c.pending)...)
	c.pending = nil
	c.state = StateLive
	c.mu.Unlock()

	c.log.Debug().Int("history", len(history)).Int("applied", len(applied)).Msg("client live")
	c.notifyMessages(applied)
	c.notifyState(StateLive)
}

// mergeLocked applies messages idempotently by sequence number and returns the new ones.
func (c *Client) mergeLocked(msgs []proto.EventMessage) []proto.EventMessage {
	var applied []proto.EventMessage
	for _, msg := range msgs {
		if _, dup := c.seen[msg.ID]; dup {
			continue
		}
		c.seen[msg.ID] = struct{}{}

		n := len(c.messages)
		if n == 0 || c.messages[n-1].ID < msg.ID {
			c.messages = append(c.messages, msg)
		} else {
			i := sort.Search(n, func(i int) bool { return c.messages[i].ID > msg.ID })
			c.messages = append(c.messages, proto.EventMessage{})
			copy(c.messages[i+1:], c.messages[i:])
			c.messages[i] = msg
		}
		applied = append(applied, msg)
	}
	return applied
}

// applyLive handles a pushed message: buffered while bootstrapping, merged otherwise.
func (c *Client) applyLive(msg proto.EventMessage) {
	c.mu.Lock()
	if c.state == StateBootstrapping {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}
	applied := c.mergeLocked([]proto.EventMessage{msg})
	c.mu.Unlock()

	c.notifyMessages(applied)
}

func (c *Client) markWelcomed() {
	c.mu.Lock()
	if c.welcome != nil {
		close(c.welcome)
		c.welcome = nil
	}
	c.mu.Unlock()
}

func (c *Client) setOnline(online []string) {
	c.mu.Lock()
	c.online = append([]string(nil), online...)
	c.mu.Unlock()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.notifyState(s)
	}
}

func (c *Client) notifyState(s State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

func (c *Client) notifyMessages(msgs []proto.EventMessage) {
	if c.opts.OnMessage == nil {
		return
	}
	for _, msg := range msgs {
		c.opts.OnMessage(msg)
	}
}

// SetIdentity changes the display name. It is sent immediately when a live
// connection exists and re-sent on every reconnect.
func (c *Client) SetIdentity(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrNoIdentity
	}

	c.mu.Lock()
	c.identity = identity
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(ctx, conn, proto.InboundTypeSetIdentity, proto.SetIdentityData{Identity: identity})
}

// Send submits a chat message. While live it is pushed on the websocket and the
// server's broadcast brings it back; otherwise it is posted to the fallback
// endpoint and the stored message is merged into the local view.
func (c *Client) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	identity := c.identity
	conn := c.conn
	live := c.state == StateLive
	c.mu.Unlock()

	if identity == "" {
		return ErrNoIdentity
	}

	if live && conn != nil {
		err := c.write(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{Message: text, Identity: identity})
		if err == nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("live send failed, falling back to http")
	}

	msg, err := c.Post(ctx, identity, text)
	if err != nil {
		return err
	}

	c.mu.Lock()
	applied := c.mergeLocked([]proto.EventMessage{msg})
	c.mu.Unlock()
	c.notifyMessages(applied)
	return nil
}
