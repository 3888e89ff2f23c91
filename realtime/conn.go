// Package realtime keeps a websocket connection authenticated with the
// session's current access token. The connection is redialled whenever the
// tokens change and closed when the session is cleared.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/osonify-auth/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	messageBuffer           = 16
)

type Option func(*Conn)

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Conn) {
		c.dialer = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// Message is a frame read from the current connection.
type Message struct {
	Type int
	Data []byte
}

type Conn struct {
	url    string
	dialer *websocket.Dialer
	logger zerolog.Logger

	lock    sync.Mutex
	conn    *websocket.Conn
	token   string
	closed  bool
	done    chan struct{}
	message chan Message
}

// New returns an unconnected Conn for the ws:// or wss:// url.
func New(url string, opts ...Option) *Conn {
	c := &Conn{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
		logger:  log.Logger,
		done:    make(chan struct{}),
		message: make(chan Message, messageBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages delivers frames from whichever connection is current.
func (c *Conn) Messages() <-chan Message {
	return c.message
}

// Token returns the access token the current connection was opened with.
func (c *Conn) Token() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.token
}

func (c *Conn) Connected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn != nil
}

// Attach follows m: it connects now if m is authenticated, redials on
// every token update and disconnects when m is cleared. Redials run on their
// own goroutine so session listeners never wait on a handshake; updates that
// arrive while a dial is in progress collapse into one redial with the
// latest token.
func (c *Conn) Attach(ctx context.Context, m *session.Manager) (detach func()) {
	if snap := m.Snapshot(); snap.IsAuthenticated && snap.Tokens != nil {
		if err := c.Connect(ctx, snap.Tokens.AccessToken); err != nil {
			c.logger.Err(err).Msg("[Conn Attach] connect")
		}
	}

	var (
		wantLock sync.Mutex
		want     string
	)
	wake := make(chan struct{}, 1)
	stop := make(chan struct{})
	finished := make(chan struct{})
	signal := func(access string) {
		wantLock.Lock()
		want = access
		wantLock.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	go func() {
		defer close(finished)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-wake:
			}
			wantLock.Lock()
			access := want
			wantLock.Unlock()
			if access == "" {
				c.Disconnect()
				continue
			}
			if access == c.Token() {
				continue
			}
			if err := c.Connect(ctx, access); err != nil {
				c.logger.Err(err).Msg("[Conn Attach] reconnect")
			}
		}
	}()

	unsubscribe := m.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.TokensUpdated:
			if ev.New == nil {
				return
			}
			signal(ev.New.AccessToken)
		case session.Cleared:
			signal("")
			c.Disconnect()
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			close(stop)
			<-finished
		})
	}
}

// Connect replaces the current connection with one authenticated by
// accessToken.
func (c *Conn) Connect(ctx context.Context, accessToken string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("[Conn Connect] dial %s: %w", c.url, err)
	}

	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		_ = conn.Close()
		return websocket.ErrCloseSent
	}
	previous := c.conn
	c.conn = conn
	c.token = accessToken
	c.lock.Unlock()

	closeGracefully(previous)
	go c.read(conn)
	c.logger.Debug().Str("url", c.url).Msg("websocket connected")
	return nil
}

// WriteJSON sends v on the current connection.
func (c *Conn) WriteJSON(v any) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(v)
}

// Disconnect closes the current connection; a later Connect may reopen it.
func (c *Conn) Disconnect() {
	c.lock.Lock()
	previous := c.conn
	c.conn = nil
	c.token = ""
	c.lock.Unlock()
	closeGracefully(previous)
}

// Close disconnects permanently.
func (c *Conn) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.lock.Unlock()
	c.Disconnect()
	return nil
}

func (c *Conn) read(conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.isCurrent(conn) {
				c.logger.Err(err).Msg("[Conn read] websocket closed")
			}
			return
		}
		if !c.isCurrent(conn) {
			return
		}
		select {
		case c.message <- Message{Type: kind, Data: data}:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) isCurrent(conn *websocket.Conn) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn == conn
}

func closeGracefully(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
