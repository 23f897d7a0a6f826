// Package rtclient is the client-side counterpart of the realtime fabric.
// It authenticates a session, joins the rooms its role implies, and turns
// pushed events into toasts, optional OS-level alerts and cache
// invalidations. Pushes are signals to refetch; the REST layer remains the
// source of truth.
package rtclient

import (
	"sync"
	"time"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/realtime"
	"github.com/gorilla/websocket"
)

// State is the per-session connection state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second

	writeWait = 10 * time.Second
)

// Config configures a bridge session.
type Config struct {
	URL    string // ws:// or wss:// endpoint
	Token  string // access token, sent as a query parameter
	UserID string
	Role   auth.Role

	Cache   *QueryCache                              // may be nil
	Alerter Alerter                                  // may be nil; disables OS alerts
	OnToast func(realtime.NotificationPayload)       // transient UI callback
	OnState func(state State, lastError string)      // optional state observer
	OnEvent func(event string, msg *realtime.Message) // optional raw hook

	// Reconnect backoff bounds; zero values use the defaults.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Client is one bridge session (one browser tab's worth of connection).
type Client struct {
	cfg Config

	mu            sync.Mutex
	state         State
	lastErr       string
	ws            *websocket.Conn
	alertsEnabled bool
	asked         bool // permission requested this session

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a bridge client. Call Start to connect.
func New(cfg Config) *Client {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = reconnectMin
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = reconnectMax
	}
	return &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start runs the connect/reconnect loop in the background.
func (c *Client) Start() {
	go c.run()
}

// Close ends the session permanently.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.ws != nil {
			c.ws.Close()
		}
		c.mu.Unlock()
	})
}

// Status reports the connection flag and the last transport error, for
// optional UI display. Transport errors never propagate as panics or
// callbacks into application code.
func (c *Client) Status() (connected bool, lastError string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSubscribed, c.lastErr
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	lastErr := c.lastErr
	c.mu.Unlock()
	if c.cfg.OnState != nil {
		c.cfg.OnState(s, lastErr)
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

// run is the reconnect loop. Any transport error returns the session to
// Disconnected and retries with exponential backoff.
func (c *Client) run() {
	backoff := c.cfg.ReconnectMin
	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connectOnce(); err != nil {
			c.setError(err)
			c.setState(StateDisconnected)

			select {
			case <-time.After(backoff):
			case <-c.done:
				return
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}
		// A completed session read loop means the server went away; retry
		// from the minimum backoff.
		backoff = c.cfg.ReconnectMin
		c.setState(StateDisconnected)
	}
}

// connectOnce dials, authenticates, joins rooms, then serves pushes until
// the connection drops.
func (c *Client) connectOnce() error {
	c.setState(StateConnecting)

	ws, _, err := websocket.DefaultDialer.Dial(c.cfg.URL+"?token="+c.cfg.Token, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	defer func() {
		ws.Close()
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
	}()

	c.setState(StateAuthenticating)
	if err := c.send(realtime.EventAuthenticate, &realtime.AuthenticatePayload{
		UserID: c.cfg.UserID,
		Role:   string(c.cfg.Role),
	}); err != nil {
		return err
	}

	// The handshake ack must come before anything else is processed.
	ack, err := c.readMessage(ws)
	if err != nil {
		return err
	}
	var authed realtime.AuthenticatedPayload
	if err := ack.DecodePayload(&authed); err != nil {
		return err
	}
	if !authed.Success {
		return &AuthError{Reason: authed.Message}
	}

	// Room-join intents matching the local role. The server enrolls
	// automatically on authentication; these are idempotent.
	if err := c.send(realtime.EventJoinUserRoom, &realtime.JoinUserRoomPayload{UserID: c.cfg.UserID}); err != nil {
		return err
	}
	if c.cfg.Role.Privileged() {
		if err := c.send(realtime.EventJoinAdminRoom, nil); err != nil {
			return err
		}
	}

	c.requestPermissionOnce()
	c.setState(StateSubscribed)

	for {
		msg, err := c.readMessage(ws)
		if err != nil {
			c.setError(err)
			return nil // drop to Disconnected and reconnect
		}
		c.handlePush(msg)
	}
}

func (c *Client) readMessage(ws *websocket.Conn) (*realtime.Message, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return realtime.DecodeMessage(data)
}

func (c *Client) send(event string, payload any) error {
	msg, err := realtime.NewMessage(event, payload)
	if err != nil {
		return err
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return &AuthError{Reason: "not connected"}
	}
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Respond replies to a requires-response notification.
func (c *Client) Respond(notificationID, response string) error {
	return c.send(realtime.EventResponse, &realtime.ResponsePayload{
		NotificationID: notificationID,
		Response:       response,
	})
}

// requestPermissionOnce asks the alerter for OS notification permission the
// first time a session subscribes. A denial disables alerts for this
// session only; the next session asks again.
func (c *Client) requestPermissionOnce() {
	if c.cfg.Alerter == nil {
		return
	}
	c.mu.Lock()
	asked := c.asked
	c.asked = true
	c.mu.Unlock()
	if asked {
		return
	}

	granted := c.cfg.Alerter.RequestPermission()
	c.mu.Lock()
	c.alertsEnabled = granted
	c.mu.Unlock()
}

// handlePush applies the three bridge effects of a push: toast, optional
// OS alert, and cache invalidation.
func (c *Client) handlePush(msg *realtime.Message) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(msg.Event, msg)
	}

	switch msg.Event {
	case realtime.EventNotification, realtime.EventAdminNotification, realtime.EventSystemNotification:
		var payload realtime.NotificationPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return
		}
		if c.cfg.OnToast != nil {
			c.cfg.OnToast(payload)
		}
		c.alert(payload)
		c.invalidate("notifications")

	case realtime.EventDashboardUpdate, realtime.EventOrderUpdate, realtime.EventInventoryUpdate:
		var sig realtime.UpdateSignal
		if err := msg.DecodePayload(&sig); err != nil || sig.Resource == "" {
			return
		}
		c.invalidate(sig.Resource)
	}
}

func (c *Client) alert(payload realtime.NotificationPayload) {
	c.mu.Lock()
	enabled := c.alertsEnabled
	c.mu.Unlock()
	if !enabled || c.cfg.Alerter == nil {
		return
	}
	// Alert failures degrade to toast-only, silently.
	_ = c.cfg.Alerter.Alert(payload.Title, payload.Message)
}

func (c *Client) invalidate(resource string) {
	if c.cfg.Cache == nil {
		return
	}
	c.cfg.Cache.InvalidatePrefix(resource)
}

// AuthError is a handshake rejection.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Reason
}
