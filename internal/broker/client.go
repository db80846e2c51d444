// Package broker implements the streaming client and the high-level adapter
// for the cTrader Open API.
//
// The client owns one TLS WebSocket session:
//
//   - Connect performs AppAuth → GetAccounts → AccountAuth and returns the
//     authorized account id.
//   - Request correlates envelopes by clientMsgId through a pending table;
//     every request terminates exactly once: response, error, or timeout.
//   - A reader goroutine demultiplexes inbound frames to typed event
//     channels; a write mutex serializes outbound frames.
//   - A heartbeat fires every 10s while the socket is open. Heartbeat
//     absence never forces a disconnect; detection comes from socket close.
//   - On close the client reconnects with linear backoff (base × attempt,
//     max 10 attempts). Callbacks from stale sockets are ignored via a
//     connection identity check.
//
// One engine instance exclusively owns one client. Cross-engine sharing is
// not supported.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"smc-trader/internal/config"
	"smc-trader/internal/obs"
	"smc-trader/internal/wire"
	"smc-trader/pkg/types"
)

const (
	writeTimeout = 10 * time.Second

	spotBufferSize  = 256
	eventBufferSize = 64
)

// Client is the authenticated streaming session to the broker.
type Client struct {
	cfg    config.BrokerConfig
	logger *slog.Logger

	pending *pendingTable

	mu         sync.Mutex
	conn       *websocket.Conn
	connID     uint64 // identity tag; stale socket callbacks check this
	creds      types.Credentials
	accountID  int64
	closed     bool
	reconnects int

	writeMu sync.Mutex // single writer serializes outbound frames

	spotCh     chan *wire.SpotEvent
	execCh     chan *wire.ExecutionEvent
	orderErrCh chan *wire.OrderErrorEvent
	traderCh   chan *wire.TraderUpdateEvent
	authCh     chan int64
	msgCh      chan *wire.Envelope
}

// NewClient creates a broker client. Connect must be called before Request.
func NewClient(cfg config.BrokerConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		logger:     logger.With("component", "broker"),
		pending:    newPendingTable(),
		spotCh:     make(chan *wire.SpotEvent, spotBufferSize),
		execCh:     make(chan *wire.ExecutionEvent, eventBufferSize),
		orderErrCh: make(chan *wire.OrderErrorEvent, eventBufferSize),
		traderCh:   make(chan *wire.TraderUpdateEvent, eventBufferSize),
		authCh:     make(chan int64, 4),
		msgCh:      make(chan *wire.Envelope, eventBufferSize),
	}
}

// Spots returns the real-time quote stream.
func (c *Client) Spots() <-chan *wire.SpotEvent { return c.spotCh }

// Executions returns unsolicited execution events (fills, closes).
func (c *Client) Executions() <-chan *wire.ExecutionEvent { return c.execCh }

// OrderErrors returns order rejections outside the request/response flow.
func (c *Client) OrderErrors() <-chan *wire.OrderErrorEvent { return c.orderErrCh }

// TraderUpdates returns balance/equity push updates.
func (c *Client) TraderUpdates() <-chan *wire.TraderUpdateEvent { return c.traderCh }

// Authenticated fires the account id after every successful auth sequence,
// including re-auth after reconnect. Consumers re-subscribe on each event.
func (c *Client) Authenticated() <-chan int64 { return c.authCh }

// Messages returns unknown payload types as opaque envelopes.
func (c *Client) Messages() <-chan *wire.Envelope { return c.msgCh }

// AccountID returns the authorized trading account, 0 before auth.
func (c *Client) AccountID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// PendingCount returns the number of outstanding requests.
func (c *Client) PendingCount() int { return c.pending.size() }

// Reconnects returns how many reconnect cycles have completed.
func (c *Client) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// Connect dials the endpoint and runs the full auth sequence. Auth failures
// are non-retryable and returned to the caller; after a successful Connect,
// network failures are handled by the reconnect loop.
func (c *Client) Connect(ctx context.Context, creds types.Credentials) (int64, error) {
	c.mu.Lock()
	c.creds = creds
	c.closed = false
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		return 0, err
	}

	accountID, err := c.authenticate(ctx)
	if err != nil {
		c.Disconnect()
		return 0, err
	}
	return accountID, nil
}

// Disconnect cancels the heartbeat, closes the socket, fails all pending
// requests, and resets auth state. The reconnect loop stops.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.accountID = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.pending.failAll(ErrDisconnected)
}

// Request sends one envelope and waits for the correlated response.
// Fails with TimeoutError on deadline, BrokerError if the response is the
// error payload type, or ErrDisconnected if the socket closes.
func (c *Client) Request(ctx context.Context, name string, msg wire.Message, timeout time.Duration) (*wire.Envelope, error) {
	ptype, ok := wire.RequestType(name)
	if !ok {
		return nil, fmt.Errorf("unknown request type %q", name)
	}
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}

	msgID := uuid.NewString()
	env := &wire.Envelope{PayloadType: ptype, Payload: msg.Marshal(), ClientMsgID: msgID}

	ch := c.pending.add(msgID)
	if err := c.writeFrame(env.Marshal()); err != nil {
		c.pending.remove(msgID)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if wire.IsError(res.env.PayloadType) {
			var er wire.ErrorRes
			if err := er.Unmarshal(res.env.Payload); err != nil {
				return nil, fmt.Errorf("decode error response: %w", err)
			}
			return nil, &BrokerError{Code: er.ErrorCode, Description: er.Description}
		}
		return res.env, nil
	case <-timer.C:
		c.pending.remove(msgID)
		return nil, &TimeoutError{Name: name, Timeout: timeout}
	case <-ctx.Done():
		c.pending.remove(msgID)
		return nil, ctx.Err()
	}
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.Endpoint(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Endpoint(), err)
	}

	c.mu.Lock()
	c.connID++
	id := c.connID
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn, id)
	go c.heartbeatLoop(conn, id)

	c.logger.Info("websocket connected", "endpoint", c.cfg.Endpoint())
	return nil
}

// authenticate runs AppAuth → GetAccounts → AccountAuth and publishes the
// authenticated account id.
func (c *Client) authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	creds := c.creds
	c.mu.Unlock()

	_, err := c.Request(ctx, "ApplicationAuthReq", &wire.ApplicationAuthReq{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	}, 0)
	if err != nil {
		return 0, authFailure("app_auth", err)
	}

	accountID := creds.AccountID
	if accountID == 0 {
		env, err := c.Request(ctx, "GetAccountsByTokenReq", &wire.GetAccountsByTokenReq{
			AccessToken: creds.AccessToken,
		}, 0)
		if err != nil {
			return 0, authFailure("get_accounts", err)
		}
		var res wire.GetAccountsByTokenRes
		if err := res.Unmarshal(env.Payload); err != nil {
			return 0, fmt.Errorf("get_accounts: decode: %w", err)
		}
		for _, acc := range res.Accounts {
			if acc.IsLive != creds.IsDemo {
				accountID = acc.AccountID
				break
			}
		}
		if accountID == 0 && len(res.Accounts) > 0 {
			accountID = res.Accounts[0].AccountID
		}
		if accountID == 0 {
			return 0, &AuthError{Stage: "get_accounts", Err: fmt.Errorf("token reaches no accounts")}
		}
	}

	_, err = c.Request(ctx, "AccountAuthReq", &wire.AccountAuthReq{
		AccountID:   accountID,
		AccessToken: creds.AccessToken,
	}, 0)
	if err != nil {
		return 0, authFailure("account_auth", err)
	}

	c.mu.Lock()
	c.accountID = accountID
	c.mu.Unlock()

	c.logger.Info("authenticated", "account_id", accountID, "demo", creds.IsDemo)

	select {
	case c.authCh <- accountID:
	default:
	}
	return accountID, nil
}

func (c *Client) writeFrame(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// readLoop is the single reader for one socket. It exits on read error and
// hands control to the reconnect path, unless a newer socket already exists.
func (c *Client) readLoop(conn *websocket.Conn, id uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(id, err)
			return
		}

		env, perr := wire.ParseEnvelope(data)
		if perr != nil {
			c.logger.Error("bad frame", "error", perr)
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes one inbound envelope: correlated responses resolve their
// pending slot; everything else fans out to the typed event channels.
// Channel sends never hold client locks.
func (c *Client) dispatch(env *wire.Envelope) {
	if env.ClientMsgID != "" && c.pending.resolve(env.ClientMsgID, env) {
		return
	}

	switch env.PayloadType {
	case wire.PayloadHeartbeatEvent:
		// Server keepalive; nothing to do.

	case wire.PayloadSpotEvent:
		var evt wire.SpotEvent
		if err := evt.Unmarshal(env.Payload); err != nil {
			c.logger.Error("decode spot event", "error", err)
			return
		}
		select {
		case c.spotCh <- &evt:
		default:
			c.logger.Warn("spot channel full, dropping tick", "symbol_id", evt.SymbolID)
		}

	case wire.PayloadExecutionEvent:
		var evt wire.ExecutionEvent
		if err := evt.Unmarshal(env.Payload); err != nil {
			c.logger.Error("decode execution event", "error", err)
			return
		}
		select {
		case c.execCh <- &evt:
		default:
			c.logger.Warn("execution channel full, dropping event")
		}

	case wire.PayloadOrderErrorEvent:
		var evt wire.OrderErrorEvent
		if err := evt.Unmarshal(env.Payload); err != nil {
			c.logger.Error("decode order error event", "error", err)
			return
		}
		select {
		case c.orderErrCh <- &evt:
		default:
			c.logger.Warn("order error channel full, dropping event")
		}

	case wire.PayloadTraderUpdateEvent:
		var evt wire.TraderUpdateEvent
		if err := evt.Unmarshal(env.Payload); err != nil {
			c.logger.Error("decode trader update", "error", err)
			return
		}
		select {
		case c.traderCh <- &evt:
		default:
		}

	case wire.PayloadClientDisconnectEvent:
		var evt wire.ClientDisconnectEvent
		if err := evt.Unmarshal(env.Payload); err == nil {
			c.logger.Warn("server disconnect notice", "reason", evt.Reason)
		}

	case wire.PayloadErrorRes:
		var er wire.ErrorRes
		if err := er.Unmarshal(env.Payload); err == nil {
			c.logger.Error("unmatched broker error", "code", er.ErrorCode, "description", er.Description)
		}

	default:
		select {
		case c.msgCh <- env:
		default:
			c.logger.Debug("message channel full, dropping envelope", "payload_type", env.PayloadType)
		}
	}
}

// handleClose fails all pending requests and starts the reconnect loop.
// Stale sockets (id != current) are ignored so a late close callback from a
// replaced connection cannot corrupt session state.
func (c *Client) handleClose(id uint64, cause error) {
	c.mu.Lock()
	if id != c.connID {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	c.pending.failAll(ErrDisconnected)

	if closed {
		return
	}

	c.logger.Warn("websocket closed", "error", cause)
	go c.reconnectLoop()
}

// reconnectLoop redials with linear backoff: delay = base × attempt,
// stopping after the configured attempt cap or an auth failure.
func (c *Client) reconnectLoop() {
	for attempt := 1; attempt <= c.cfg.ReconnectMax; attempt++ {
		delay := time.Duration(attempt) * c.cfg.ReconnectBase
		c.logger.Info("reconnecting", "attempt", attempt, "delay", delay)
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.dial(ctx)
		if err == nil {
			_, err = c.authenticate(ctx)
		}
		cancel()

		if err == nil {
			c.mu.Lock()
			c.reconnects++
			c.mu.Unlock()
			obs.IncReconnects()
			c.logger.Info("reconnected", "attempt", attempt)
			return
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.logger.Error("reconnect auth failed, giving up", "error", err)
			c.Disconnect()
			return
		}
		c.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
	}
	c.logger.Error("reconnect attempts exhausted")
	c.Disconnect()
}

// heartbeatLoop sends a ping every HeartbeatEvery while its socket is still
// the current one. A missed heartbeat never triggers disconnect on its own.
func (c *Client) heartbeatLoop(conn *websocket.Conn, id uint64) {
	ticker := time.NewTicker(c.cfg.HeartbeatEvery)
	defer ticker.Stop()

	hb := (&wire.Envelope{PayloadType: wire.PayloadHeartbeatEvent}).Marshal()

	for range ticker.C {
		c.mu.Lock()
		current := c.connID == id && c.conn == conn
		c.mu.Unlock()
		if !current {
			return
		}
		if err := c.writeFrame(hb); err != nil {
			c.logger.Debug("heartbeat write failed", "error", err)
			return
		}
	}
}
