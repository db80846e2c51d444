package broker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"smc-trader/internal/config"
	"smc-trader/internal/wire"
	"smc-trader/pkg/types"
)

// wsBroker is an in-process broker endpoint speaking the envelope
// protocol. Each connection is numbered by dial order so tests can script
// per-connection behavior: mutedDial swallows auth requests (the client
// times out), rejectDial answers app auth with a credential error.
type wsBroker struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	dials      atomic.Int64
	mutedDial  atomic.Int64
	rejectDial atomic.Int64

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []uint32
}

func newWSBroker(t *testing.T) *wsBroker {
	t.Helper()
	b := &wsBroker{}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(func() {
		b.closeAll()
		b.srv.Close()
	})
	return b
}

func (b *wsBroker) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *wsBroker) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	dial := b.dials.Add(1)
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, perr := wire.ParseEnvelope(data)
		if perr != nil || env.PayloadType == wire.PayloadHeartbeatEvent {
			continue
		}
		b.mu.Lock()
		b.received = append(b.received, env.PayloadType)
		b.mu.Unlock()

		if b.mutedDial.Load() == dial {
			continue
		}
		if res := b.respond(env, b.rejectDial.Load() == dial); res != nil {
			conn.WriteMessage(websocket.BinaryMessage, res.Marshal())
		}
	}
}

func (b *wsBroker) respond(env *wire.Envelope, reject bool) *wire.Envelope {
	switch env.PayloadType {
	case wire.PayloadApplicationAuthReq:
		if reject {
			er := &wire.ErrorRes{ErrorCode: "CH_CLIENT_AUTH_FAILURE", Description: "invalid client secret"}
			return &wire.Envelope{PayloadType: wire.PayloadErrorRes, Payload: er.Marshal(), ClientMsgID: env.ClientMsgID}
		}
		return &wire.Envelope{PayloadType: wire.PayloadApplicationAuthRes, ClientMsgID: env.ClientMsgID}

	case wire.PayloadGetAccountsByTokenReq:
		res := &wire.GetAccountsByTokenRes{Accounts: []wire.CtidTraderAccount{
			{AccountID: 99999, IsLive: true},
			{AccountID: 12345, IsLive: false},
		}}
		return &wire.Envelope{PayloadType: wire.PayloadGetAccountsByTokenRes, Payload: res.Marshal(), ClientMsgID: env.ClientMsgID}

	case wire.PayloadAccountAuthReq:
		res := &wire.AccountAuthRes{AccountID: 12345}
		return &wire.Envelope{PayloadType: wire.PayloadAccountAuthRes, Payload: res.Marshal(), ClientMsgID: env.ClientMsgID}
	}
	return nil
}

func (b *wsBroker) requestsSeen() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint32(nil), b.received...)
}

func (b *wsBroker) closeConn(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= len(b.conns) {
		b.conns[n-1].Close()
	}
}

func (b *wsBroker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
}

func testClientConfig(endpoint string) config.BrokerConfig {
	return config.BrokerConfig{
		Demo:           true,
		DemoEndpoint:   endpoint,
		RequestTimeout: 2 * time.Second,
		HeartbeatEvery: time.Minute,
		ReconnectBase:  10 * time.Millisecond,
		ReconnectMax:   5,
	}
}

func testCreds() types.Credentials {
	return types.Credentials{
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		AccessToken:  "tok",
		IsDemo:       true,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestConnectRunsAuthSequence(t *testing.T) {
	t.Parallel()
	b := newWSBroker(t)
	c := NewClient(testClientConfig(b.url()), testLogger())
	defer c.Disconnect()

	id, err := c.Connect(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	// The token reaches a live and a demo account; demo credentials must
	// select the demo one.
	if id != 12345 {
		t.Errorf("account id = %d, want 12345 (demo)", id)
	}
	if got := c.AccountID(); got != 12345 {
		t.Errorf("AccountID() = %d, want 12345", got)
	}

	want := []uint32{
		wire.PayloadApplicationAuthReq,
		wire.PayloadGetAccountsByTokenReq,
		wire.PayloadAccountAuthReq,
	}
	got := b.requestsSeen()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request[%d] = %d, want %d (full order %v)", i, got[i], want[i], got)
		}
	}

	select {
	case authID := <-c.Authenticated():
		if authID != 12345 {
			t.Errorf("authenticated event = %d, want 12345", authID)
		}
	default:
		t.Error("no authenticated event published")
	}
}

func TestConnectSkipsAccountLookupWithExplicitID(t *testing.T) {
	t.Parallel()
	b := newWSBroker(t)
	c := NewClient(testClientConfig(b.url()), testLogger())
	defer c.Disconnect()

	creds := testCreds()
	creds.AccountID = 12345
	if _, err := c.Connect(context.Background(), creds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	for _, ptype := range b.requestsSeen() {
		if ptype == wire.PayloadGetAccountsByTokenReq {
			t.Error("account lookup issued despite configured account id")
		}
	}
}

func TestAuthFailureClassification(t *testing.T) {
	t.Parallel()
	var ae *AuthError

	// Credential rejections are terminal.
	err := authFailure("app_auth", &BrokerError{Code: "CH_CLIENT_AUTH_FAILURE"})
	if !errors.As(err, &ae) {
		t.Errorf("broker credential rejection not classified as auth failure: %v", err)
	}

	// Transport failures stay retryable.
	err = authFailure("app_auth", &TimeoutError{Name: "ApplicationAuthReq", Timeout: time.Second})
	if errors.As(err, &ae) {
		t.Errorf("timeout classified as auth failure: %v", err)
	}
	err = authFailure("account_auth", ErrDisconnected)
	if errors.As(err, &ae) {
		t.Errorf("disconnect classified as auth failure: %v", err)
	}
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("wrapped disconnect lost its identity: %v", err)
	}

	// Non-auth broker errors retry too.
	err = authFailure("get_accounts", &BrokerError{Code: "SERVER_IS_UNDER_MAINTENANCE"})
	if errors.As(err, &ae) {
		t.Errorf("maintenance rejection classified as auth failure: %v", err)
	}
}

func TestReconnectRetriesThroughTransientAuthTimeout(t *testing.T) {
	t.Parallel()
	b := newWSBroker(t)

	cfg := testClientConfig(b.url())
	cfg.RequestTimeout = 100 * time.Millisecond
	c := NewClient(cfg, testLogger())
	defer c.Disconnect()

	if _, err := c.Connect(context.Background(), testCreds()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	// The second connection swallows auth requests, so the first reconnect
	// attempt times out mid-auth. That is a transport failure: the client
	// must keep dialling and complete auth on the third connection.
	b.mutedDial.Store(2)
	b.closeConn(1)

	if !waitFor(t, 3*time.Second, func() bool { return c.Reconnects() == 1 }) {
		t.Fatalf("reconnect never completed: dials = %d", b.dials.Load())
	}
	if got := b.dials.Load(); got < 3 {
		t.Errorf("dials = %d, want at least 3 (initial + timed-out + successful)", got)
	}
	if got := c.AccountID(); got != 12345 {
		t.Errorf("AccountID() = %d, want 12345 after re-auth", got)
	}
}

func TestReconnectStopsOnCredentialRejection(t *testing.T) {
	t.Parallel()
	b := newWSBroker(t)

	c := NewClient(testClientConfig(b.url()), testLogger())
	defer c.Disconnect()

	if _, err := c.Connect(context.Background(), testCreds()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	// The second connection rejects the app credentials outright. The
	// reconnect loop must give up instead of hammering the broker.
	b.rejectDial.Store(2)
	b.closeConn(1)

	if !waitFor(t, 3*time.Second, func() bool { return b.dials.Load() == 2 && c.AccountID() == 0 }) {
		t.Fatalf("client did not stop after credential rejection: dials = %d", b.dials.Load())
	}
	time.Sleep(100 * time.Millisecond)
	if got := b.dials.Load(); got != 2 {
		t.Errorf("dials = %d, want exactly 2 (no retries after rejection)", got)
	}
	if c.Reconnects() != 0 {
		t.Errorf("reconnects = %d, want 0", c.Reconnects())
	}
}
