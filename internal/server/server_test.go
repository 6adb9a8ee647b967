package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/adcondev/brother-daemon/internal/auth"
	"github.com/adcondev/brother-daemon/internal/brother"
)

// scriptedInvoker answers each capability from a table; unknown actions succeed with nil.
type scriptedInvoker struct {
	mu      sync.Mutex
	actions []string
	args    [][]any
	results map[string]any
	errors  map[string]any
}

func (f *scriptedInvoker) Invoke(onSuccess brother.SuccessFunc, onFailure brother.FailureFunc, _ string, action string, args []any) {
	f.mu.Lock()
	f.actions = append(f.actions, action)
	f.args = append(f.args, args)
	f.mu.Unlock()

	go func() {
		if payload, ok := f.errors[action]; ok {
			onFailure(payload)
			return
		}
		onSuccess(f.results[action])
	}()
}

func (f *scriptedInvoker) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

type fakeBridge struct{}

func (fakeBridge) Connected() bool { return true }
func (fakeBridge) Pending() int    { return 2 }

func startServer(t *testing.T, cfg Config, inv brother.Invoker, authMgr *auth.Manager) (*Server, string) {
	t.Helper()
	srv := NewServer(cfg, brother.NewClient(inv), fakeBridge{}, authMgr)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	t.Cleanup(func() {
		srv.Shutdown()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	welcome := read(t, conn)
	require.Equal(t, "info", welcome.Tipo)
	return conn
}

// wireResponse mirrors Response with raw fields for decoding in tests.
type wireResponse struct {
	Tipo    string          `json:"tipo"`
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Mensaje string          `json:"mensaje"`
	Datos   json.RawMessage `json:"datos"`
	Error   *ErrorDetail    `json:"error"`
	Bridge  *BridgeInfo     `json:"bridge"`
	Clients int             `json:"clients"`
}

func read(t *testing.T, conn *websocket.Conn) wireResponse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp wireResponse
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	return resp
}

func send(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

func TestWebSocketOrigin(t *testing.T) {
	t.Run("Restricted Origin", func(t *testing.T) {
		cfg := Config{AllowedOrigins: []string{"http://good.com"}}
		_, u := startServer(t, cfg, &scriptedInvoker{}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		opts := &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{"http://good.com"}},
		}
		conn, resp, err := websocket.Dial(ctx, u, opts)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			t.Fatalf("Connection from good.com failed: %v", err)
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")

		optsBad := &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{"http://evil.com"}},
		}
		_, respBad, err := websocket.Dial(ctx, u, optsBad)
		if respBad != nil && respBad.Body != nil {
			_ = respBad.Body.Close()
		}
		if err == nil {
			t.Fatalf("Connection from evil.com succeeded (should fail)")
		}
	})

	t.Run("Same Origin Enforcement", func(t *testing.T) {
		_, u := startServer(t, Config{}, &scriptedInvoker{}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, resp, err := websocket.Dial(ctx, u, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			t.Fatalf("Connection from same origin failed: %v", err)
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")

		optsBad := &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{"http://external-site.com"}},
		}
		_, respBad, err := websocket.Dial(ctx, u, optsBad)
		if respBad != nil && respBad.Body != nil {
			_ = respBad.Body.Close()
		}
		if err == nil {
			t.Fatalf("Connection from external-site.com succeeded (should fail)")
		}
	})
}

func TestServer_FindPrintersResult(t *testing.T) {
	inv := &scriptedInvoker{results: map[string]any{
		"findPrinters": []any{
			map[string]any{"modelName": "QL-820NWB"},
			map[string]any{"modelName": "PJ-763MFi"},
		},
	}}
	_, u := startServer(t, Config{}, inv, nil)
	conn := dial(t, u)

	send(t, conn, Message{Tipo: "findPrinters", ID: "job-1"})

	ack := read(t, conn)
	assert.Equal(t, "ack", ack.Tipo)
	assert.Equal(t, "job-1", ack.ID)

	res := read(t, conn)
	assert.Equal(t, "result", res.Tipo)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "job-1", res.ID)
	assert.JSONEq(t, `[{"modelName":"QL-820NWB"},{"modelName":"PJ-763MFi"}]`, string(res.Datos))

	assert.Equal(t, []string{"findPrinters"}, inv.Actions())
}

func TestServer_SetPrinterNativeError(t *testing.T) {
	inv := &scriptedInvoker{errors: map[string]any{
		"setPrinter": map[string]any{"message": "Bluetooth off", "code": 7},
	}}
	_, u := startServer(t, Config{}, inv, nil)
	conn := dial(t, u)

	send(t, conn, Message{Tipo: "setPrinter", ID: "sel-1", Datos: json.RawMessage(`{"macAddress":"00:11:22:33:44:55"}`)})

	require.Equal(t, "ack", read(t, conn).Tipo)
	res := read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	assert.Equal(t, "sel-1", res.ID)
	require.NotNil(t, res.Error)
	assert.Equal(t, "native", res.Error.Kind)
	assert.Equal(t, "Bluetooth off", res.Error.Message)
	assert.Equal(t, float64(7), res.Error.Code)
	assert.Equal(t, "unknown namespace", res.Error.Namespace)
	assert.Equal(t, "PRINTER: Bluetooth off", res.Mensaje)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	require.Len(t, inv.args, 1)
	assert.Equal(t, []any{map[string]any{"macAddress": "00:11:22:33:44:55"}}, inv.args[0])
}

func TestServer_PrintWithoutDatosNeverReachesProvider(t *testing.T) {
	inv := &scriptedInvoker{}
	_, u := startServer(t, Config{}, inv, nil)
	conn := dial(t, u)

	// No ack: the request is rejected before dispatch.
	send(t, conn, Message{Tipo: "printViaSDK", ID: "p-1"})
	res := read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	assert.Equal(t, "p-1", res.ID)
	require.NotNil(t, res.Error)
	assert.Equal(t, "precondition", res.Error.Kind)
	assert.Contains(t, res.Error.Message, "'printViaSDK'")

	send(t, conn, Message{Tipo: "sendUSBConfig", ID: "u-1", Datos: json.RawMessage(`""`)})
	res = read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, "'sendUSBConfig'")

	send(t, conn, Message{Tipo: "printViaSDK", ID: "p-obj", Datos: json.RawMessage(`{"foo":"bar"}`)})
	res = read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	assert.Equal(t, "p-obj", res.ID)
	require.NotNil(t, res.Error)
	assert.Equal(t, "precondition", res.Error.Kind)

	// The connection is still in order: the next frame answers the next request.
	send(t, conn, Message{Tipo: "ping", ID: "after"})
	pong := read(t, conn)
	assert.Equal(t, "pong", pong.Tipo)
	assert.Equal(t, "after", pong.ID)

	assert.Empty(t, inv.Actions())
}

func TestServer_RepliesAfterShutdownAreDropped(t *testing.T) {
	srv, u := startServer(t, Config{}, &scriptedInvoker{}, nil)
	dial(t, u)

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		srv.clients.ForEach(func(c *websocket.Conn) { conn = c })
		return conn != nil
	}, 5*time.Second, 10*time.Millisecond)

	// Native callbacks racing with Shutdown must not touch the WaitGroup
	// once draining has begun.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.reply(conn, Response{Tipo: "result", ID: "late", Status: "success"})
		}()
	}
	srv.Shutdown()
	wg.Wait()

	srv.replyMu.Lock()
	draining := srv.draining
	srv.replyMu.Unlock()
	assert.True(t, draining)

	done := make(chan struct{})
	go func() {
		srv.reply(conn, Response{Tipo: "result", ID: "after-shutdown"})
		srv.replies.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reply after shutdown was scheduled")
	}
}

func TestServer_PrintPayloadForwarded(t *testing.T) {
	inv := &scriptedInvoker{}
	_, u := startServer(t, Config{}, inv, nil)
	conn := dial(t, u)

	bitmap := base64.StdEncoding.EncodeToString([]byte("BM fake bitmap"))
	datos, _ := json.Marshal(bitmap)
	send(t, conn, Message{Tipo: "printViaSDK", ID: "p-2", Datos: datos})

	require.Equal(t, "ack", read(t, conn).Tipo)
	res := read(t, conn)
	assert.Equal(t, "result", res.Tipo)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	require.Len(t, inv.args, 1)
	assert.Equal(t, []any{bitmap}, inv.args[0])
}

func TestServer_UnknownTipoAndPing(t *testing.T) {
	_, u := startServer(t, Config{}, &scriptedInvoker{}, nil)
	conn := dial(t, u)

	send(t, conn, Message{Tipo: "ping", ID: "x"})
	pong := read(t, conn)
	assert.Equal(t, "pong", pong.Tipo)
	assert.Equal(t, "x", pong.ID)

	send(t, conn, Message{Tipo: "printLabel"})
	res := read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	assert.NotEmpty(t, res.ID, "missing ids are generated")
	assert.Equal(t, "COMMAND: printLabel", res.Mensaje)
}

func TestServer_Status(t *testing.T) {
	_, u := startServer(t, Config{}, &scriptedInvoker{}, nil)
	conn := dial(t, u)

	send(t, conn, Message{Tipo: "status"})
	res := read(t, conn)
	assert.Equal(t, "status", res.Tipo)
	require.NotNil(t, res.Bridge)
	assert.True(t, res.Bridge.Connected)
	assert.Equal(t, 2, res.Bridge.Pending)
	assert.Equal(t, 1, res.Clients)
}

func TestServer_TokenRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pos-token"), bcrypt.MinCost)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	authMgr := auth.NewManager(ctx, base64.StdEncoding.EncodeToString(hash))

	inv := &scriptedInvoker{}
	_, u := startServer(t, Config{}, inv, authMgr)
	conn := dial(t, u)

	send(t, conn, Message{Tipo: "findPrinters", Token: "wrong"})
	res := read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	assert.Equal(t, "AUTH: Invalid or missing token", res.Mensaje)
	assert.Empty(t, inv.Actions())

	send(t, conn, Message{Tipo: "findPrinters", Token: "pos-token"})
	require.Equal(t, "ack", read(t, conn).Tipo)
	require.Equal(t, "result", read(t, conn).Tipo)

	// Token is only needed once per connection.
	send(t, conn, Message{Tipo: "findNetworkPrinters"})
	require.Equal(t, "ack", read(t, conn).Tipo)
	require.Equal(t, "result", read(t, conn).Tipo)
}

func TestServer_PrintRateLimit(t *testing.T) {
	_, u := startServer(t, Config{PrintsPerMinute: 1}, &scriptedInvoker{}, nil)
	conn := dial(t, u)

	send(t, conn, Message{Tipo: "sendUSBConfig", Datos: json.RawMessage(`"^XA^XZ"`)})
	require.Equal(t, "ack", read(t, conn).Tipo)
	require.Equal(t, "result", read(t, conn).Tipo)

	send(t, conn, Message{Tipo: "sendUSBConfig", Datos: json.RawMessage(`"^XA^XZ"`)})
	res := read(t, conn)
	assert.Equal(t, "error", res.Tipo)
	assert.Equal(t, "LIMIT: Too many print requests, slow down", res.Mensaje)

	// Discovery is not rate limited.
	send(t, conn, Message{Tipo: "findPrinters"})
	require.Equal(t, "ack", read(t, conn).Tipo)
}

func TestPrintRateLimiter(t *testing.T) {
	rl := NewPrintRateLimiter(2)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))

	assert.True(t, NewPrintRateLimiter(0).Allow("anyone"))
}
