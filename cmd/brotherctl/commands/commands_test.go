package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/brother-daemon/internal/bridge"
)

type requestLog struct {
	mu   sync.Mutex
	reqs []bridge.Request
}

func (l *requestLog) add(req bridge.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
}

func (l *requestLog) all() []bridge.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bridge.Request(nil), l.reqs...)
}

// fakeHost answers findPrinters with two printers, fails setPrinter, and
// records every request.
func fakeHost(t *testing.T) (string, *requestLog) {
	t.Helper()
	seen := &requestLog{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		for {
			var req bridge.Request
			if err := wsjson.Read(r.Context(), conn, &req); err != nil {
				return
			}
			seen.add(req)

			resp := bridge.Response{Tipo: bridge.TipoResult, ID: req.ID, Status: bridge.StatusSuccess}
			switch req.Action {
			case "findPrinters":
				resp.Datos = json.RawMessage(`[{"modelName":"QL-820NWB"},{"modelName":"PT-P750W"}]`)
			case "setPrinter":
				resp.Status = bridge.StatusError
				resp.Error = json.RawMessage(`{"message":"Bluetooth off","code":7}`)
			}
			if err := wsjson.Write(r.Context(), conn, resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http"), seen
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer

	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestFindAll(t *testing.T) {
	url, seen := fakeHost(t)

	stdout, _, err := execute(t, "--host", url, "find")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"modelName":"QL-820NWB"},{"modelName":"PT-P750W"}]`, stdout)

	reqs := seen.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "findPrinters", reqs[0].Action)
	assert.Equal(t, "BrotherPrinter", reqs[0].Service)
}

func TestFindUnknownScope(t *testing.T) {
	url, seen := fakeHost(t)

	_, _, err := execute(t, "--host", url, "find", "usb")
	require.Error(t, err)
	assert.Empty(t, seen.all())
}

func TestSetPrinterShowsNormalizedError(t *testing.T) {
	url, _ := fakeHost(t)

	_, stderr, err := execute(t, "--host", url, "set", `{"macAddress":"00:11:22:33:44:55"}`)
	require.Error(t, err)
	assert.Equal(t, "Bluetooth off", err.Error())

	// stderr holds the JSON detail followed by cobra's own error line.
	dec := json.NewDecoder(strings.NewReader(stderr))
	var detail map[string]any
	require.NoError(t, dec.Decode(&detail))
	assert.Equal(t, "native", detail["kind"])
	assert.Equal(t, float64(7), detail["code"])
	assert.Equal(t, "unknown namespace", detail["namespace"])
}

func TestPrintEmptyFileFailsLocally(t *testing.T) {
	url, seen := fakeHost(t)
	empty := filepath.Join(t.TempDir(), "empty.bmp")
	require.NoError(t, os.WriteFile(empty, nil, 0600))

	_, _, err := execute(t, "--host", url, "print", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'printViaSDK'")
	assert.Empty(t, seen.all())
}

func TestUSBConfigFromStdin(t *testing.T) {
	url, seen := fakeHost(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("^XA^FDHello^FS^XZ"))
	root.SetArgs([]string{"--host", url, "usb-config", "-"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "OK\n", out.String())

	reqs := seen.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sendUSBConfig", reqs[0].Action)
	assert.Equal(t, []any{"^XA^FDHello^FS^XZ"}, reqs[0].Args)
}
