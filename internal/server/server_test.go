package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/qudata/memcheck/internal/domain"
)

type fakeCommander struct {
	state domain.State
	calls []byte
}

func (f *fakeCommander) Handle(_ context.Context, cmd byte, out io.Writer) error {
	f.calls = append(f.calls, cmd)
	switch cmd {
	case 'w':
		f.state = domain.State{
			RunID:   "run-1",
			Memory:  domain.AllocationResult{TotalBytes: 4096, Allocations: 2},
			Storage: domain.WriteResult{TotalBytes: 2048, Outcome: domain.OutcomeComplete},
		}
		fmt.Fprintln(out, "Filling RAM...")
		return nil
	case 'r':
		fmt.Fprintf(out, "Allocated RAM: %d bytes\n", f.state.Memory.TotalBytes)
		return nil
	case 'p':
		panic("boom")
	}
	fmt.Fprintln(out, "Unknown command. Use 'w' to write or 'r' to read.")
	return domain.ErrUnknownCommand{Command: cmd}
}

func (f *fakeCommander) State() domain.State { return f.state }

type fakeHardware struct{}

func (fakeHardware) Info() domain.HardwareInfo {
	return domain.HardwareInfo{ChipModel: "ESP32-S3", Cores: 2}
}

type decoded struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, token string) (int, decoded) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body decoded
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, body
}

func newTestServer(token string) (*Server, *fakeCommander) {
	cmds := &fakeCommander{}
	return New("127.0.0.1:0", token, cmds, fakeHardware{}, slog.New(slog.NewTextHandler(io.Discard, nil))), cmds
}

func TestPingIsPublic(t *testing.T) {
	s, _ := newTestServer("secret")
	code, body := do(t, s.Handler(), http.MethodGet, "/ping", "")
	if code != http.StatusOK || !body.Ok {
		t.Errorf("GET /ping = %d %+v", code, body)
	}
}

func TestAuth(t *testing.T) {
	s, cmds := newTestServer("secret")

	code, _ := do(t, s.Handler(), http.MethodGet, "/results", "")
	if code != http.StatusUnauthorized {
		t.Errorf("missing token: status %d, want 401", code)
	}
	code, _ = do(t, s.Handler(), http.MethodPost, "/commands/w", "wrong")
	if code != http.StatusForbidden {
		t.Errorf("wrong token: status %d, want 403", code)
	}
	if len(cmds.calls) != 0 {
		t.Errorf("commands ran without auth: %q", cmds.calls)
	}

	code, _ = do(t, s.Handler(), http.MethodGet, "/results", "secret")
	if code != http.StatusOK {
		t.Errorf("valid token: status %d, want 200", code)
	}
}

func TestWriteThenResults(t *testing.T) {
	s, cmds := newTestServer("")

	code, body := do(t, s.Handler(), http.MethodPost, "/commands/w", "")
	if code != http.StatusOK || !body.Ok {
		t.Fatalf("POST /commands/w = %d %+v", code, body)
	}
	var cr commandResponse
	if err := json.Unmarshal(body.Data, &cr); err != nil {
		t.Fatalf("decode command response: %v", err)
	}
	if cr.Output != "Filling RAM...\n" {
		t.Errorf("output = %q", cr.Output)
	}
	if cr.State.RunID != "run-1" || cr.State.Storage.Outcome != domain.OutcomeComplete {
		t.Errorf("state = %+v", cr.State)
	}

	code, body = do(t, s.Handler(), http.MethodGet, "/results", "")
	if code != http.StatusOK {
		t.Fatalf("GET /results = %d", code)
	}
	var st domain.State
	if err := json.Unmarshal(body.Data, &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Memory.TotalBytes != 4096 || st.Storage.TotalBytes != 2048 {
		t.Errorf("results = %+v", st)
	}
	if string(cmds.calls) != "w" {
		t.Errorf("calls = %q", cmds.calls)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, cmds := newTestServer("")

	code, body := do(t, s.Handler(), http.MethodPost, "/commands/x", "")
	if code != http.StatusBadRequest || body.Ok {
		t.Errorf("POST /commands/x = %d %+v", code, body)
	}
	if body.Error != "Unknown command. Use 'w' to write or 'r' to read.\n" {
		t.Errorf("error = %q", body.Error)
	}

	code, _ = do(t, s.Handler(), http.MethodPost, "/commands/wr", "")
	if code != http.StatusBadRequest {
		t.Errorf("multi-character command: status %d, want 400", code)
	}
	if string(cmds.calls) != "x" {
		t.Errorf("calls = %q", cmds.calls)
	}
}

func TestHardware(t *testing.T) {
	s, _ := newTestServer("")
	code, body := do(t, s.Handler(), http.MethodGet, "/hardware", "")
	if code != http.StatusOK {
		t.Fatalf("GET /hardware = %d", code)
	}
	var info domain.HardwareInfo
	if err := json.Unmarshal(body.Data, &info); err != nil {
		t.Fatalf("decode hardware: %v", err)
	}
	if info.ChipModel != "ESP32-S3" || info.Cores != 2 {
		t.Errorf("hardware = %+v", info)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s, _ := newTestServer("")
	code, body := do(t, s.Handler(), http.MethodPost, "/commands/p", "")
	if code != http.StatusInternalServerError || body.Error != "internal server error" {
		t.Errorf("panicking command = %d %+v", code, body)
	}
}

func TestRequestLogsCarryCommandAndRun(t *testing.T) {
	var logs bytes.Buffer
	cmds := &fakeCommander{}
	s := New("127.0.0.1:0", "", cmds, fakeHardware{}, slog.New(slog.NewJSONHandler(&logs, nil)))

	do(t, s.Handler(), http.MethodPost, "/commands/w", "")
	do(t, s.Handler(), http.MethodPost, "/commands/p", "")

	out := logs.String()
	for _, want := range []string{
		`"cmd":"w"`,
		`"run_id":"run-1"`,
		`"msg":"command panicked"`,
		`"cmd":"p"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("logs lack %s:\n%s", want, out)
		}
	}
}
