package console

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/config"
	"invoice-console/internal/events"
	"invoice-console/internal/history"
	"invoice-console/internal/session"
)

type fakeGenerator struct {
	resp  *backend.GenerateResponse
	err   error
	calls int
	last  backend.GenerateRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req backend.GenerateRequest) (*backend.GenerateResponse, error) {
	g.calls++
	g.last = req
	return g.resp, g.err
}

type testConsole struct {
	handler  *Handler
	server   *httptest.Server
	sessions *session.Store
	history  history.Store
	gen      *fakeGenerator
}

func newTestConsole(t *testing.T, gen Generator) *testConsole {
	t.Helper()

	cfg := config.Config{
		MaxUploadBytes:  1 << 20,
		StrictDefault:   true,
		GenerateTimeout: 5 * time.Second,
	}
	sessions := session.NewStore(time.Hour)
	t.Cleanup(sessions.Stop)

	hist := history.NewMemoryStore(100)
	t.Cleanup(func() { hist.Close() })

	bus := events.NewBus(16)
	t.Cleanup(bus.Shutdown)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(cfg, sessions, gen, nil, bus, nil, hist, logger)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tc := &testConsole{handler: h, server: srv, sessions: sessions, history: hist}
	if fg, ok := gen.(*fakeGenerator); ok {
		tc.gen = fg
	}
	return tc
}

func (tc *testConsole) url(path string) string {
	return tc.server.URL + path
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func multipartUpload(t *testing.T, url string, files map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

// stageAll puts a session into the ready state through the API.
func (tc *testConsole) stageAll(t *testing.T) string {
	t.Helper()

	res, err := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var st session.State
	decodeBody(t, res, &st)

	base := tc.url(APIPrefix + "/sessions/" + st.ID + "/files/")
	for slot, name := range map[string]string{
		"po":         "po.pdf",
		"timesheets": "ts1.pdf",
		"template":   "template.xlsx",
	} {
		res := multipartUpload(t, base+slot, map[string]string{name: "content-" + name})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("upload %s: status %d", slot, res.StatusCode)
		}
		res.Body.Close()
	}
	return st.ID
}

func TestCreateSession(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, err := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
	var st session.State
	decodeBody(t, res, &st)
	if st.ID == "" {
		t.Error("session ID missing")
	}
	if !st.Strict {
		t.Error("strict default not applied")
	}
	if st.Ready {
		t.Error("fresh session should not be ready")
	}

	res, err = http.Get(tc.url(APIPrefix + "/sessions/" + st.ID))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("GET session status = %d", res.StatusCode)
	}
	res.Body.Close()

	res, _ = http.Get(tc.url(APIPrefix + "/sessions/nope"))
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()
}

func TestUploadReadiness(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, _ := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	var st session.State
	decodeBody(t, res, &st)
	base := tc.url(APIPrefix + "/sessions/" + st.ID + "/files/")

	res = multipartUpload(t, base+"po", map[string]string{"po.pdf": "pdf-bytes"})
	var up uploadResponse
	decodeBody(t, res, &up)
	if up.State.PO == nil || up.State.PO.Name != "po.pdf" {
		t.Errorf("PO slot = %+v", up.State.PO)
	}
	if up.State.Ready {
		t.Error("should not be ready with only a PO")
	}

	res = multipartUpload(t, base+"timesheets", map[string]string{
		"ts1.pdf": "a",
		"ts2.pdf": "b",
	})
	decodeBody(t, res, &up)
	if len(up.State.Timesheets) != 2 {
		t.Fatalf("timesheets = %d, want 2", len(up.State.Timesheets))
	}

	res = multipartUpload(t, base+"template", map[string]string{"tpl.xlsx": "not-a-real-workbook"})
	decodeBody(t, res, &up)
	if !up.State.Ready {
		t.Error("session should be ready with all three slots filled")
	}
	// A non-workbook template still stages; it just has no sheet summary.
	if up.Sheet != nil {
		t.Errorf("sheet info = %+v, want nil for junk bytes", up.Sheet)
	}
}

func TestUploadValidation(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, _ := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	var st session.State
	decodeBody(t, res, &st)
	base := tc.url(APIPrefix + "/sessions/" + st.ID + "/files/")

	res = multipartUpload(t, base+"po", map[string]string{"po.docx": "x"})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("wrong extension status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()

	res = multipartUpload(t, base+"attachments", map[string]string{"a.pdf": "x"})
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown slot status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()

	res = multipartUpload(t, base+"template", map[string]string{"a.xlsx": "x", "b.xlsx": "y"})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("multi-file single slot status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestRemoveTimesheetReindexes(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, _ := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	var st session.State
	decodeBody(t, res, &st)
	base := tc.url(APIPrefix + "/sessions/" + st.ID)

	r := multipartUpload(t, base+"/files/timesheets", map[string]string{"ts1.pdf": "a"})
	r.Body.Close()
	r = multipartUpload(t, base+"/files/timesheets", map[string]string{"ts2.pdf": "b"})
	r.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, base+"/timesheets/0", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, res, &st)
	if len(st.Timesheets) != 1 {
		t.Fatalf("timesheets = %d, want 1", len(st.Timesheets))
	}
	if st.Timesheets[0].Index != 0 || st.Timesheets[0].Name != "ts2.pdf" {
		t.Errorf("remaining = %+v, want ts2.pdf at index 0", st.Timesheets[0])
	}

	req, _ = http.NewRequest(http.MethodDelete, base+"/timesheets/5", nil)
	res, _ = http.DefaultClient.Do(req)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("out-of-range status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()
}

func TestSetConfig(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, _ := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	var st session.State
	decodeBody(t, res, &st)

	body := strings.NewReader(`{"config": "{\"engineers\": {}}", "strict": false}`)
	req, _ := http.NewRequest(http.MethodPut, tc.url(APIPrefix+"/sessions/"+st.ID+"/config"), body)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, res, &st)
	if st.Config != `{"engineers": {}}` {
		t.Errorf("config = %q", st.Config)
	}
	if st.Strict {
		t.Error("strict should be false after update")
	}
}

func TestGenerateNotReady(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, _ := http.Post(tc.url(APIPrefix+"/sessions"), "", nil)
	var st session.State
	decodeBody(t, res, &st)

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+st.ID+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", res.StatusCode)
	}
	res.Body.Close()
	if tc.gen.calls != 0 {
		t.Error("backend should not be called when not ready")
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})
	id := tc.stageAll(t)

	body := strings.NewReader(`{"config": "{not json"}`)
	req, _ := http.NewRequest(http.MethodPut, tc.url(APIPrefix+"/sessions/"+id+"/config"), body)
	res, _ := http.DefaultClient.Do(req)
	res.Body.Close()

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", res.StatusCode)
	}
	res.Body.Close()
	if tc.gen.calls != 0 {
		t.Error("backend should not be called with an invalid config")
	}
}

func successResponse() *backend.GenerateResponse {
	return &backend.GenerateResponse{
		Success: true,
		Summary: &backend.Summary{
			GrandTotalUSD:  1234.5,
			TotalEngineers: 2,
			TotalHours:     160,
			ContractNumber: "PO-4711",
		},
		Engineers: []backend.Engineer{
			{Name: "Jane Doe", NormalHours: 80, NormalRate: 10, NormalCost: 800, TotalCost: 800},
		},
		ExcelBase64: base64.StdEncoding.EncodeToString([]byte("xlsx-bytes")),
		Audit:       map[string]any{"engineers": float64(2)},
	}
}

func TestGenerateSuccess(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{resp: successResponse()})
	id := tc.stageAll(t)

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	var result struct {
		OK      bool `json:"ok"`
		Summary *struct {
			GrandTotal string `json:"grand_total"`
		} `json:"summary"`
		Engineers []any `json:"engineers"`
	}
	decodeBody(t, res, &result)
	if !result.OK {
		t.Fatal("result not ok")
	}
	if result.Summary == nil || result.Summary.GrandTotal != "$1,234.50" {
		t.Errorf("grand total = %+v", result.Summary)
	}
	if len(result.Engineers) != 1 {
		t.Errorf("engineers = %d, want 1", len(result.Engineers))
	}
	if tc.gen.calls != 1 {
		t.Errorf("backend calls = %d, want 1", tc.gen.calls)
	}
	if len(tc.gen.last.Timesheets) != 1 || tc.gen.last.PO.Name != "po.pdf" {
		t.Errorf("request shape = %+v", tc.gen.last)
	}

	// Attempt telemetry records the outcome.
	attempts, err := tc.history.List(history.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	a := attempts[0]
	if a.Status != history.StatusOK || a.GrandTotalUSD != 1234.5 || a.ContractNumber != "PO-4711" {
		t.Errorf("attempt = %+v", a)
	}
}

func TestGenerateLogicalFailure(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{resp: &backend.GenerateResponse{
		Success:   false,
		ErrorType: "validation_error",
		Errors:    []string{"Missing config for: Jane Doe", "Sheet has no hours"},
	}})
	id := tc.stageAll(t)

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	var result struct {
		OK        bool   `json:"ok"`
		Error     string `json:"error"`
		ErrorType string `json:"error_type"`
	}
	decodeBody(t, res, &result)
	if result.OK {
		t.Error("result should not be ok")
	}
	if result.Error != "Missing config for: Jane Doe\nSheet has no hours" {
		t.Errorf("error = %q", result.Error)
	}
	if result.ErrorType != "validation_error" {
		t.Errorf("error_type = %q", result.ErrorType)
	}

	attempts, _ := tc.history.List(history.ListOptions{})
	if len(attempts) != 1 || attempts[0].Status != history.StatusFailed {
		t.Errorf("attempts = %+v", attempts)
	}
	if attempts[0].ErrorClass != history.ErrorValidation {
		t.Errorf("error class = %q", attempts[0].ErrorClass)
	}
}

func TestGenerateTransportError(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{err: errors.New("connection refused")})
	id := tc.stageAll(t)

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", res.StatusCode)
	}
	var result struct {
		OK        bool   `json:"ok"`
		Error     string `json:"error"`
		ErrorType string `json:"error_type"`
	}
	decodeBody(t, res, &result)
	if result.OK || !strings.Contains(result.Error, "connection refused") {
		t.Errorf("result = %+v", result)
	}
	if result.ErrorType != "transport_error" {
		t.Errorf("error_type = %q", result.ErrorType)
	}

	// No result is retained, and the session can submit again.
	res, _ = http.Get(tc.url(APIPrefix + "/sessions/" + id + "/result"))
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("result status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()

	res, _ = http.Get(tc.url(APIPrefix + "/sessions/" + id))
	var st session.State
	decodeBody(t, res, &st)
	if st.Submitting {
		t.Error("session still submitting after transport error")
	}

	attempts, _ := tc.history.List(history.ListOptions{})
	if len(attempts) != 1 || attempts[0].Status != history.StatusError {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestDownloads(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{resp: successResponse()})
	id := tc.stageAll(t)

	base := tc.url(APIPrefix + "/sessions/" + id)

	// Nothing to download before generating.
	res, _ := http.Get(base + "/report.xlsx")
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("pre-generate report status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()

	res, err := http.Post(base+"/generate", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	res, err = http.Get(base + "/report.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d", res.StatusCode)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "Invoice_Report.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if string(data) != "xlsx-bytes" {
		t.Errorf("report body = %q", data)
	}

	res, err = http.Get(base + "/audit.json")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit status = %d", res.StatusCode)
	}
	var audit map[string]any
	decodeBody(t, res, &audit)
	if audit["engineers"] != float64(2) {
		t.Errorf("audit = %+v", audit)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{resp: successResponse()})
	id := tc.stageAll(t)

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	res, err = http.Get(tc.url(APIPrefix + "/history"))
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Attempts []history.Attempt `json:"attempts"`
		Count    int               `json:"count"`
	}
	decodeBody(t, res, &list)
	if list.Count != 1 || len(list.Attempts) != 1 {
		t.Fatalf("history list = %+v", list)
	}

	res, err = http.Get(tc.url(APIPrefix + "/history/" + list.Attempts[0].ID))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("history get status = %d", res.StatusCode)
	}
	res.Body.Close()

	res, _ = http.Get(tc.url(APIPrefix + "/history/nope"))
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown attempt status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()

	res, _ = http.Get(tc.url(APIPrefix + "/history?status=bogus"))
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", res.StatusCode)
	}
	res.Body.Close()

	res, err = http.Get(tc.url(APIPrefix + "/overview?window=24h"))
	if err != nil {
		t.Fatal(err)
	}
	var overview struct {
		Overview *history.Overview `json:"overview"`
		InFlight int               `json:"in_flight"`
	}
	decodeBody(t, res, &overview)
	if overview.Overview == nil || overview.Overview.TotalAttempts != 1 {
		t.Errorf("overview = %+v", overview.Overview)
	}
}

func TestHealthEndpoints(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, err := http.Get(tc.url("/healthz"))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", res.StatusCode)
	}
	res.Body.Close()

	// No poller configured: report offline rather than erroring.
	res, err = http.Get(tc.url("/healthz/backend"))
	if err != nil {
		t.Fatal(err)
	}
	var st struct {
		Online bool `json:"online"`
	}
	decodeBody(t, res, &st)
	if st.Online {
		t.Error("backend should report offline without a poller")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, err := http.Get(tc.url("/metrics"))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", res.StatusCode)
	}
}

func TestServeUI(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	res, err := http.Get(tc.url("/"))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(res.Body)
	if !bytes.Contains(body, []byte("Invoice Console")) {
		t.Error("index.html content missing")
	}

	res, _ = http.Get(tc.url("/missing.js"))
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()
}

func TestSSEStream(t *testing.T) {
	tc := newTestConsole(t, &fakeGenerator{})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, tc.url("/events"), nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Give the subscription time to register before publishing.
	time.Sleep(50 * time.Millisecond)
	tc.handler.bus.Publish(events.Event{Type: events.TypeFileStaged, SessionID: "s1", File: "po.pdf"})

	reader := bufioLines(res.Body)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line := <-reader:
			if strings.HasPrefix(line, "data: ") && strings.Contains(line, "file_staged") {
				return
			}
		case <-deadline:
			t.Fatal("no SSE event received")
		}
	}
}

// bufioLines streams lines from r on a channel so reads can race a deadline.
func bufioLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		buf := make([]byte, 4096)
		var pending string
		for {
			n, err := r.Read(buf)
			if n > 0 {
				pending += string(buf[:n])
				for {
					i := strings.Index(pending, "\n")
					if i < 0 {
						break
					}
					ch <- pending[:i]
					pending = pending[i+1:]
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

func TestGenerateBusyConflict(t *testing.T) {
	block := make(chan struct{})
	gen := &blockingGenerator{block: block, resp: successResponse()}
	tc := newTestConsole(t, gen)
	id := tc.stageAll(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
		if err == nil {
			res.Body.Close()
		}
	}()

	// Wait for the first request to claim the in-flight slot.
	deadline := time.After(2 * time.Second)
	for {
		res, err := http.Get(tc.url(APIPrefix + "/sessions/" + id))
		if err != nil {
			t.Fatal(err)
		}
		var st session.State
		decodeBody(t, res, &st)
		if st.Submitting {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first generate never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	res, err := http.Post(tc.url(APIPrefix+"/sessions/"+id+"/generate"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusConflict {
		t.Errorf("second generate status = %d, want 409", res.StatusCode)
	}
	res.Body.Close()

	close(block)
	<-done
}

type blockingGenerator struct {
	block chan struct{}
	resp  *backend.GenerateResponse
}

func (g *blockingGenerator) Generate(ctx context.Context, req backend.GenerateRequest) (*backend.GenerateResponse, error) {
	select {
	case <-g.block:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.resp, nil
}

func TestParseWindow(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 24 * time.Hour},
		{"1h", time.Hour},
		{"24h", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"30m", 30 * time.Minute},
		{"bogus", 24 * time.Hour},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/overview?window=%s", c.raw), nil)
		if got := parseWindow(r); got != c.want {
			t.Errorf("parseWindow(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}
