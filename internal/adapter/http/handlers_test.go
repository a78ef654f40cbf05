package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adapthttp "github.com/MikhalGarbuz/analyze-your-life/internal/adapter/http"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/gonumstats"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/memory"
	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/app"
	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type stubRenderer struct{}

func (stubRenderer) RenderCorrelation(context.Context, []analysis.Matrix) ([]byte, error) {
	return []byte("png"), nil
}

func (stubRenderer) RenderRegression(context.Context, *analysis.RegressionResult) ([]byte, error) {
	return []byte("png"), nil
}

const testUserID = int64(1)

func newServices(db *memory.DB) adapthttp.Services {
	dispatcher := analysis.NewDispatcher(gonumstats.New(), stubRenderer{}, nil, analysis.Options{})
	analysisSvc := app.NewAnalysisService(db, db, db, dispatcher)
	experiments := app.NewExperimentService(db, db, db)
	return adapthttp.Services{
		Auth:   app.NewAuthService(db, db.NewSessionRepo()),
		Tokens: app.NewTokenService("test-secret"),
		Conversation: conversation.New(conversation.Config{
			Experiments: db,
			Parameters:  db,
			Entries:     db,
			Analyzer:    analysisSvc,
			Store:       db.NewConversationStore(),
		}),
		Experiments: experiments,
		Charts:      app.NewChartsService(db, db, db),
		Analysis:    analysisSvc,
		Export:      app.NewExportService(experiments),
		Import:      app.NewImportService(db, db, db),
	}
}

func webDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestServer(t *testing.T, db *memory.DB) *httptest.Server {
	t.Helper()
	srv := adapthttp.New(newServices(db), webDir(t)).WithoutAuth(domain.User{ID: testUserID, Username: "tester"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// seedExperiment stores a two-parameter experiment with days of entries
// ending yesterday.
func seedExperiment(t *testing.T, db *memory.DB, userID int64, days int) (domain.Experiment, domain.Parameter) {
	t.Helper()
	ctx := context.Background()
	exp, err := db.CreateExperiment(ctx, userID, "Sleep Study")
	if err != nil {
		t.Fatal(err)
	}
	mood, err := db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "mood", Role: domain.RoleGoal, Type: domain.TypeNumeric})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "sleep", Role: domain.RoleIndependent, Type: domain.TypeNumeric}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < days; i++ {
		day := time.Now().AddDate(0, 0, -days+i).Format(domain.DayLayout)
		values := map[string]domain.Value{
			"sleep": domain.NumericValue(5 + 0.5*float64(i)),
			"mood":  domain.NumericValue(3 + 0.4*float64(i) + 0.1*float64(i%3)),
		}
		if _, err := db.UpsertDailyEntry(ctx, userID, exp.ID, day, values); err != nil {
			t.Fatal(err)
		}
	}
	return *exp, *mood
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d; body: %s", want, resp.StatusCode, b)
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, memory.New())

	resp := do(t, http.MethodGet, ts.URL+"/api/health", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decodeBody(t, resp); body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestSPAFallback(t *testing.T) {
	ts := newTestServer(t, memory.New())

	resp := do(t, http.MethodGet, ts.URL+"/experiments/12", nil)
	expectStatus(t, resp, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "<html></html>" {
		t.Fatalf("expected index.html, got %q", b)
	}
}

func TestConversationDefineExperiment(t *testing.T) {
	db := memory.New()
	ts := newTestServer(t, db)
	url := ts.URL + "/api/conversation"

	steps := []map[string]any{
		{"kind": "start", "flow": "define_experiment"},
		{"kind": "input", "input": "Sleep Study"},
		{"payload": "create"},
	}
	var last map[string]any
	for _, step := range steps {
		resp := do(t, http.MethodPost, url, step)
		expectStatus(t, resp, http.StatusOK)
		last = decodeBody(t, resp)
	}
	if last["done"] != true {
		t.Fatalf("expected done reply, got %v", last)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/experiments", nil)
	expectStatus(t, resp, http.StatusOK)
	items, _ := decodeBody(t, resp)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 experiment, got %d", len(items))
	}
	if name := items[0].(map[string]any)["name"]; name != "Sleep Study" {
		t.Fatalf("unexpected name %v", name)
	}
}

func TestConversationErrors(t *testing.T) {
	db := memory.New()
	ts := newTestServer(t, db)
	url := ts.URL + "/api/conversation"

	resp := do(t, http.MethodPost, url, map[string]any{"kind": "input", "input": "hello"})
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, http.MethodPost, url, map[string]any{"payload": "start:define_parameter:99"})
	expectStatus(t, resp, http.StatusNotFound)

	resp = do(t, http.MethodPost, url, map[string]any{"unknown": true})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, http.MethodPost, url, map[string]any{"input": "no kind"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestConversationValidationKeepsState(t *testing.T) {
	db := memory.New()
	exp, _ := seedExperiment(t, db, testUserID, 0)
	ts := newTestServer(t, db)
	url := ts.URL + "/api/conversation"

	resp := do(t, http.MethodPost, url, map[string]any{"payload": fmt.Sprintf("start:define_parameter:%d", exp.ID)})
	expectStatus(t, resp, http.StatusOK)
	resp = do(t, http.MethodPost, url, map[string]any{"kind": "input", "input": "mood"})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	body := decodeBody(t, resp)
	if _, ok := body["reply"]; !ok {
		t.Fatalf("expected reply alongside error, got %v", body)
	}

	resp = do(t, http.MethodGet, url, nil)
	expectStatus(t, resp, http.StatusOK)
	session, _ := decodeBody(t, resp)["session"].(map[string]any)
	if session["state"] != string(conversation.StateParameterName) {
		t.Fatalf("expected state to stay at parameter name, got %v", session["state"])
	}

	resp = do(t, http.MethodDelete, url, nil)
	expectStatus(t, resp, http.StatusOK)
	resp = do(t, http.MethodGet, url, nil)
	if decodeBody(t, resp)["active"] != false {
		t.Fatal("expected no session after cancel")
	}
}

func TestExperimentEndpoints(t *testing.T) {
	db := memory.New()
	exp, _ := seedExperiment(t, db, testUserID, 3)
	other, _ := seedExperiment(t, db, testUserID+1, 1)
	ts := newTestServer(t, db)
	base := fmt.Sprintf("%s/api/experiments/%d", ts.URL, exp.ID)

	resp := do(t, http.MethodGet, base, nil)
	expectStatus(t, resp, http.StatusOK)
	if params, _ := decodeBody(t, resp)["parameters"].([]any); len(params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(params))
	}

	resp = do(t, http.MethodGet, base+"/entries", nil)
	expectStatus(t, resp, http.StatusOK)
	if items, _ := decodeBody(t, resp)["items"].([]any); len(items) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(items))
	}

	resp = do(t, http.MethodGet, base+"/series?days=7", nil)
	expectStatus(t, resp, http.StatusOK)
	if items, _ := decodeBody(t, resp)["items"].([]any); len(items) != 7 {
		t.Fatalf("expected 7 points, got %d", len(items))
	}

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/api/experiments/%d", ts.URL, other.ID), nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = do(t, http.MethodGet, ts.URL+"/api/experiments/abc", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCorrelationEndpoint(t *testing.T) {
	db := memory.New()
	exp, _ := seedExperiment(t, db, testUserID, 12)
	few, _ := seedExperiment(t, db, testUserID, 4)
	ts := newTestServer(t, db)
	base := fmt.Sprintf("%s/api/experiments/%d/correlation", ts.URL, exp.ID)

	resp := do(t, http.MethodGet, base, nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if methods, _ := body["methods"].([]any); len(methods) != 1 || methods[0] != "kendall" {
		t.Fatalf("expected kendall only, got %v", body["methods"])
	}

	resp = do(t, http.MethodGet, base+"?format=html", nil)
	expectStatus(t, resp, http.StatusOK)
	html, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(html), "<table>") {
		t.Fatalf("expected an html table, got %s", html)
	}

	resp = do(t, http.MethodGet, base+"?format=png", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}

	resp = do(t, http.MethodGet, base+"?format=pdf", nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/api/experiments/%d/correlation", ts.URL, few.ID), nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestRegressionEndpoint(t *testing.T) {
	db := memory.New()
	exp, mood := seedExperiment(t, db, testUserID, 12)
	ts := newTestServer(t, db)

	resp := do(t, http.MethodGet, fmt.Sprintf("%s/api/experiments/%d/regression/%d", ts.URL, exp.ID, mood.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	result, _ := decodeBody(t, resp)["result"].(map[string]any)
	if result["method"] != "linear" || result["target"] != "mood" {
		t.Fatalf("unexpected result %v", result)
	}

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/api/experiments/%d/regression/%d", ts.URL, exp.ID, mood.ID+1), nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestExportEndpoint(t *testing.T) {
	db := memory.New()
	exp, _ := seedExperiment(t, db, testUserID, 3)
	ts := newTestServer(t, db)

	resp := do(t, http.MethodGet, fmt.Sprintf("%s/api/experiments/%d/export", ts.URL, exp.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Sleep Study.xlsx") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
}

func TestImportEndpoint(t *testing.T) {
	db := memory.New()
	ts := newTestServer(t, db)

	csv := "mood,coffee\n7,+\n5,-\n"
	resp, err := http.Post(ts.URL+"/api/experiments/import?name=Coffee&goals=mood", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	expectStatus(t, resp, http.StatusCreated)
	if n := decodeBody(t, resp)["entries"]; n != float64(2) {
		t.Fatalf("expected 2 entries, got %v", n)
	}

	resp, err = http.Post(ts.URL+"/api/experiments/import?name=Bad", "text/csv", strings.NewReader("note\nhello\n"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	expectStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestAuthFlow(t *testing.T) {
	db := memory.New()
	ts := httptest.NewServer(adapthttp.New(newServices(db), webDir(t)).Handler())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/api/me", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	creds := map[string]any{"username": "alice", "password": "correct horse"}
	resp = do(t, http.MethodPost, ts.URL+"/api/auth/setup", creds)
	expectStatus(t, resp, http.StatusOK)
	resp = do(t, http.MethodPost, ts.URL+"/api/auth/setup", creds)
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, http.MethodPost, ts.URL+"/api/auth/login", map[string]any{"username": "alice", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = do(t, http.MethodPost, ts.URL+"/api/auth/login", creds)
	expectStatus(t, resp, http.StatusOK)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("expected session cookie")
	}

	authed := func(method, path string, body any) *http.Response {
		var r io.Reader
		if body != nil {
			b, _ := json.Marshal(body)
			r = bytes.NewReader(b)
		}
		req, _ := http.NewRequest(method, ts.URL+path, r)
		req.AddCookie(session)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp = authed(http.MethodGet, "/api/me", nil)
	expectStatus(t, resp, http.StatusOK)
	if name := decodeBody(t, resp)["username"]; name != "alice" {
		t.Fatalf("expected alice, got %v", name)
	}

	resp = authed(http.MethodPost, "/api/me/token", nil)
	expectStatus(t, resp, http.StatusConflict)

	resp = authed(http.MethodPut, "/api/me/chat", map[string]any{"chatId": 555})
	expectStatus(t, resp, http.StatusOK)

	resp = authed(http.MethodPost, "/api/me/token", nil)
	expectStatus(t, resp, http.StatusOK)
	token, _ := decodeBody(t, resp)["token"].(string)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	bearer, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer bearer.Body.Close() //nolint:errcheck
	expectStatus(t, bearer, http.StatusOK)
	if chat := decodeBody(t, bearer)["chatId"]; chat != float64(555) {
		t.Fatalf("expected chatId 555, got %v", chat)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	forged, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer forged.Body.Close() //nolint:errcheck
	expectStatus(t, forged, http.StatusUnauthorized)
}

func TestForwardAuthProvisionsUser(t *testing.T) {
	db := memory.New()
	ts := httptest.NewServer(adapthttp.New(newServices(db), webDir(t)).Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/experiments", nil)
	req.Header.Set("Remote-User", "bob")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	expectStatus(t, resp, http.StatusOK)

	if u, _ := db.GetByUsername(context.Background(), "bob"); u == nil {
		t.Fatal("expected bob to be provisioned")
	}
}
