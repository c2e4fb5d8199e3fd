package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/outliner/internal/persist"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/testutil"
)

type testEnvironment struct {
	sess    *session.Session
	owned   *storage.FS
	exports *storage.FS
	router  http.Handler
}

// testEnv wires a session over a real owned store and write channel.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) *testEnvironment {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) *testEnvironment {
	t.Helper()
	_, owned := testutil.TestStore(t)
	_, exports := testutil.TestStore(t)
	sess := testutil.TestSession(t, owned, persist.Hooks{})

	return &testEnvironment{
		sess:    sess,
		owned:   owned,
		exports: exports,
		router:  NewRouter(sess, authEnabled, authToken, sseHandler, exports, "out"),
	}
}

func (e *testEnvironment) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestGetOutlineEmpty(t *testing.T) {
	env := testEnv(t, "")

	w := env.do(t, http.MethodGet, "/outline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	view := decode[OutlineResponse](t, w)
	if view.Count != 0 || len(view.Items) != 0 {
		t.Errorf("view = %+v", view)
	}
	if view.Title != "Untitled" {
		t.Errorf("title = %q", view.Title)
	}
}

func TestApplyCommandAndSave(t *testing.T) {
	env := testEnv(t, "")

	w := env.do(t, http.MethodPost, "/outline/commands", CommandRequest{Op: session.CmdCreate})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[CommandResponse](t, w)
	if !created.Result.Applied || created.Result.ID == "" {
		t.Fatalf("create = %+v", created.Result)
	}
	if !created.State.Dirty {
		t.Error("state not dirty after create")
	}

	w = env.do(t, http.MethodPost, "/outline/commands", CommandRequest{
		Op: session.CmdBody, ID: created.Result.ID, Body: "hello <em>world</em>",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("body status = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/outline/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	saved := decode[StateResponse](t, w)
	if saved.State.Dirty || saved.State.Origin != persist.OriginOwnedStore {
		t.Errorf("state after save = %+v", saved.State)
	}

	data, err := env.owned.Read(persist.DefaultOwnedName)
	if err != nil {
		t.Fatalf("owned read: %v", err)
	}
	if !strings.Contains(string(data), "hello <em>world</em>") {
		t.Errorf("saved file missing body:\n%s", data)
	}
}

func TestApplyCommandRejectsBadInput(t *testing.T) {
	env := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/outline/commands", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/outline/commands", CommandRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing op = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/outline/commands", CommandRequest{Op: "explode"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown op = %d, want 400", w.Code)
	}
}

func TestDownloadExport(t *testing.T) {
	env := testEnv(t, "")

	w := env.do(t, http.MethodGet, "/outline/export", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty export = %d, want 422", w.Code)
	}

	env.do(t, http.MethodPost, "/outline/commands", CommandRequest{Op: session.CmdCreate})
	w = env.do(t, http.MethodGet, "/outline/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename=outline.bike`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), `<ul id="root">`) {
		t.Errorf("export body:\n%s", w.Body.String())
	}
	if !env.sess.Coordinator().Dirty() {
		t.Error("export cleared the dirty flag")
	}
}

func TestExportFile(t *testing.T) {
	env := testEnv(t, "")
	env.do(t, http.MethodPost, "/outline/commands", CommandRequest{Op: session.CmdCreate})

	w := env.do(t, http.MethodPost, "/outline/export", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ExportResponse](t, w)
	if resp.Path != "out/outline.bike" {
		t.Errorf("path = %q", resp.Path)
	}
	ok, err := env.exports.Exists(resp.Path)
	if err != nil || !ok {
		t.Errorf("export file missing: %v", err)
	}
}

func TestLoadsRequireForceWhenDirty(t *testing.T) {
	env := testEnv(t, "")
	env.do(t, http.MethodPost, "/outline/commands", CommandRequest{Op: session.CmdCreate})

	w := env.do(t, http.MethodPost, "/outline/new", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("dirty new = %d, want 409", w.Code)
	}

	w = env.do(t, http.MethodPost, "/outline/new?force=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("forced new = %d, body = %s", w.Code, w.Body.String())
	}
	st := decode[StateResponse](t, w).State
	if st.Dirty || st.Origin != persist.OriginNewlyCreated {
		t.Errorf("state = %+v", st)
	}
	if n := env.sess.Document().Len(); n != 1 {
		t.Errorf("new document has %d nodes, want 1", n)
	}
}

func TestRestoreWithoutDraft(t *testing.T) {
	env := testEnv(t, "")

	w := env.do(t, http.MethodPost, "/outline/restore", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("restore = %d, want 404", w.Code)
	}
}

func importFile(t *testing.T, router http.Handler, target, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportOpensCopy(t *testing.T) {
	env := testEnv(t, "")
	doc := `<html><head><title>Trip</title></head><body><ul id="root"><li id="x"><p>pack</p></li></ul></body></html>`

	w := importFile(t, env.router, "/outline/import", "Trip.bike", []byte(doc))
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	st := decode[StateResponse](t, w).State
	if st.Origin != persist.OriginLoadedCopy || st.Name != "Trip" {
		t.Errorf("state = %+v", st)
	}
	if _, ok := env.sess.Document().Node("x"); !ok {
		t.Error("imported node missing")
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	env := testEnv(t, "")

	w := importFile(t, env.router, "/outline/import", "junk.bike", []byte("not an outline"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("garbage import = %d, want 400", w.Code)
	}
	if got := env.sess.Coordinator().Origin(); got != persist.OriginNone {
		t.Errorf("origin after failed import = %v", got)
	}
}

func TestImportMissingFileField(t *testing.T) {
	env := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/outline/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/outline", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed get = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := testEnv(t, "secret123")

	w := env.do(t, http.MethodGet, "/outline", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/outline/save", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context ends.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := testEnvWithSSE(t, true, "secret", blockingSSE)

	w := env.do(t, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
