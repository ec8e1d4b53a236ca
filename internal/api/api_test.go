package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/starford/arbor/internal/catalog"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/indexservice"
	"github.com/starford/arbor/internal/replication"
	"github.com/starford/arbor/internal/testutil"
)

// testEnv sets up a temp catalog, replica service and router for testing.
// An empty authToken means disabled mode; a non-empty one means token mode.
func testEnv(t *testing.T, authToken string) (*indexservice.Service, http.Handler) {
	t.Helper()
	svc, _, router := testEnvFull(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*indexservice.Service, *catalog.DB, http.Handler) {
	t.Helper()
	db := testutil.TestCatalog(t)
	svc := indexservice.New(
		indexservice.WithReplicaID("a"),
		indexservice.WithCatalog(db),
		indexservice.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
	)
	t.Cleanup(svc.Close)
	router := NewRouter(svc, authEnabled, authToken, sseHandler)
	return svc, db, router
}

func do(t *testing.T, router http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func insert(t *testing.T, router http.Handler, path []string, kind string) MutationResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/mutations/insert", map[string]any{"path": path, "kind": kind})
	if w.Code != http.StatusCreated {
		t.Fatalf("insert %v = %d, body = %s", path, w.Code, w.Body.String())
	}
	var res MutationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return res
}

func TestInsertAndResolve(t *testing.T) {
	_, router := testEnv(t, "")

	res := insert(t, router, []string{"Interviews"}, "library")
	if res.Line != "AL>|<libraries>|<1>|<0>|<>|<Interviews" {
		t.Errorf("delta = %q", res.Line)
	}
	insert(t, router, []string{"Interviews", "Ann"}, "episode")

	w := do(t, router, http.MethodGet, "/nodes/libraries/Interviews/Ann?kind=episode", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve = %d, body = %s", w.Code, w.Body.String())
	}
	var node NodeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &node)
	if node.Name != "Ann" || node.Kind != "episode" || node.Record != 2 || node.Parent != 1 {
		t.Errorf("node = %+v", node)
	}
	if node.Family != "libraries" || len(node.Path) != 2 {
		t.Errorf("location = %s %v", node.Family, node.Path)
	}

	// Lookups are case-insensitive.
	w = do(t, router, http.MethodGet, "/nodes/libraries/interviews?kind=library&record=1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("case-insensitive resolve = %d", w.Code)
	}
}

func TestNodePathDecodesOnce(t *testing.T) {
	_, router := testEnv(t, "")
	names := []string{"50%25 off", "a/b", "100%"}
	for _, name := range names {
		insert(t, router, []string{name}, "library")
	}
	insert(t, router, []string{"50%25 off", "Q&A %2F notes"}, "document")

	for _, name := range names {
		w := do(t, router, http.MethodGet, "/nodes/libraries/"+url.PathEscape(name)+"?kind=library", nil)
		if w.Code != http.StatusOK {
			t.Errorf("resolve %q = %d, body = %s", name, w.Code, w.Body.String())
			continue
		}
		var node NodeResponse
		_ = json.Unmarshal(w.Body.Bytes(), &node)
		if node.Name != name {
			t.Errorf("resolved %q, want %q", node.Name, name)
		}
	}

	target := "/children/libraries/" + url.PathEscape("50%25 off") + "?kind=library"
	w := do(t, router, http.MethodGet, target, nil)
	var resp ChildrenResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Children) != 1 || resp.Children[0].Name != "Q&A %2F notes" {
		t.Errorf("children = %d %+v", w.Code, resp.Children)
	}

	target = "/nodes/libraries/" + url.PathEscape("50%25 off") + "/" + url.PathEscape("Q&A %2F notes") + "?kind=document"
	if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusOK {
		t.Errorf("resolve nested = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestChildren(t *testing.T) {
	_, router := testEnv(t, "")
	insert(t, router, []string{"B"}, "library")
	insert(t, router, []string{"A"}, "library")
	insert(t, router, []string{"A", "Doc"}, "document")

	w := do(t, router, http.MethodGet, "/children/libraries", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root children = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ChildrenResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Children) != 2 || resp.Children[0].Name != "A" || resp.Children[1].Name != "B" {
		t.Errorf("children = %+v", resp.Children)
	}

	w = do(t, router, http.MethodGet, "/children/libraries/A?kind=library", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Children) != 1 || resp.Children[0].Name != "Doc" {
		t.Errorf("A children = %d %+v", w.Code, resp.Children)
	}

	w = do(t, router, http.MethodGet, "/children/libraries/A", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("children without kind = %d, want 400", w.Code)
	}
}

func TestTreeETag(t *testing.T) {
	_, router := testEnv(t, "")
	insert(t, router, []string{"L"}, "library")

	w := do(t, router, http.MethodGet, "/tree/libraries", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	var root index.View
	_ = json.Unmarshal(w.Body.Bytes(), &root)
	if root.Kind != "library-root" || len(root.Children) != 1 {
		t.Errorf("tree = %+v", root)
	}

	w = do(t, router, http.MethodGet, "/tree/libraries", nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Errorf("unchanged tree = %d, want 304", w.Code)
	}

	insert(t, router, []string{"M"}, "library")
	w = do(t, router, http.MethodGet, "/tree/libraries", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Errorf("changed tree = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/tree/nowhere", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown family = %d, want 400", w.Code)
	}
}

func TestMutationErrorStatuses(t *testing.T) {
	_, db, router := testEnvFull(t, false, "", nil)
	insert(t, router, []string{"L"}, "library")
	insert(t, router, []string{"A"}, "collection")
	insert(t, router, []string{"A", "B"}, "collection")

	cases := []struct {
		name   string
		target string
		body   any
		want   int
	}{
		{"duplicate", "/mutations/insert", map[string]any{"path": []string{"L"}, "kind": "library"}, http.StatusConflict},
		{"missing parent", "/mutations/insert", map[string]any{"path": []string{"X", "E"}, "kind": "episode"}, http.StatusNotFound},
		{"unknown kind", "/mutations/insert", map[string]any{"path": []string{"L"}, "kind": "bogus"}, http.StatusBadRequest},
		{"empty path", "/mutations/delete", map[string]any{"path": []string{}, "kind": "library"}, http.StatusBadRequest},
		{"wrong position", "/mutations/insert", map[string]any{"path": []string{"E"}, "kind": "episode"}, http.StatusUnprocessableEntity},
		{"separator in name", "/mutations/rename", map[string]any{"path": []string{"L"}, "kind": "library", "new_name": "a>|<b"}, http.StatusUnprocessableEntity},
		{"into own subtree", "/mutations/move", map[string]any{
			"source": []string{"A"}, "source_kind": "collection",
			"dest": []string{"A", "B"}, "dest_kind": "collection",
		}, http.StatusUnprocessableEntity},
		{"reorder without order", "/mutations/reorder", map[string]any{"path": []string{"L"}, "kind": "library"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := do(t, router, http.MethodPost, tc.target, tc.body)
		if w.Code != tc.want {
			t.Errorf("%s = %d, want %d (body %s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}

	if err := db.AcquireLocks("someone-else", 1); err != nil {
		t.Fatal(err)
	}
	w := do(t, router, http.MethodPost, "/mutations/rename", map[string]any{"path": []string{"L"}, "kind": "library", "new_name": "M"})
	if w.Code != http.StatusLocked {
		t.Errorf("locked rename = %d, want 423", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/mutations/insert", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", rec.Code)
	}
}

func TestRenameMoveCopyDelete(t *testing.T) {
	_, router := testEnv(t, "")
	insert(t, router, []string{"A"}, "collection")
	insert(t, router, []string{"B"}, "collection")
	insert(t, router, []string{"A", "K1"}, "clip")

	w := do(t, router, http.MethodPost, "/mutations/rename", map[string]any{
		"path": []string{"A", "K1"}, "kind": "clip", "new_name": "K2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/mutations/copy", map[string]any{
		"source": []string{"A", "K2"}, "source_kind": "clip",
		"dest": []string{"B"}, "dest_kind": "collection",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("copy = %d, body = %s", w.Code, w.Body.String())
	}
	var res MutationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Node == nil || res.Node.Name != "K2" {
		t.Errorf("copy result = %+v", res.Node)
	}

	w = do(t, router, http.MethodPost, "/mutations/move", map[string]any{
		"source": []string{"B"}, "source_kind": "collection",
		"dest": []string{"A"}, "dest_kind": "collection",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/nodes/collections/A/B/K2?kind=clip", nil)
	if w.Code != http.StatusOK {
		t.Errorf("moved clip = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/mutations/delete", map[string]any{"path": []string{"A"}, "kind": "collection"})
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Removed == nil || len(res.Removed.Subtree) != 4 {
		t.Errorf("removed = %+v, want 4 nodes", res.Removed)
	}
	w = do(t, router, http.MethodGet, "/children/collections", nil)
	var resp ChildrenResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Children) != 0 {
		t.Errorf("collections left: %+v", resp.Children)
	}
}

func TestSubmitDelta(t *testing.T) {
	_, router := testEnv(t, "")

	m := replication.Message{ID: "m1", Origin: "b", Line: "AL>|<libraries>|<7>|<0>|<>|<Remote", At: time.Now()}
	w := do(t, router, http.MethodPost, "/deltas", m)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit = %d, body = %s", w.Code, w.Body.String())
	}
	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return do(t, router, http.MethodGet, "/nodes/libraries/Remote?kind=library&record=7", nil).Code == http.StatusOK
	}, "replayed library never appeared")

	w = do(t, router, http.MethodPost, "/deltas", map[string]string{"id": "m2", "origin": "b"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("delta without line = %d, want 400", w.Code)
	}
}

func TestClosedServiceUnavailable(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.Close()

	w := do(t, router, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("stats after close = %d, want 503", w.Code)
	}
}

func TestStats(t *testing.T) {
	_, router := testEnv(t, "")
	insert(t, router, []string{"L"}, "library")

	w := do(t, router, http.MethodGet, "/stats", nil)
	var st indexservice.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if w.Code != http.StatusOK || st.Replica != "a" || st.Nodes["libraries"] != 1 {
		t.Errorf("stats = %d %+v", w.Code, st)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/mutations/insert",
		map[string]any{"path": []string{"L"}, "kind": "library"},
		"Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed insert = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/deltas", map[string]string{"id": "x"}, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

var dummySSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, _, router := testEnvFull(t, true, "secret", dummySSE)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, _, router := testEnvFull(t, true, "tok", dummySSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
