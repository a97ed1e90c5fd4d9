package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bambu_bridge/internal/bambu"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, d := newTestHandler(t)
	return h.InitRoutes(), d
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return envelope.Result
}

func TestHTTP_LivenessAndCORS(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("liveness status %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing")
	}

	// Preflight short-circuits before the route handlers.
	req := httptest.NewRequest(http.MethodOptions, "/server/info", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", w.Code)
	}
}

func TestHTTP_PrintPause(t *testing.T) {
	r, d := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/printer/print/pause", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pause status %d body %s", w.Code, w.Body.String())
	}
	if len(d.link.published) != 1 {
		t.Fatalf("expected one published command, got %d", len(d.link.published))
	}
	body := d.link.published[0]["print"].(map[string]any)
	if body["command"] != "pause" {
		t.Fatalf("published %v", body)
	}
}

func TestHTTP_PrintControlsDisconnected(t *testing.T) {
	r, d := newTestRouter(t)
	d.link.err = bambu.ErrNotConnected

	w := doJSON(t, r, http.MethodPost, "/printer/print/resume", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHTTP_FileUploadInvalidatesCache(t *testing.T) {
	r, d := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "benchy.gcode")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("G28\nG1 X10\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/server/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d body %s", w.Code, w.Body.String())
	}
	if len(d.remote.uploads) != 1 || d.remote.uploads[0] != "benchy.gcode" {
		t.Fatalf("remote uploads %v", d.remote.uploads)
	}
	if d.cache.invalidated != 1 {
		t.Fatalf("upload must invalidate the listing cache")
	}
	res := decodeResult(t, w)
	item := res["item"].(map[string]any)
	if item["path"] != "gcodes/benchy.gcode" {
		t.Fatalf("item path %v", item["path"])
	}
	if res["print_started"] != false {
		t.Fatalf("print_started %v", res["print_started"])
	}
}

func TestHTTP_FileDelete(t *testing.T) {
	r, d := newTestRouter(t)

	w := doJSON(t, r, http.MethodDelete, "/server/files/gcodes/models/part.gcode", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status %d body %s", w.Code, w.Body.String())
	}
	if len(d.remote.deletes) != 1 || d.remote.deletes[0] != "models/part.gcode" {
		t.Fatalf("remote deletes %v", d.remote.deletes)
	}
	if d.cache.invalidated != 1 {
		t.Fatalf("delete must invalidate the listing cache")
	}
}

func TestHTTP_ConfigDownloads(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/server/files/config/printer.cfg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("config status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "[virtual_sdcard]") {
		t.Fatalf("printer.cfg content missing: %s", w.Body.String())
	}

	// Theme probes get an empty object rather than a 404.
	w = doJSON(t, r, http.MethodGet, "/server/files/config/.theme/sidebar.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("theme probe status %d", w.Code)
	}
	if res := decodeResult(t, w); len(res) != 0 {
		t.Fatalf("theme probe result %v", res)
	}

	w = doJSON(t, r, http.MethodGet, "/server/files/config/missing.cfg", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown config status %d", w.Code)
	}
}

func TestHTTP_DatabaseItemRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/server/database/item", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing namespace must 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/server/database/item", map[string]any{
		"namespace": "mainsail",
		"key":       "general.locale",
		"value":     "en",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("post status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/server/database/item?namespace=mainsail&key=general.locale", nil)
	res := decodeResult(t, w)
	if res["value"] != "en" {
		t.Fatalf("stored value %v", res)
	}
}

func TestHTTP_LoginFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/access/login", map[string]any{
		"username": "ghost", "password": "pw",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user must 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/access/user", map[string]any{
		"username": "operator", "password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create user status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/access/login", map[string]any{
		"username": "operator", "password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d body %s", w.Code, w.Body.String())
	}
	res := decodeResult(t, w)
	if res["token"] == "" || res["action"] != "user_logged_in" {
		t.Fatalf("login result %v", res)
	}
}

func TestHTTP_OneshotToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/access/oneshot_token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("oneshot status %d", w.Code)
	}
	res := decodeResult(t, w)
	token, _ := res["token"].(string)
	if token == "" {
		t.Fatalf("empty oneshot token")
	}
}
