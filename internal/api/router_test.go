package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tryon-ai/tryon/internal/core/task"
	"github.com/tryon-ai/tryon/internal/crypto"
	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/internal/remote"
	"github.com/tryon-ai/tryon/internal/store"
	"github.com/tryon-ai/tryon/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService mimics the generation service for one accessory task.
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/accessory-try-on/submit", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(types.SubmitResponse{TaskID: "svc-1", TaskType: types.KindAccessory, Message: "queued"})
	})
	mux.HandleFunc("/api/accessory-try-on/task/svc-1", func(w http.ResponseWriter, r *http.Request) {
		if deleted.Swap(true) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(types.DeleteResponse{TaskID: "svc-1", Success: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	s := store.NewStore(filepath.Join(t.TempDir(), "tryon.db"), logger.Discard())
	if err := s.Initialize(); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	settings := store.NewSettingsStore(s)
	prefs := settings.Namespace(store.NamespacePreference)
	deriver := crypto.NewKeyDeriver(crypto.StaticSignals{UserAgent: "router-test", Language: "en-US"})
	vault := crypto.NewVault(deriver, settings.Namespace(store.NamespaceCredential), 4, logger.Discard())

	svc := fakeService(t)
	rc := remote.NewClient(types.RemoteConfig{BaseURL: svc.URL + "/api", TimeoutSeconds: 5}, logger.Discard())

	client := task.NewClient(rc, vault, prefs, store.NewAssetStore(s), store.NewTaskList(s), task.DefaultEndpoints(), logger.Discard())
	r := NewRouter(client, []types.TaskKind{types.KindAccessory, types.KindClothing}, vault, prefs, logger.Discard())
	t.Cleanup(r.Close)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func submitRequest(t *testing.T) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct{ field, name, data string }{
		{types.SlotJewelry, "ring.png", "ring-bytes"},
		{types.SlotPerson, "me.png", "me-bytes"},
	} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", "image/png")
		part, _ := mw.CreatePart(h)
		part.Write([]byte(f.data))
	}
	mw.WriteField("accessory_type", "ring")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accessory/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRouter_Health(t *testing.T) {
	w := doJSON(t, newTestRouter(t).Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestRouter_Credentials(t *testing.T) {
	h := newTestRouter(t).Handler()

	w := doJSON(t, h, http.MethodGet, "/api/v1/credentials/vlApiKey", "")
	if !strings.Contains(w.Body.String(), `"configured":false`) {
		t.Errorf("Expected unconfigured, got %s", w.Body.String())
	}

	w = doJSON(t, h, http.MethodPut, "/api/v1/credentials/vlApiKey", `{"value":"sk-secret-123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/credentials/vlApiKey", "")
	if !strings.Contains(w.Body.String(), `"configured":true`) {
		t.Errorf("Expected configured, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "sk-secret-123") {
		t.Errorf("Plaintext leaked through the API: %s", w.Body.String())
	}

	doJSON(t, h, http.MethodDelete, "/api/v1/credentials/vlApiKey", "")
	w = doJSON(t, h, http.MethodGet, "/api/v1/credentials/vlApiKey", "")
	if !strings.Contains(w.Body.String(), `"configured":false`) {
		t.Errorf("Expected unconfigured after delete, got %s", w.Body.String())
	}

	if w := doJSON(t, h, http.MethodGet, "/api/v1/credentials/password", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown credential, got %d", w.Code)
	}
}

func TestRouter_Preferences(t *testing.T) {
	h := newTestRouter(t).Handler()

	w := doJSON(t, h, http.MethodGet, "/api/v1/preferences/vlModel", "")
	if !strings.Contains(w.Body.String(), types.DefaultVLModel) {
		t.Errorf("Expected default model, got %s", w.Body.String())
	}

	if w := doJSON(t, h, http.MethodPut, "/api/v1/preferences/theme", `{"value":"neon"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid theme, got %d", w.Code)
	}

	doJSON(t, h, http.MethodPut, "/api/v1/preferences/theme", `{"value":"dark"}`)
	w = doJSON(t, h, http.MethodGet, "/api/v1/preferences/theme", "")
	if !strings.Contains(w.Body.String(), `"value":"dark"`) {
		t.Errorf("Expected dark theme, got %s", w.Body.String())
	}
}

func TestRouter_SubmitCachesAndDeleteClears(t *testing.T) {
	h := newTestRouter(t).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, submitRequest(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from submit, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/tasks/svc-1/images", "")
	var entry types.CacheEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode manifest: %v (%s)", err, w.Body.String())
	}
	present := 0
	for _, s := range entry.Slots {
		if s.Present {
			present++
		}
	}
	if len(entry.Slots) != 3 || present != 2 {
		t.Errorf("Expected 3 slots with 2 present, got %+v", entry.Slots)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/tasks/svc-1/images/"+types.SlotPerson, "")
	if w.Body.String() != "me-bytes" || w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Unexpected image response %q (%s)", w.Body.String(), w.Header().Get("Content-Type"))
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/tasks", "")
	if !strings.Contains(w.Body.String(), `"id":"svc-1"`) {
		t.Errorf("Expected svc-1 in task list, got %s", w.Body.String())
	}

	if w := doJSON(t, h, http.MethodDelete, "/api/v1/accessory/task/svc-1", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from delete, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, h, http.MethodGet, "/api/v1/tasks/svc-1/images", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestRouter_SubmitRequiresImages(t *testing.T) {
	h := newTestRouter(t).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("accessory_type", "ring")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accessory/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_CacheSweep(t *testing.T) {
	w := doJSON(t, newTestRouter(t).Handler(), http.MethodPost, "/api/v1/cache/sweep", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"scanned":0`) {
		t.Errorf("Unexpected sweep response %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_WebSocketStreamsTaskEvents(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg types.WebSocketMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "initial_tasks" {
		t.Fatalf("Expected initial_tasks, got %+v err=%v", msg, err)
	}

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, submitRequest(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Submit failed: %d %s", w.Code, w.Body.String())
	}

	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "task_event" {
		t.Fatalf("Expected task_event, got %+v err=%v", msg, err)
	}
	payload, _ := json.Marshal(msg.Payload)
	if !strings.Contains(string(payload), `"task_id":"svc-1"`) {
		t.Errorf("Unexpected event payload %s", payload)
	}
}
