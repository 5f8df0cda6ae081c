package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/infrastructure/blobstore"
	"gamepub/internal/infrastructure/identity"
	"gamepub/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "gamepub/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "gamepub/internal/infrastructure/persistence/sqlite/uow"
	"gamepub/internal/usecase/upload"
	"gamepub/internal/usecase/versions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	dev    string
	other  string
	qc     string
}

func setupServer(t *testing.T) testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(dir, "gamepub.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	blobs, err := blobstore.NewFilesystemStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}
	ids, err := identity.NewJWTProvider("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTProvider() error = %v", err)
	}

	svc := versions.NewService(sqliterepo.NewVersionRepository(db), sqliteuow.NewUnitOfWork(db), nil)
	registry := upload.NewRegistry(blobs, svc, nil, time.Hour, upload.Options{MaxFileSize: 1 << 20})
	srv := New(Config{Addr: "127.0.0.1:0", MaxUploadBytes: 1 << 20}, svc, registry, ids)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})

	issue := func(user string, roles ...version.Role) string {
		token, err := ids.IssueToken(user, roles)
		if err != nil {
			t.Fatalf("IssueToken() error = %v", err)
		}
		return token
	}
	return testEnv{
		server: srv,
		dev:    issue("dev-1", version.RoleDeveloper),
		other:  issue("dev-2", version.RoleDeveloper),
		qc:     issue("qc-1", version.RoleQC),
	}
}

func doJSON(t *testing.T, h http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doFile(t *testing.T, h http.Handler, path string, token string, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func gameArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"index.html":    "<html></html>",
		"manifest.json": `{"id":"com.x.y","version":"1.0.0","title":"Counting Stars","runtime":"html5"}`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func TestHealthAndAuthentication(t *testing.T) {
	env := setupServer(t)
	h := env.server.Handler()

	if rec := doJSON(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/games", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Kind != string(errs.KindUnauthenticated) {
		t.Fatalf("no token body = %#v", body)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/games", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/games", env.dev, nil); rec.Code != http.StatusOK {
		t.Fatalf("valid token = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}
}

func TestGamesAndVersionsEndpoints(t *testing.T) {
	env := setupServer(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/games", env.dev, gin.H{"gameId": "com.x.y", "title": "X"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/games", env.dev, gin.H{"gameId": "com.x.y"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/games", env.dev, gin.H{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing gameId = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/games/com.x.y/versions", env.dev, gin.H{"version": "1.0.0"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create version = %d %s", rec.Code, rec.Body.String())
	}
	created := decode[versions.VersionDetail](t, rec)
	if created.Status != version.StatusDraft {
		t.Fatalf("created status = %s", created.Status)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/games/com.x.y/versions", env.other, gin.H{"version": "1.1.0"}); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger create version = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/versions/missing", env.dev, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing version = %d", rec.Code)
	}

	base := "/api/v1/versions/" + created.ID
	rec = doJSON(t, h, http.MethodPatch, base+"/metadata", env.dev, gin.H{"title": "Counting Stars", "skills": []string{"counting"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit metadata = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[versions.VersionDetail](t, rec); got.Metadata.Title != "Counting Stars" {
		t.Fatalf("edited metadata = %#v", got.Metadata)
	}

	rec = doJSON(t, h, http.MethodPost, base+"/transitions", env.dev, gin.H{"action": "submit"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("submit without archive = %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, base+"/transitions", env.dev, gin.H{"action": "fly"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, base+"/transitions", env.dev, gin.H{"action": "publish"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("publish from draft = %d %s", rec.Code, rec.Body.String())
	}
	if body := decode[errorResponse](t, rec); body.Kind != string(errs.KindInvalidTransition) {
		t.Fatalf("publish from draft body = %#v", body)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/history", env.qc, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	history := decode[struct {
		History []versions.HistoryItem `json:"history"`
	}](t, rec)
	if len(history.History) != 2 {
		t.Fatalf("history = %#v", history.History)
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/v1/games/com.x.y/versions", env.qc, nil); rec.Code != http.StatusOK {
		t.Fatalf("list versions = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, base+"/qc-reports?limit=-1", env.qc, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", rec.Code)
	}
}

func TestUploadSessionEndpoints(t *testing.T) {
	env := setupServer(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/uploads", env.dev, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create upload = %d %s", rec.Code, rec.Body.String())
	}
	session := decode[struct {
		ID    string       `json:"id"`
		State upload.State `json:"state"`
	}](t, rec)
	if session.State.Stage != upload.StageIdle {
		t.Fatalf("initial stage = %s", session.State.Stage)
	}
	base := "/api/v1/uploads/" + session.ID

	if rec := doJSON(t, h, http.MethodGet, base, env.other, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign session = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/validate", env.dev, nil)
	if got := decode[upload.ValidationResult](t, rec); got.Valid || len(got.Errors) == 0 {
		t.Fatalf("validate empty session = %#v", got)
	}

	rec = doFile(t, h, base+"/file", env.dev, "game.txt", []byte("hello"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("wrong extension = %d %s", rec.Code, rec.Body.String())
	}

	rec = doFile(t, h, base+"/file", env.dev, "game.zip", gameArchive(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("set file = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[upload.FileCheckResult](t, rec); !got.Valid {
		t.Fatalf("set file result = %#v", got)
	}

	rec = doJSON(t, h, http.MethodPut, base+"/metadata", env.dev, upload.Metadata{Title: "Counting Stars", Grade: "2"})
	if got := decode[upload.State](t, rec); got.Manifest.GameID != "com.x.y" || got.Manifest.EntryPoint != "index.html" {
		t.Fatalf("state after metadata = %#v", got)
	}

	rec = doJSON(t, h, http.MethodPost, base+"/start", env.dev, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d %s", rec.Code, rec.Body.String())
	}
	final := decode[upload.State](t, rec)
	if final.Stage != upload.StageComplete || final.Progress != 100 || final.VersionID == "" {
		t.Fatalf("final state = %#v", final)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/versions/"+final.VersionID, env.dev, nil)
	v := decode[versions.VersionDetail](t, rec)
	if !strings.HasPrefix(v.StoragePath, "com.x.y/1.0.0/") || !strings.HasSuffix(v.StoragePath, "/game.zip") || v.Metadata.Grade != "2" || v.Status != version.StatusDraft {
		t.Fatalf("uploaded version = %#v", v)
	}

	if rec := doJSON(t, h, http.MethodDelete, base, env.dev, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, base, env.dev, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session = %d", rec.Code)
	}
}

func TestValidateArchiveEndpoint(t *testing.T) {
	env := setupServer(t)
	h := env.server.Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "game.zip")
	_, _ = fw.Write(gameArchive(t))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/archives/validate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.dev)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate = %d %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Valid     bool   `json:"valid"`
		EntryFile string `json:"entryFile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid || result.EntryFile != "index.html" {
		t.Fatalf("validate result = %s", rec.Body.String())
	}

	if rec := doJSON(t, h, http.MethodPost, "/api/v1/archives/validate", env.dev, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("validate without file = %d", rec.Code)
	}
}

func TestUploadEventsStream(t *testing.T) {
	env := setupServer(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/api/v1/uploads", env.dev, nil)
	session := decode[struct {
		ID string `json:"id"`
	}](t, rec)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/uploads/" + session.ID + "/events?access_token=" + env.dev
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Type != "state" || first.State.Stage != upload.StageIdle {
		t.Fatalf("first message = %#v", first)
	}

	rec = doJSON(t, env.server.Handler(), http.MethodPut, "/api/v1/uploads/"+session.ID+"/manifest", env.dev,
		upload.Manifest{GameID: "com.x.y", Version: "1.0.0", Runtime: "html5", EntryPoint: "index.html"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update manifest = %d", rec.Code)
	}

	var next streamMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read next: %v", err)
	}
	if next.State.Manifest.GameID != "com.x.y" || next.State.Manifest.Version != "1.0.0" {
		t.Fatalf("next message = %#v", next)
	}

	if _, _, err := websocket.DefaultDialer.Dial(wsURL[:strings.Index(wsURL, "?")], nil); err == nil {
		t.Fatalf("dial without token succeeded")
	}
}

func TestStatusForKinds(t *testing.T) {
	cases := map[errs.Kind]int{
		errs.KindValidation:        http.StatusBadRequest,
		errs.KindUnauthenticated:   http.StatusUnauthorized,
		errs.KindForbidden:         http.StatusForbidden,
		errs.KindNotFound:          http.StatusNotFound,
		errs.KindInvalidTransition: http.StatusConflict,
		errs.KindConflict:          http.StatusConflict,
		errs.KindUploadStage:       http.StatusBadGateway,
		errs.KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusFor(kind); got != want {
			t.Fatalf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}

	status, body := errorBody(errs.New(errs.KindInternal, "db password leaked"))
	if status != http.StatusInternalServerError || body["error"] != "internal error" {
		t.Fatalf("errorBody(internal) = %d %#v", status, body)
	}
}
