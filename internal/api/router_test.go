package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"lotto-service/internal/api"
	"lotto-service/internal/config"
	"lotto-service/internal/model"
	"lotto-service/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Msg   string          `json:"msg"`
	Error string          `json:"error"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "lotto.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	cfg := &config.Config{
		Speech: config.SpeechConfig{ConfidenceThreshold: 80, AmbiguityDelta: 5, MaxCandidates: 3},
	}
	r := gin.New()
	api.RegisterRoutes(r, service.NewContainer(db, nil, cfg))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return serve(t, r, req)
}

func serve(t *testing.T, r *gin.Engine, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestPing(t *testing.T) {
	r := newRouter(t)
	status, env := doJSON(t, r, http.MethodGet, "/ping", nil)
	if status != http.StatusOK || env.Code != http.StatusOK {
		t.Fatalf("unexpected ping response: %d %+v", status, env)
	}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	r := newRouter(t)

	status, env := doJSON(t, r, http.MethodPost, "/games", gin.H{
		"players":    []string{"Альберт", "Паша", "Лена", "Оля"},
		"card_price": 1000,
		"line_bonus": 500,
	})
	if status != http.StatusCreated {
		t.Fatalf("start game: %d %+v", status, env)
	}
	var created struct {
		ID int64 `json:"game_id"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil || created.ID == 0 {
		t.Fatalf("unexpected game payload %s: %v", env.Data, err)
	}
	base := fmt.Sprintf("/games/%d", created.ID)

	if status, env = doJSON(t, r, http.MethodPost, base+"/events/line", gin.H{"players": []string{"Альберт"}}); status != http.StatusOK {
		t.Fatalf("line event: %d %+v", status, env)
	}
	status, env = doJSON(t, r, http.MethodPost, base+"/events/line", gin.H{"players": []string{"Альберт"}})
	if status != http.StatusBadRequest || env.Error != "invalid_event" {
		t.Fatalf("expected repeated line closer rejection, got %d %+v", status, env)
	}

	status, env = doJSON(t, r, http.MethodPost, base+"/finish", nil)
	if status != http.StatusConflict || env.Error != "invalid_game_state" {
		t.Fatalf("expected finish without card winner to conflict, got %d %+v", status, env)
	}
	status, env = doJSON(t, r, http.MethodGet, base+"/settlement", nil)
	if status != http.StatusConflict {
		t.Fatalf("expected settlement of active game to conflict, got %d %+v", status, env)
	}

	if status, env = doJSON(t, r, http.MethodPost, base+"/events/card", gin.H{"players": []string{"Паша"}}); status != http.StatusOK {
		t.Fatalf("card event: %d %+v", status, env)
	}
	if status, env = doJSON(t, r, http.MethodPost, base+"/finish", nil); status != http.StatusOK {
		t.Fatalf("finish: %d %+v", status, env)
	}

	status, env = doJSON(t, r, http.MethodGet, base+"/settlement", nil)
	if status != http.StatusOK {
		t.Fatalf("settlement: %d %+v", status, env)
	}
	var settlement struct {
		Net       map[string]int64 `json:"net"`
		Transfers []struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Amount int64  `json:"amount"`
		} `json:"transfers"`
	}
	if err := json.Unmarshal(env.Data, &settlement); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	want := map[string]int64{"Альберт": 500, "Паша": 2500, "Лена": -1500, "Оля": -1500}
	for name, net := range want {
		if settlement.Net[name] != net {
			t.Fatalf("net[%s] = %d, want %d (all: %v)", name, settlement.Net[name], net, settlement.Net)
		}
	}
	var moved int64
	for _, tr := range settlement.Transfers {
		if tr.Amount <= 0 {
			t.Fatalf("non-positive transfer %+v", tr)
		}
		moved += tr.Amount
	}
	if moved != 3000 {
		t.Fatalf("transfers move %d, want 3000", moved)
	}

	status, env = doJSON(t, r, http.MethodPost, base+"/events/card", gin.H{"players": []string{"Лена"}})
	if status != http.StatusConflict {
		t.Fatalf("expected event on finished game to conflict, got %d %+v", status, env)
	}
}

func TestStartGameValidation(t *testing.T) {
	r := newRouter(t)

	cases := []gin.H{
		{"players": []string{"a", "  "}, "card_price": 100, "line_bonus": 10},
		{"players": []string{"a"}, "card_price": 100, "line_bonus": 10},
		{"players": []string{"a", "b"}, "card_price": 0, "line_bonus": 10},
		{"players": []string{"a", " a "}, "card_price": 100, "line_bonus": 10},
		{"players": []string{"a", "b"}, "card_price": int64(1) << 62, "line_bonus": 10},
		{"players": []string{"a", "b"}, "card_price": 100, "line_bonus": int64(1) << 62},
	}
	for i, body := range cases {
		status, env := doJSON(t, r, http.MethodPost, "/games", body)
		if status != http.StatusBadRequest || env.Error != "invalid_game" {
			t.Fatalf("case %d: expected invalid_game, got %d %+v", i, status, env)
		}
	}
}

func TestGameNotFound(t *testing.T) {
	r := newRouter(t)

	status, env := doJSON(t, r, http.MethodGet, "/games/999", nil)
	if status != http.StatusNotFound || env.Error != "not_found" {
		t.Fatalf("expected not found, got %d %+v", status, env)
	}
	status, _ = doJSON(t, r, http.MethodGet, "/games/abc", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected bad request for malformed id, got %d", status)
	}
	status, _ = doJSON(t, r, http.MethodGet, "/sessions/missing", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected missing session to be 404, got %d", status)
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	r := newRouter(t)

	status, env := doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"players":    []string{"Аня", "Боря"},
		"card_price": 100,
		"line_bonus": 10,
	})
	if status != http.StatusCreated {
		t.Fatalf("create session: %d %+v", status, env)
	}
	var sess struct {
		ID string `json:"session_id"`
	}
	if err := json.Unmarshal(env.Data, &sess); err != nil || sess.ID == "" {
		t.Fatalf("unexpected session payload %s: %v", env.Data, err)
	}
	base := "/sessions/" + sess.ID

	if status, env = doJSON(t, r, http.MethodPost, base+"/card", gin.H{"players": []string{"Боря"}}); status != http.StatusOK {
		t.Fatalf("session card: %d %+v", status, env)
	}
	if status, env = doJSON(t, r, http.MethodPost, base+"/finish", nil); status != http.StatusOK {
		t.Fatalf("session finish: %d %+v", status, env)
	}
	if status, env = doJSON(t, r, http.MethodPost, base+"/line", gin.H{"players": []string{"Аня"}}); status != http.StatusConflict {
		t.Fatalf("expected no active game conflict, got %d %+v", status, env)
	}
	if status, env = doJSON(t, r, http.MethodPost, base+"/new-game", nil); status != http.StatusCreated {
		t.Fatalf("new game: %d %+v", status, env)
	}

	status, env = doJSON(t, r, http.MethodGet, base, nil)
	if status != http.StatusOK {
		t.Fatalf("get session: %d %+v", status, env)
	}
	var view struct {
		ActiveGame *struct {
			GameNumber int `json:"game_number"`
		} `json:"active_game"`
		History []struct {
			Net map[string]int64 `json:"net"`
		} `json:"history"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if view.ActiveGame == nil || view.ActiveGame.GameNumber != 2 {
		t.Fatalf("expected game #2 active, got %+v", view.ActiveGame)
	}
	if len(view.History) != 1 || view.History[0].Net["Боря"] != 100 || view.History[0].Net["Аня"] != -100 {
		t.Fatalf("unexpected history: %+v", view.History)
	}

	status, env = doJSON(t, r, http.MethodGet, "/stats/balance?player=Боря", nil)
	if status != http.StatusOK {
		t.Fatalf("stats balance: %d %+v", status, env)
	}
	var report struct {
		TotalBalance int64 `json:"total_balance"`
		GamesCount   int64 `json:"games_count"`
	}
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalBalance != 100 || report.GamesCount != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if status, _ = doJSON(t, r, http.MethodGet, "/stats/balance?period_days=0", nil); status != http.StatusBadRequest {
		t.Fatalf("expected invalid period to be rejected, got %d", status)
	}
}

func TestInterpret(t *testing.T) {
	r := newRouter(t)

	status, env := doJSON(t, r, http.MethodPost, "/speech/interpret", gin.H{
		"text":    "Закрыл линию, Паша!",
		"players": []string{"Альберт", "Паша", "Лена"},
	})
	if status != http.StatusOK {
		t.Fatalf("interpret: %d %+v", status, env)
	}
	var out struct {
		Intent   string  `json:"intent"`
		Status   string  `json:"status"`
		PlayerID *string `json:"player_id"`
		Endpoint *string `json:"event_endpoint"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode interpretation: %v", err)
	}
	if out.Intent != "close_line" || out.PlayerID == nil || *out.PlayerID != "Паша" {
		t.Fatalf("unexpected interpretation: %+v", out)
	}
	if out.Endpoint == nil || *out.Endpoint != "/games/{game_id}/events/line" {
		t.Fatalf("unexpected endpoint: %v", out.Endpoint)
	}
}

func uploadRequest(t *testing.T, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="voice.webm"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestTranscribe(t *testing.T) {
	r := newRouter(t)

	status, env := serve(t, r, uploadRequest(t, "audio/ogg", []byte("x")))
	if status != http.StatusBadRequest || env.Error != "unsupported_audio_type" {
		t.Fatalf("expected unsupported type, got %d %+v", status, env)
	}

	status, env = serve(t, r, uploadRequest(t, "audio/webm", nil))
	if status != http.StatusBadRequest || env.Error != "empty_audio_payload" {
		t.Fatalf("expected empty payload, got %d %+v", status, env)
	}

	status, env = serve(t, r, uploadRequest(t, "audio/webm", []byte("RIFF")))
	if status != http.StatusOK {
		t.Fatalf("transcribe: %d %+v", status, env)
	}
	var res struct {
		Provider string `json:"provider"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode transcription: %v", err)
	}
	if res.Provider != "mock-media-recorder" {
		t.Fatalf("expected mock fallback without api key, got %q", res.Provider)
	}
}
