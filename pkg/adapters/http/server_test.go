package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/internal/testutils"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, botOpts []formbot.Option, opts ...Option) http.Handler {
	t.Helper()
	return NewHandler(testutils.NewBot(t, botOpts...), opts...)
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return serve(h, newRequest(t, method, path, body))
}

// doAs sends the request with Basic credentials.
func doAs(t *testing.T, h http.Handler, userID, secret, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, method, path, body)
	req.SetBasicAuth(userID, secret)
	return serve(h, req)
}

func basicAuth(userID, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userID+":"+secret))
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotNil(t, doc.Paths.Find("/api/chat"))
	assert.NotNil(t, doc.Paths.Find("/api/forms/generate"))
	assert.Contains(t, doc.Components.SecuritySchemes, "basicAuth")
}

func TestHealthAndInfo(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody[healthResponse](t, w).Status)

	w = do(t, h, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeBody[map[string]string](t, w)
	assert.Equal(t, "formbot", info["app"])
	assert.Equal(t, formbot.Version, info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	w = do(t, h, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestHealth_FailingCheck(t *testing.T) {
	h := newTestHandler(t, nil,
		WithCheck("store", func(context.Context) error { return nil }),
		WithCheck("discord", func(context.Context) error { return errors.New("not connected") }),
	)

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeBody[healthResponse](t, w)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.Equal(t, "not connected", resp.Checks["discord"])
}

func TestForms(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodGet, "/api/forms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[[]domain.Form](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "onboarding", list[0].ID)
	assert.Equal(t, "survey", list[1].ID)

	w = do(t, h, http.MethodGet, "/api/forms/survey", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Quick Survey", decodeBody[domain.Form](t, w).Name)

	w = do(t, h, http.MethodGet, "/api/forms/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormFlow(t *testing.T) {
	bot := testutils.NewBot(t)
	h := NewHandler(bot)
	require.NoError(t, bot.Register(context.Background(), "u1", "Jane", "s3cret"))
	do := func(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
		t.Helper()
		return doAs(t, h, "u1", "s3cret", method, path, body)
	}

	w := do(t, h, http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	start := decodeBody[domain.StartResult](t, w)
	assert.Equal(t, "session_1", start.SessionID)
	assert.Equal(t, "I'm collecting information for Quick Survey. What's your email address?", start.Message)

	w = do(t, h, http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "You already have a form in progress. Please finish it or cancel it first.",
		decodeBody[errorResponse](t, w).Details)

	w = do(t, h, http.MethodPost, "/api/answer", map[string]string{"user_id": "u1", "text": "nope"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[domain.SubmitResult](t, w).Accepted)

	w = do(t, h, http.MethodPost, "/api/answer", map[string]string{"user_id": "u1", "text": "jane@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[domain.SubmitResult](t, w).Accepted)

	w = do(t, h, http.MethodPost, "/api/answer", map[string]string{"user_id": "u1", "text": "no"})
	require.Equal(t, http.StatusOK, w.Code)
	done := decodeBody[domain.SubmitResult](t, w)
	assert.True(t, done.Done)
	assert.Equal(t, "no", done.Answers["happy"])

	w = do(t, h, http.MethodGet, "/api/users/u1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessions := decodeBody[[]domain.Session](t, w)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionCompleted, sessions[0].Status)
}

func TestFormErrors(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown form", http.MethodPost, "/api/forms/missing/start", map[string]string{"user_id": "web:u1"}, http.StatusNotFound},
		{"missing user", http.MethodPost, "/api/forms/survey/start", map[string]string{}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/forms/survey/start", map[string]string{"user": "web:u1"}, http.StatusBadRequest},
		{"answer without session", http.MethodPost, "/api/answer", map[string]string{"user_id": "web:u2", "text": "hi"}, http.StatusNotFound},
		{"answer without text", http.MethodPost, "/api/answer", map[string]string{"user_id": "web:u2"}, http.StatusBadRequest},
		{"cancel without session", http.MethodPost, "/api/cancel", map[string]string{"user_id": "web:u2"}, http.StatusNotFound},
		{"named user without credentials", http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "u1"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCancel(t *testing.T) {
	h := newTestHandler(t, nil)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "web:u1"}).Code)

	w := do(t, h, http.MethodPost, "/api/cancel", map[string]string{"user_id": "web:u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session_1", decodeBody[map[string]string](t, w)["session_id"])

	w = do(t, h, http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "web:u1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "session_2", decodeBody[domain.StartResult](t, w).SessionID)
}

func TestUsers(t *testing.T) {
	h := newTestHandler(t, []formbot.Option{formbot.WithRegistrationRequired(true)})

	w := do(t, h, http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "web:u1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodPost, "/api/users", map[string]string{"user_id": "u1", "name": "Jane", "secret": "s3cret"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/users", map[string]string{"user_id": "u1", "secret": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/api/users", map[string]string{"user_id": "u3", "secret": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/users/u1/authenticate", map[string]string{"secret": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[map[string]bool](t, w)["authenticated"])

	w = do(t, h, http.MethodPost, "/api/users/u1/authenticate", map[string]string{"secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, decodeBody[map[string]bool](t, w)["authenticated"])

	w = doAs(t, h, "u1", "s3cret", http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestChat(t *testing.T) {
	gen := &testutils.Generator{Reply: "Hello from the assistant"}
	h := newTestHandler(t, []formbot.Option{formbot.WithGenerator(gen)})

	w := do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "username": "jane"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Hello from the assistant", decodeBody[map[string]string](t, w)["response"])

	w = do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decodeBody[errorResponse](t, w).Error)

	w = do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": strings.Repeat("a", 2001), "username": "jane"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Message too long", decodeBody[errorResponse](t, w).Error)

	w = do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "username": strings.Repeat("j", 33)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username too long", decodeBody[errorResponse](t, w).Error)
}

func TestChat_AnswersActiveSession(t *testing.T) {
	bot := testutils.NewBot(t)
	h := NewHandler(bot)

	_, err := bot.StartSession(context.Background(), "web:jane", "survey")
	require.NoError(t, err)

	w := do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "jane@example.com", "username": "jane"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Are you happy with the service?", decodeBody[map[string]string](t, w)["response"])
}

func TestChat_Unavailable(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "username": "jane"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "I can't chat right now. Please try again later.", decodeBody[errorResponse](t, w).Details)
}

func TestChat_RateLimit(t *testing.T) {
	gen := &testutils.Generator{Reply: "ok"}
	h := newTestHandler(t, []formbot.Option{formbot.WithGenerator(gen)}, WithChatRateLimit(2, time.Minute))

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "username": "jane"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "username": "jane"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", decodeBody[errorResponse](t, w).Error)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/forms", nil).Code)
}

func TestMetricsAndCORS(t *testing.T) {
	h := newTestHandler(t, nil,
		WithAllowedOrigins("https://example.com"),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("formbot_sessions_started_total 0\n"))
		})),
	)

	w := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "formbot_sessions_started_total")

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/users/web:u1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				return data
			}
		}
	}
	assert.Equal(t, "connected", readData())

	body := strings.NewReader(`{"user_id":"web:u1"}`)
	startResp, err := http.Post(srv.URL+"/api/forms/survey/start", "application/json", body)
	require.NoError(t, err)
	startResp.Body.Close()
	require.Equal(t, http.StatusCreated, startResp.StatusCode)

	var ev streamEvent
	require.NoError(t, json.Unmarshal([]byte(readData()), &ev))
	assert.Equal(t, "message", ev.Type)
	assert.Contains(t, ev.Text, "What's your email address?")
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("u1")
	other, cancelOther := sm.Subscribe("u2")
	defer cancelOther()

	for i := 0; i < 20; i++ {
		sm.Broadcast("u1", "msg")
	}
	assert.Len(t, ch, 10)
	assert.Empty(t, other)

	cancel()
	drained := 0
	for range ch {
		drained++
	}
	assert.Equal(t, 10, drained)

	// Broadcasting to a user with no subscribers is a no-op.
	sm.Broadcast("u1", "after unsubscribe")
}

func TestServer_Mirror(t *testing.T) {
	srv := NewServer(testutils.NewBot(t))
	ch, cancel := srv.Streams().Subscribe("discord-42")
	defer cancel()

	srv.Mirror("discord-42", "Hello from Discord")
	srv.Mirror("discord-42", "")

	require.Len(t, ch, 1)
	assert.JSONEq(t, `{"type":"message","text":"Hello from Discord"}`, <-ch)
}

func TestUserRoutes_RequireCredentials(t *testing.T) {
	bot := testutils.NewBot(t)
	h := NewHandler(bot)
	ctx := context.Background()
	require.NoError(t, bot.Register(ctx, "alice", "Alice", "s3cret"))
	_, err := bot.StartSession(ctx, "alice", "survey")
	require.NoError(t, err)
	_, err = bot.SubmitAnswer(ctx, "alice", "alice@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"sessions", http.MethodGet, "/api/users/alice/sessions", nil},
		{"events", http.MethodGet, "/api/users/alice/events", nil},
		{"start", http.MethodPost, "/api/forms/survey/start", map[string]string{"user_id": "alice"}},
		{"answer", http.MethodPost, "/api/answer", map[string]string{"user_id": "alice", "text": "yes"}},
		{"cancel", http.MethodPost, "/api/cancel", map[string]string{"user_id": "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+" anonymous", func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="formbot"`, w.Header().Get("WWW-Authenticate"))
			assert.NotContains(t, w.Body.String(), "alice@example.com")
		})
		t.Run(tt.name+" wrong secret", func(t *testing.T) {
			w := doAs(t, h, "alice", "guess", tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Invalid credentials", decodeBody[errorResponse](t, w).Details)
		})
	}

	// Another registered user cannot act as alice.
	require.NoError(t, bot.Register(ctx, "mallory", "Mallory", "m4llory"))
	w := doAs(t, h, "mallory", "m4llory", http.MethodPost, "/api/answer", map[string]string{"user_id": "alice", "text": "no"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sessions, err := bot.ListSessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionInProgress, sessions[0].Status)
	assert.Equal(t, map[string]string{"email": "alice@example.com"}, sessions[0].Answers)

	w = doAs(t, h, "alice", "s3cret", http.MethodGet, "/api/users/alice/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestGenerateAndCreateForm(t *testing.T) {
	bot := testutils.NewBot(t)
	h := NewHandler(bot)
	require.NoError(t, bot.Register(context.Background(), "dev", "Dev", "s3cret"))

	w := do(t, h, http.MethodPost, "/api/forms/generate", map[string]string{"description": "phone"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, h, http.MethodPost, "/api/forms", map[string]any{"id": "event", "name": "Event"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doAs(t, h, "dev", "s3cret", http.MethodPost, "/api/forms/generate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doAs(t, h, "dev", "s3cret", http.MethodPost, "/api/forms/generate",
		map[string]string{"description": "Event signup with phone and address"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft := decodeBody[domain.FormDraft](t, w)
	assert.Equal(t, domain.DraftTemplate, draft.Source)
	require.Len(t, draft.Fields, 4)

	form := domain.Form{ID: "event", Name: "Event Signup", Fields: draft.Fields}
	w = doAs(t, h, "dev", "s3cret", http.MethodPost, "/api/forms", form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "event", decodeBody[domain.Form](t, w).ID)

	w = do(t, h, http.MethodGet, "/api/forms/event", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event Signup", decodeBody[domain.Form](t, w).Name)

	w = do(t, h, http.MethodPost, "/api/forms/event/start", map[string]string{"user_id": "web:guest"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "I'm collecting information for Event Signup. What's your full name?",
		decodeBody[domain.StartResult](t, w).Message)

	w = doAs(t, h, "dev", "s3cret", http.MethodPost, "/api/forms", form)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doAs(t, h, "dev", "s3cret", http.MethodPost, "/api/forms", domain.Form{ID: "bad", Name: "Bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody[errorResponse](t, w).Details, "has no fields")
}

func TestGenerateForm_UsesGenerator(t *testing.T) {
	gen := &testutils.Generator{Reply: `[{"name": "team", "type": "string", "prompt": "Which team are you on?"}]`}
	bot := testutils.NewBot(t, formbot.WithGenerator(gen))
	h := NewHandler(bot)
	require.NoError(t, bot.Register(context.Background(), "dev", "Dev", "s3cret"))

	w := doAs(t, h, "dev", "s3cret", http.MethodPost, "/api/forms/generate", map[string]string{"description": "team roster"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft := decodeBody[domain.FormDraft](t, w)
	assert.Equal(t, domain.DraftGenerated, draft.Source)
	require.Len(t, draft.Fields, 1)
	assert.Equal(t, "team", draft.Fields[0].Name)
	assert.True(t, draft.Fields[0].Required)
}

func TestSanitizerOption(t *testing.T) {
	gen := &testutils.Generator{Reply: "ok"}
	h := newTestHandler(t, []formbot.Option{formbot.WithGenerator(gen)}, WithSanitizer(runner.NewSanitizer(5)))

	w := do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "username": "jane"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hello there", "username": "jane"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody[errorResponse](t, w).Details, "input exceeds maximum allowed size")
}
