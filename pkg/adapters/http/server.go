// Package http exposes formbot over a chi JSON API, server-sent events and a websocket chat.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes       = 64 << 10
	maxChatMessage     = 2000
	maxChatUsername    = 32
	defaultChatLimit   = 100
	defaultChatWindow  = 15 * time.Minute
	webUserPrefix      = "web:"
	wsUserPrefix       = "ws:"
	healthCheckTimeout = 3 * time.Second
)

// Bot is the subset of *formbot.Bot the API serves.
type Bot interface {
	StartSession(ctx context.Context, userID, formID string) (*domain.StartResult, error)
	SubmitAnswer(ctx context.Context, userID, raw string) (*domain.SubmitResult, error)
	CancelSession(ctx context.Context, userID string) (string, error)
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	Forms() ([]*domain.Form, error)
	Form(id string) (*domain.Form, error)
	GenerateForm(ctx context.Context, userID, description string) (*domain.FormDraft, error)
	AddForm(f *domain.Form) error
	Handle(ctx context.Context, userID, text string, sink domain.MessageSink) error
	Register(ctx context.Context, userID, name, secret string) error
	Authenticate(ctx context.Context, userID, secret string) (bool, error)
}

var _ Bot = (*formbot.Bot)(nil)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Server holds the handlers' dependencies.
type Server struct {
	bot     Bot
	streams *StreamManager
	logger  *slog.Logger
	started time.Time

	origins    []string
	metrics    http.Handler
	chatLimit  int
	chatWindow time.Duration
	checksMu   sync.RWMutex
	checks     map[string]Check
	wsOrigins  []string
	sanitizer  runner.Sanitizer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAllowedOrigins restricts CORS and websocket origins (default "*").
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
			s.wsOrigins = origins
		}
	}
}

// WithMetricsHandler replaces the /metrics handler (default promhttp.Handler()).
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithChatRateLimit sets the per-client limit on /api/chat.
func WithChatRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.chatLimit = requests
		s.chatWindow = window
	}
}

// WithSanitizer sets the limits applied to answers and chat messages.
func WithSanitizer(sz runner.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// WithCheck adds a named dependency check to /health.
func WithCheck(name string, c Check) Option {
	return func(s *Server) {
		s.checks[name] = c
	}
}

// NewServer creates the server state. Most callers want NewHandler.
func NewServer(bot Bot, opts ...Option) *Server {
	s := &Server{
		bot:        bot,
		streams:    NewStreamManager(),
		logger:     logging.NewNop(),
		started:    time.Now(),
		origins:    []string{"*"},
		wsOrigins:  []string{"*"},
		metrics:    promhttp.Handler(),
		chatLimit:  defaultChatLimit,
		chatWindow: defaultChatWindow,
		checks:     make(map[string]Check),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCheck registers a health check after construction, e.g. once the Discord session is open.
func (s *Server) AddCheck(name string, c Check) {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	s.checks[name] = c
}

// Streams exposes the SSE fan-out so other transports can mirror their messages.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// NewHandler creates a new HTTP handler for the bot.
func NewHandler(bot Bot, opts ...Option) http.Handler {
	return NewServer(bot, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.With(s.identify).Get("/ws", s.serveWebsocket)

	limit := httprate.Limit(s.chatLimit, s.chatWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests", Details: "Please try again later"})
		}),
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/forms", s.listForms)
		r.Get("/forms/{formID}", s.getForm)
		r.Post("/users", s.registerUser)
		r.Post("/users/{userID}/authenticate", s.authenticate)

		// User-scoped routes: named users authenticate with Basic auth.
		r.Group(func(r chi.Router) {
			r.Use(s.identify)
			r.Post("/forms/{formID}/start", s.startForm)
			r.Post("/answer", s.submitAnswer)
			r.Post("/cancel", s.cancelSession)
			r.Get("/users/{userID}/sessions", s.listSessions)
			r.Get("/users/{userID}/events", s.subscribeEvents)

			r.Post("/forms", s.createForm)
			r.With(limit).Post("/forms/generate", s.generateForm)
		})

		r.With(limit).Post("/chat", s.chat)
	})
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, o := range s.origins {
			if o == "*" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				break
			}
			if o == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				break
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// decode reads a JSON body into v, rejecting unknown fields and oversize bodies.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func required(w http.ResponseWriter, fields map[string]string) bool {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Missing required fields",
			Details: strings.Join(missing, ", ") + " required",
		})
		return false
	}
	return true
}

type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// getHealth handles GET /health.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	status := http.StatusOK

	s.checksMu.RLock()
	defer s.checksMu.RUnlock()
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// getInfo handles GET /info.
func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "formbot",
		"version":     strings.TrimSpace(formbot.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	list, err := s.bot.Forms()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getForm(w http.ResponseWriter, r *http.Request) {
	f, err := s.bot.Form(chi.URLParam(r, "formID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type generateFormRequest struct {
	Description string `json:"description"`
}

// generateForm handles POST /api/forms/generate.
func (s *Server) generateForm(w http.ResponseWriter, r *http.Request) {
	var body generateFormRequest
	if !decode(w, r, &body) || !required(w, map[string]string{"description": body.Description}) {
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if utf8.RuneCountInString(body.Description) > maxChatMessage {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Description too long", Details: "Description must be less than 2000 characters"})
		return
	}
	draft, err := s.bot.GenerateForm(r.Context(), userID, body.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// createForm handles POST /api/forms: the form is validated and registered for
// every transport until the process restarts.
func (s *Server) createForm(w http.ResponseWriter, r *http.Request) {
	var form domain.Form
	if !decode(w, r, &form) {
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.bot.AddForm(&form); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("Form created", "form_id", form.ID, "user_id", userID)
	writeJSON(w, http.StatusCreated, &form)
}

type userRef struct {
	UserID string `json:"user_id"`
}

func (s *Server) startForm(w http.ResponseWriter, r *http.Request) {
	var body userRef
	if !decode(w, r, &body) || !required(w, map[string]string{"user_id": body.UserID}) || !s.authorize(w, r, body.UserID) {
		return
	}
	res, err := s.bot.StartSession(r.Context(), body.UserID, chi.URLParam(r, "formID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(body.UserID, "message", res.Message)
	writeJSON(w, http.StatusCreated, res)
}

type answerRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if !decode(w, r, &body) || !required(w, map[string]string{"user_id": body.UserID, "text": body.Text}) || !s.authorize(w, r, body.UserID) {
		return
	}
	text, err := s.sanitizer.Sanitize(body.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.bot.SubmitAnswer(r.Context(), body.UserID, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(body.UserID, "message", res.Message)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	var body userRef
	if !decode(w, r, &body) || !required(w, map[string]string{"user_id": body.UserID}) || !s.authorize(w, r, body.UserID) {
		return
	}
	id, err := s.bot.CancelSession(r.Context(), body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !s.authorize(w, r, userID) {
		return
	}
	list, err := s.bot.ListSessions(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type registerRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decode(w, r, &body) || !required(w, map[string]string{"user_id": body.UserID, "secret": body.Secret}) {
		return
	}
	if err := s.bot.Register(r.Context(), body.UserID, body.Name, body.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": body.UserID})
}

type authRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var body authRequest
	if !decode(w, r, &body) {
		return
	}
	ok, err := s.bot.Authenticate(r.Context(), chi.URLParam(r, "userID"), body.Secret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]bool{"authenticated": ok})
}

type chatRequest struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// chat handles POST /api/chat: an answer when the user has a form in progress, free chat otherwise.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if !decode(w, r, &body) || !required(w, map[string]string{"message": body.Message, "username": body.Username}) {
		return
	}
	if utf8.RuneCountInString(body.Message) > maxChatMessage {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message too long", Details: "Message must be less than 2000 characters"})
		return
	}
	if utf8.RuneCountInString(body.Username) > maxChatUsername {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Username too long", Details: "Username must be less than 32 characters"})
		return
	}
	text, err := s.sanitizer.Sanitize(body.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	userID := webUserPrefix + body.Username
	var reply strings.Builder
	sink := domain.MessageSinkFunc(func(_ context.Context, msg string) error {
		reply.WriteString(msg)
		return nil
	})
	if err := s.bot.Handle(r.Context(), userID, text, sink); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(userID, "message", reply.String())
	writeJSON(w, http.StatusOK, map[string]string{"response": reply.String()})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>formbot API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
