// Package mcp exposes formbot sessions as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FormsURI is the resource listing every loaded form.
const FormsURI = "formbot://forms"

// Bot is the subset of *formbot.Bot exposed as tools.
type Bot interface {
	Forms() ([]*domain.Form, error)
	StartSession(ctx context.Context, userID, formID string) (*domain.StartResult, error)
	SubmitAnswer(ctx context.Context, userID, raw string) (*domain.SubmitResult, error)
	CancelSession(ctx context.Context, userID string) (string, error)
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	Chat(ctx context.Context, userID, message string) (string, error)
}

var _ Bot = (*formbot.Bot)(nil)

// FormSummary describes a form without its questions.
type FormSummary struct {
	ID     string   `json:"id" jsonschema_description:"Form identifier to pass to start_form"`
	Name   string   `json:"name" jsonschema_description:"Human readable form name"`
	Fields []string `json:"fields" jsonschema_description:"Field names in the order they are asked"`
}

// FormsResponse is the result of list_forms.
type FormsResponse struct {
	Forms []FormSummary `json:"forms"`
}

// CancelResponse is the result of cancel_form.
type CancelResponse struct {
	SessionID string `json:"session_id" jsonschema_description:"The session that was cancelled"`
}

// SessionsResponse is the result of list_sessions.
type SessionsResponse struct {
	Sessions []*domain.Session `json:"sessions"`
}

// ChatResponse is the result of chat.
type ChatResponse struct {
	Response string `json:"response"`
}

type userArgs struct {
	UserID string `json:"user_id"`
}

type startArgs struct {
	UserID string `json:"user_id"`
	FormID string `json:"form_id"`
}

type answerArgs struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type chatArgs struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Server wraps the bot and exposes it as an MCP Server.
type Server struct {
	bot       Bot
	logger    *slog.Logger
	sanitizer runner.Sanitizer
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSanitizer sets the limits applied to answers and chat messages.
func WithSanitizer(sz runner.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(bot Bot, opts ...Option) *Server {
	s := &Server{
		bot:    bot,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("formbot-mcp", strings.TrimSpace(formbot.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List the forms that can be started."),
		mcp.WithOutputSchema[FormsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListForms))

	s.mcpServer.AddTool(mcp.NewTool("start_form",
		mcp.WithDescription("Start a form session for a user and return the first question."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User the session belongs to")),
		mcp.WithString("form_id", mcp.Description("Form to start (default form when omitted)")),
		mcp.WithOutputSchema[domain.StartResult](),
	), mcp.NewStructuredToolHandler(s.handleStartForm))

	s.mcpServer.AddTool(mcp.NewTool("submit_answer",
		mcp.WithDescription("Answer the current question of the user's active form."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User with a form in progress")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The answer")),
		mcp.WithOutputSchema[domain.SubmitResult](),
	), mcp.NewStructuredToolHandler(s.handleSubmitAnswer))

	s.mcpServer.AddTool(mcp.NewTool("cancel_form",
		mcp.WithDescription("Cancel the user's active form."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User with a form in progress")),
		mcp.WithOutputSchema[CancelResponse](),
	), mcp.NewStructuredToolHandler(s.handleCancelForm))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List every session of a user, oldest first."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User to inspect")),
		mcp.WithOutputSchema[SessionsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListSessions))

	s.mcpServer.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send a free chat message to the assistant."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User sending the message")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
		mcp.WithOutputSchema[ChatResponse](),
	), mcp.NewStructuredToolHandler(s.handleChat))
}

func (s *Server) handleListForms(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (FormsResponse, error) {
	forms, err := s.bot.Forms()
	if err != nil {
		return FormsResponse{}, fmt.Errorf("list forms failed: %w", err)
	}
	return FormsResponse{Forms: summarize(forms)}, nil
}

func (s *Server) handleStartForm(ctx context.Context, _ mcp.CallToolRequest, args startArgs) (domain.StartResult, error) {
	if strings.TrimSpace(args.UserID) == "" {
		return domain.StartResult{}, errors.New("user_id is required")
	}
	res, err := s.bot.StartSession(ctx, args.UserID, args.FormID)
	if err != nil {
		return domain.StartResult{}, toolError(err)
	}
	return *res, nil
}

func (s *Server) handleSubmitAnswer(ctx context.Context, _ mcp.CallToolRequest, args answerArgs) (domain.SubmitResult, error) {
	if strings.TrimSpace(args.UserID) == "" {
		return domain.SubmitResult{}, errors.New("user_id is required")
	}
	clean, err := s.sanitizer.Sanitize(args.Text)
	if err != nil {
		s.logger.Warn("MCP answer rejected", "err", err, "size", len(args.Text))
		return domain.SubmitResult{}, fmt.Errorf("input rejected: %w", err)
	}
	res, err := s.bot.SubmitAnswer(ctx, args.UserID, clean)
	if err != nil {
		return domain.SubmitResult{}, toolError(err)
	}
	return *res, nil
}

func (s *Server) handleCancelForm(ctx context.Context, _ mcp.CallToolRequest, args userArgs) (CancelResponse, error) {
	id, err := s.bot.CancelSession(ctx, args.UserID)
	if err != nil {
		return CancelResponse{}, toolError(err)
	}
	return CancelResponse{SessionID: id}, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ mcp.CallToolRequest, args userArgs) (SessionsResponse, error) {
	list, err := s.bot.ListSessions(ctx, args.UserID)
	if err != nil {
		return SessionsResponse{}, toolError(err)
	}
	return SessionsResponse{Sessions: list}, nil
}

func (s *Server) handleChat(ctx context.Context, _ mcp.CallToolRequest, args chatArgs) (ChatResponse, error) {
	clean, err := s.sanitizer.Sanitize(args.Message)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	reply, err := s.bot.Chat(ctx, args.UserID, clean)
	if err != nil {
		return ChatResponse{}, toolError(err)
	}
	return ChatResponse{Response: reply}, nil
}

// toolError keeps the user-facing wording and the error kind.
func toolError(err error) error {
	return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
}

func summarize(forms []*domain.Form) []FormSummary {
	out := make([]FormSummary, 0, len(forms))
	for _, f := range forms {
		sum := FormSummary{ID: f.ID, Name: f.Name}
		for _, field := range f.Fields {
			sum.Fields = append(sum.Fields, field.Name)
		}
		out = append(out, sum)
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FormsURI, "Loaded form definitions",
		mcp.WithMIMEType("application/json"),
	), s.readForms)
}

func (s *Server) readForms(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	forms, err := s.bot.Forms()
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	b, err := json.Marshal(forms)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormsURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
