package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// JSONEvent is one line written by JSONHandler.
type JSONEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Event types emitted by JSONHandler.
const (
	EventMessage = "message"
	EventSystem  = "system"
)

// JSONHandler implements IOHandler over JSON Lines.
// Input lines may be a JSON string, an object with a "text" member, or raw text.
type JSONHandler struct {
	Reader    *bufio.Reader
	Encoder   *json.Encoder
	Sanitizer Sanitizer
}

// JSONHandlerOption defines configuration for JSONHandler.
type JSONHandlerOption func(*JSONHandler)

// WithJSONHandlerSanitizer sets the input limits.
func WithJSONHandlerSanitizer(s Sanitizer) JSONHandlerOption {
	return func(h *JSONHandler) {
		h.Sanitizer = s
	}
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer, opts ...JSONHandlerOption) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *JSONHandler) Output(ctx context.Context, text string) error {
	return h.Encoder.Encode(JSONEvent{Type: EventMessage, Text: text})
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(JSONEvent{Type: EventSystem, Text: msg})
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSpace(line)

	var val string
	if err := json.Unmarshal([]byte(line), &val); err == nil {
		return h.Sanitizer.Sanitize(val)
	}
	var obj struct {
		Text string `json:"text"`
	}
	if strings.HasPrefix(line, "{") && json.Unmarshal([]byte(line), &obj) == nil {
		return h.Sanitizer.Sanitize(obj.Text)
	}
	return h.Sanitizer.Sanitize(line)
}
