package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
)

// Verdict is the outcome of validating one answer.
type Verdict struct {
	Accepted bool
	// Value is the canonical answer stored on acceptance.
	Value string
	// Reason explains a rejection when the generation service supplied one.
	Reason string
}

const (
	numberMin = 1
	numberMax = 10

	validateMaxTokens = 300
)

const validateSystemPrompt = "You are a helpful assistant that validates and formats answers to form questions. " +
	"Reply with a single JSON object and nothing else."

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ValidateDeterministic applies the built-in per-type rules.
func ValidateDeterministic(field domain.Field, raw string) Verdict {
	trimmed := strings.TrimSpace(raw)
	switch field.Type {
	case domain.FieldEmail:
		if strings.Contains(raw, "@") {
			return Verdict{Accepted: true, Value: raw}
		}
	case domain.FieldNumber:
		n, err := strconv.Atoi(trimmed)
		if err == nil && n >= numberMin && n <= numberMax {
			return Verdict{Accepted: true, Value: strconv.Itoa(n)}
		}
	case domain.FieldYesNo:
		if v := strings.ToLower(trimmed); v == "yes" || v == "no" {
			return Verdict{Accepted: true, Value: v}
		}
	case domain.FieldChoice, domain.FieldMultiple:
		upper := strings.ToUpper(trimmed)
		for _, opt := range field.Options {
			if strings.ToUpper(opt) == upper {
				return Verdict{Accepted: true, Value: opt}
			}
		}
	default:
		if trimmed != "" {
			return Verdict{Accepted: true, Value: raw}
		}
	}
	return Verdict{}
}

// validator prefers the generation service's judgement and degrades to ValidateDeterministic.
type validator struct {
	llm *generation
}

type validationReply struct {
	Valid     *bool  `json:"valid"`
	Formatted string `json:"formatted_response"`
	Error     string `json:"error"`
}

func (v *validator) validate(ctx context.Context, userID string, field domain.Field, raw string) Verdict {
	if !v.llm.available() {
		return ValidateDeterministic(field, raw)
	}

	reply, err := v.llm.call(ctx, userID, domain.PhaseValidate, ports.GenerateRequest{
		SystemPrompt: validateSystemPrompt,
		UserPrompt:   validationPrompt(field, raw),
		MaxTokens:    validateMaxTokens,
	})
	if err != nil {
		return ValidateDeterministic(field, raw)
	}

	verdict, ok := parseValidationReply(reply, raw)
	if !ok {
		v.llm.logger.Warn("Unparseable validation reply, using built-in rules", "user_id", userID, "field", field.Name)
		return ValidateDeterministic(field, raw)
	}
	return verdict
}

// parseValidationReply extracts the first-to-last brace span and decodes it.
func parseValidationReply(reply, raw string) (Verdict, bool) {
	match := jsonObject.FindString(reply)
	if match == "" {
		return Verdict{}, false
	}
	var r validationReply
	if err := json.Unmarshal([]byte(match), &r); err != nil || r.Valid == nil {
		return Verdict{}, false
	}
	if !*r.Valid {
		return Verdict{Accepted: false, Reason: strings.TrimSpace(r.Error)}, true
	}
	value := strings.TrimSpace(r.Formatted)
	if value == "" {
		value = strings.TrimSpace(raw)
	}
	if value == "" {
		return Verdict{}, false
	}
	return Verdict{Accepted: true, Value: value}, true
}

func validationPrompt(field domain.Field, raw string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", field.Prompt)
	fmt.Fprintf(&b, "Field name: %s\n", field.Name)
	fmt.Fprintf(&b, "Expected type: %s\n", field.Type)
	if len(field.Options) > 0 {
		fmt.Fprintf(&b, "Allowed options: %s\n", strings.Join(field.Options, ", "))
	}
	if hint := field.Hint(); hint != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", hint)
	}
	fmt.Fprintf(&b, "User response: %q\n\n", raw)
	b.WriteString("Decide whether the response answers the question with the expected type, ")
	b.WriteString("and rewrite it in a clean, consistent format (for options, use the exact option text).\n")
	b.WriteString(`Respond only with JSON: {"valid": true or false, "formatted_response": "the formatted value", "error": "why it is invalid, if it is"}`)
	return b.String()
}
