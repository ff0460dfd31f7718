package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/forms"
	"github.com/aretw0/formbot/pkg/ports"
)

const (
	draftSystemPrompt = "You are a form builder assistant. Output only valid JSON arrays of form field objects."
	draftMaxTokens    = 1000
)

const draftPromptTemplate = `Convert this description of a form into a list of form fields.

FORM DESCRIPTION: %s

Each field has:
- name: a camelCase identifier (e.g. "fullName", "emailAddress")
- type: one of string, email, phone, choice, multiple, number, text, yesno
- prompt: the question to ask the user
- required: true or false
- options: the allowed answers (choice and multiple only)

Output the result as a JSON array of field objects.`

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

var errNoFields = errors.New("reply holds no fields")

// draftField is the loose shape a generated field is decoded from.
type draftField struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Prompt   string   `json:"prompt"`
	Required *bool    `json:"required"`
	Options  []string `json:"options"`
}

// GenerateFields drafts the fields of a form described in plain language.
// A failed call or an unusable reply falls back to the keyword template.
func (e *Engine) GenerateFields(ctx context.Context, userID, description string) (*domain.FormDraft, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidForm)
	}

	if e.llm.available() {
		reply, err := e.llm.call(ctx, userID, domain.PhaseFormDraft, ports.GenerateRequest{
			SystemPrompt: draftSystemPrompt,
			UserPrompt:   fmt.Sprintf(draftPromptTemplate, description),
			MaxTokens:    draftMaxTokens,
		})
		if err == nil {
			fields, perr := parseDraft(reply)
			if perr == nil {
				return &domain.FormDraft{Fields: fields, Source: domain.DraftGenerated}, nil
			}
			e.logger.Warn("Generated form draft unusable, using template", "user_id", userID, "err", perr)
		}
	}
	return &domain.FormDraft{Fields: forms.DraftFields(description), Source: domain.DraftTemplate}, nil
}

// parseDraft pulls the first JSON array out of reply and validates it as a field list.
// Unknown types become plain string questions; fields are required unless stated otherwise.
func parseDraft(reply string) ([]domain.Field, error) {
	raw := jsonArray.FindString(reply)
	if raw == "" {
		raw = reply
	}
	var items []draftField
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if len(items) == 0 {
		return nil, errNoFields
	}

	fields := make([]domain.Field, 0, len(items))
	for _, it := range items {
		typ, err := domain.ParseFieldType(it.Type)
		if err != nil {
			typ = domain.FieldString
		}
		required := it.Required == nil || *it.Required
		f := domain.Field{
			Name:     strings.TrimSpace(it.Name),
			Type:     typ,
			Prompt:   strings.TrimSpace(it.Prompt),
			Required: required,
		}
		if typ.HasOptions() {
			f.Options = it.Options
		}
		fields = append(fields, f)
	}

	check := domain.Form{ID: "draft", Name: "draft", Fields: fields}
	if err := check.Validate(); err != nil {
		return nil, err
	}
	return fields, nil
}
