package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
)

const composeSystemPrompt = "You are a helpful assistant that collects information through a friendly conversation. " +
	"Never mention forms, fields, validation or any internal process."

var composeMaxTokens = map[domain.Phase]int{
	domain.PhaseIntro:        300,
	domain.PhaseNextQuestion: 200,
	domain.PhaseRetry:        200,
	domain.PhaseCompletion:   300,
}

// ComposeInput carries the context a phase needs.
type ComposeInput struct {
	Form *domain.Form
	// Field is the question being asked (intro, next_question, retry).
	Field domain.Field

	// Previous and PreviousAnswer give next_question its continuity.
	Previous       *domain.Field
	PreviousAnswer string

	// Invalid and Reason describe the rejected answer (retry).
	Invalid string
	Reason  string

	// Answers are the collected values (completion).
	Answers map[string]string
}

// Fallback renders the deterministic template for a phase.
func Fallback(phase domain.Phase, in ComposeInput) string {
	switch phase {
	case domain.PhaseIntro:
		return fmt.Sprintf("I'm collecting information for %s. %s", in.Form.Name, ask(in.Field))
	case domain.PhaseNextQuestion:
		return ask(in.Field)
	case domain.PhaseRetry:
		return retryTemplate(in.Field)
	case domain.PhaseCompletion:
		return fmt.Sprintf("Thank you for completing the %s form. Here's a summary of the information you provided:\n\n%s\nThis information has been submitted successfully.",
			in.Form.Name, in.Form.Summary(in.Answers))
	}
	return ask(in.Field)
}

// ask is the prompt plus the option list for choice-like fields.
func ask(f domain.Field) string {
	if f.Type.HasOptions() {
		return f.Prompt + " " + f.Hint()
	}
	return f.Prompt
}

func retryTemplate(f domain.Field) string {
	switch f.Type {
	case domain.FieldEmail:
		return "That doesn't look like a valid email address. Please enter a valid email address."
	case domain.FieldPhone:
		return "That doesn't look like a valid phone number. Please enter a valid phone number with country code."
	case domain.FieldChoice, domain.FieldMultiple:
		return "Please choose one of the following options: " + strings.Join(f.Options, ", ") + "."
	case domain.FieldNumber:
		return "Please enter a whole number from 1 to 10. " + f.Prompt
	case domain.FieldYesNo:
		return "Please answer yes or no. " + f.Prompt
	}
	return "Please provide a valid response. " + f.Prompt
}

type composer struct {
	llm *generation
}

// compose asks the generation service for the phase text and falls back to the template.
func (c *composer) compose(ctx context.Context, userID string, phase domain.Phase, in ComposeInput) string {
	if !c.llm.available() {
		return Fallback(phase, in)
	}
	text, err := c.llm.call(ctx, userID, phase, ports.GenerateRequest{
		SystemPrompt: composeSystemPrompt,
		UserPrompt:   composePrompt(phase, in),
		MaxTokens:    composeMaxTokens[phase],
	})
	if err != nil {
		return Fallback(phase, in)
	}
	return text
}

func composePrompt(phase domain.Phase, in ComposeInput) string {
	var b strings.Builder
	switch phase {
	case domain.PhaseIntro:
		fmt.Fprintf(&b, "You are starting a conversation to collect information for %q.\n", in.Form.Name)
		b.WriteString("Introduce yourself briefly and explain what you will be asking about, then ask the first question:\n")
		fmt.Fprintf(&b, "%q\n", in.Field.Prompt)
	case domain.PhaseNextQuestion:
		if in.Previous != nil {
			fmt.Fprintf(&b, "You asked: %q\nThe user answered: %q\n", in.Previous.Prompt, in.PreviousAnswer)
			b.WriteString("Acknowledge the answer in a few words, then ")
		}
		fmt.Fprintf(&b, "ask the next question:\n%q\n", in.Field.Prompt)
	case domain.PhaseRetry:
		fmt.Fprintf(&b, "You asked: %q\nThe user answered: %q, which is not a valid answer.\n", in.Field.Prompt, in.Invalid)
		if in.Reason != "" {
			fmt.Fprintf(&b, "Problem: %s\n", in.Reason)
		}
		b.WriteString("Politely explain what is needed and ask the question again.\n")
	case domain.PhaseCompletion:
		fmt.Fprintf(&b, "The user has answered every question for %q.\n", in.Form.Name)
		b.WriteString("Thank them and summarize what they provided:\n\n")
		b.WriteString(in.Form.Summary(in.Answers))
		b.WriteString("\nConfirm that the information was submitted successfully.\n")
	}
	if phase != domain.PhaseCompletion {
		if hint := in.Field.Hint(); hint != "" {
			fmt.Fprintf(&b, "Let the user know: %s\n", hint)
		}
	}
	b.WriteString("Keep it friendly and concise.")
	return b.String()
}
