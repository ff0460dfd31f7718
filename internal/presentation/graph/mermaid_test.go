package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/formbot/internal/presentation/graph"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/dsl"
	"github.com/aretw0/formbot/pkg/forms"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		form     *domain.Form
		contains []string
		excludes []string
	}{
		{
			name: "Onboarding Shapes",
			form: forms.Onboarding(),
			contains: []string{
				`start(("Customer Onboarding"))`,
				`f_fullName[/"1. What's your full name?"/]`,
				`f_preferredContact{{"4. Do you prefer to be contacted by phone or email? <br/> Phone / Email"}}`,
				"start --> f_fullName",
				"f_phone --> f_preferredContact",
				"f_preferredContact --> done",
				`done(("Complete"))`,
			},
		},
		{
			name: "Retry Loops On Typed Fields Only",
			form: forms.Onboarding(),
			contains: []string{
				`f_email -. "retry" .-> f_email`,
			},
			excludes: []string{
				`f_fullName -. "retry"`,
			},
		},
		{
			name: "Optional Fields Can Be Skipped",
			form: dsl.NewForm("f").Ask("a", "A?").Text("b", "B?").Optional().MustBuild(),
			contains: []string{
				`f_a -. "skip" .-> done`,
			},
		},
		{
			name: "Label Escaping And ID Sanitization",
			form: dsl.NewForm("f").Name(`The "Best" Form`).Ask("first-name", `Say "hi"`).MustBuild(),
			contains: []string{
				`start(("The 'Best' Form"))`,
				`f_first_name[/"1. Say 'hi'"/]`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.form, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, bad)
				}
			}
			if strings.Contains(got, "classDef") {
				t.Error("Expected no overlay styles without an overlay")
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	form := forms.Onboarding()
	session := &domain.Session{
		Status:       domain.SessionInProgress,
		CurrentField: 2,
		Answers:      map[string]string{"fullName": "Jane", "email": "jane@example.com"},
	}

	got := graph.GenerateMermaid(form, graph.OverlayFor(form, session))
	for _, want := range []string{
		"class f_fullName answered;",
		"class f_email answered;",
		"class f_phone current;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
		}
	}

	session.Status = domain.SessionCompleted
	if o := graph.OverlayFor(form, session); o.Current != "" {
		t.Errorf("Expected no current field for a closed session, got %q", o.Current)
	}
	if graph.OverlayFor(form, nil) != nil {
		t.Error("Expected a nil overlay for a nil session")
	}
}
