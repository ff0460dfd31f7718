// Package graph renders forms as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
)

const (
	startID = "start"
	doneID  = "done"
)

// Overlay contains session progress to visualize on the diagram.
type Overlay struct {
	Answered []string
	Current  string
}

// OverlayFor builds the overlay for session s. Closed sessions have no current field.
func OverlayFor(form *domain.Form, s *domain.Session) *Overlay {
	if s == nil {
		return nil
	}
	o := &Overlay{}
	for _, f := range form.Fields {
		if _, ok := s.Answers[f.Name]; ok {
			o.Answered = append(o.Answered, f.Name)
		}
	}
	if s.Active() {
		if f, ok := form.FieldAt(s.CurrentField); ok {
			o.Current = f.Name
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for form.
// It applies semantic styling:
// - Start and completion: ((Circle))
// - Option questions (choice, multiple, yes/no): {{Hexagon}}
// - Other questions: [/Parallelogram/]
// Typed questions get a dotted retry loop, and optional ones a dotted skip edge.
// It also applies overlay styles (answered/current) if provided.
func GenerateMermaid(form *domain.Form, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", startID, escape(form.Name))

	prev := startID
	for i, field := range form.Fields {
		id := nodeID(field.Name)

		opener, closer := "[/", "/]"
		if field.Type.HasOptions() || field.Type == domain.FieldYesNo {
			opener, closer = "{{", "}}"
		}
		label := fmt.Sprintf("%d. %s", i+1, escape(field.Prompt))
		if len(field.Options) > 0 {
			label += " <br/> " + escape(strings.Join(field.Options, " / "))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)
		fmt.Fprintf(&sb, "    %s --> %s\n", prev, id)

		if field.Type != domain.FieldString && field.Type != domain.FieldText {
			fmt.Fprintf(&sb, "    %s -. \"retry\" .-> %s\n", id, id)
		}
		if !field.Required {
			fmt.Fprintf(&sb, "    %s -. \"skip\" .-> %s\n", prev, nextID(form, i))
		}
		prev = id
	}
	fmt.Fprintf(&sb, "    %s((\"Complete\"))\n", doneID)
	fmt.Fprintf(&sb, "    %s --> %s\n", prev, doneID)

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef answered fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Answered {
			id := nodeID(name)
			if !seen[id] && id != "" {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s answered;\n", id)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.Current))
		}
	}

	return sb.String()
}

func nextID(form *domain.Form, i int) string {
	if f, ok := form.FieldAt(i + 1); ok {
		return nodeID(f.Name)
	}
	return doneID
}

// nodeID prefixes field names so they cannot collide with start/done or Mermaid keywords.
func nodeID(name string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return "f_" + r.Replace(name)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
