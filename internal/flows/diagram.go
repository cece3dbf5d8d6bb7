package flows

import (
	"fmt"
	"strings"
)

// defaultArrowLabel is used when no import name connects two steps.
const defaultArrowLabel = "uses"

// Participant is one lane of a sequence diagram.
type Participant struct {
	Label string
}

// SequenceDiagram renders a Mermaid sequence diagram with one participant per
// step and one arrow per consecutive pair. arrows[i] labels the arrow from
// step i to step i+1; blank labels fall back to "uses".
func SequenceDiagram(steps []Participant, arrows []string) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	for i, p := range steps {
		fmt.Fprintf(&sb, "    participant P%d as %s\n", i+1, escapeLabel(p.Label))
	}
	for i := 0; i+1 < len(steps); i++ {
		label := ""
		if i < len(arrows) {
			label = strings.TrimSpace(arrows[i])
		}
		if label == "" {
			label = defaultArrowLabel
		}
		fmt.Fprintf(&sb, "    P%d->>P%d: %s\n", i+1, i+2, escapeLabel(label))
	}
	return sb.String()
}

// escapeLabel strips characters that end a Mermaid statement early.
func escapeLabel(s string) string {
	replacer := strings.NewReplacer(
		"\n", " ",
		"\r", " ",
		";", ",",
		"#", "",
		":", " ",
	)
	s = strings.TrimSpace(replacer.Replace(s))
	if s == "" {
		return "unnamed"
	}
	return s
}

// NormalizeDiagram strips a code fence from a model-authored diagram and
// reports whether what remains is a usable sequence diagram.
func NormalizeDiagram(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```mermaid")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if !strings.HasPrefix(text, "sequenceDiagram") {
		return "", false
	}
	if !strings.Contains(text, "->") {
		return "", false
	}
	return text + "\n", true
}
