package graphite

import (
	"strings"

	"graphout/internal/event"
)

// Template is a compiled text template with %{field} placeholders.
// Params: built by CompileTemplate.
// Returns: resolver from event to string.
type Template struct {
	raw   string
	parts []templatePart
}

type templatePart struct {
	literal string
	ref     string
}

// CompileTemplate parses %{name} and %{[outer][inner]} placeholders.
// Params: text raw template.
// Returns: compiled template or ErrConfiguration on unterminated/empty placeholders.
func CompileTemplate(text string) (*Template, error) {
	tmpl := &Template{raw: text}
	rest := text
	offset := 0

	for {
		start := strings.Index(rest, "%{")
		if start < 0 {
			if rest != "" {
				tmpl.parts = append(tmpl.parts, templatePart{literal: rest})
			}
			return tmpl, nil
		}
		if start > 0 {
			tmpl.parts = append(tmpl.parts, templatePart{literal: rest[:start]})
		}

		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			return nil, configError("template %q: unterminated placeholder at offset %d", text, offset+start)
		}
		ref := rest[start+2 : start+2+end]
		if strings.TrimSpace(ref) == "" {
			return nil, configError("template %q: empty placeholder at offset %d", text, offset+start)
		}
		if strings.ContainsAny(ref, "{%") {
			return nil, configError("template %q: malformed placeholder %q", text, ref)
		}
		tmpl.parts = append(tmpl.parts, templatePart{ref: ref})

		consumed := start + 2 + end + 1
		rest = rest[consumed:]
		offset += consumed
	}
}

// String returns the raw template text.
func (t *Template) String() string {
	return t.raw
}

// Static reports whether the template has no placeholders.
func (t *Template) Static() bool {
	for _, part := range t.parts {
		if part.ref != "" {
			return false
		}
	}
	return true
}

// Resolve substitutes placeholders; missing fields become empty strings.
// Params: ev event to read.
// Returns: resolved text.
func (t *Template) Resolve(ev *event.Event) string {
	resolved, _ := t.ResolveReport(ev)
	return resolved
}

// ResolveReport substitutes placeholders and reports missing references.
// Params: ev event to read.
// Returns: resolved text and names of references absent from ev.
func (t *Template) ResolveReport(ev *event.Event) (string, []string) {
	if len(t.parts) == 1 && t.parts[0].ref == "" {
		return t.parts[0].literal, nil
	}

	var (
		builder strings.Builder
		missing []string
	)
	for _, part := range t.parts {
		if part.ref == "" {
			builder.WriteString(part.literal)
			continue
		}
		value, ok := ev.Lookup(part.ref)
		if !ok {
			missing = append(missing, part.ref)
			continue
		}
		builder.WriteString(value.String())
	}
	return builder.String(), missing
}
