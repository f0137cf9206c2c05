package render

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// MissingContentPlaceholder is rendered in place of a personalized
// section whose text the generator failed to return.
const MissingContentPlaceholder = "[content unavailable]"

// Renderer turns a campaign's sections into one body string. Static
// sections run through a small Liquid vocabulary (for button links and
// the occasional conditional "default" fallback); personalized
// sections are inserted verbatim from the generator's output, then
// every section's {{Var}} placeholders are substituted from recipient
// metadata.
type Renderer struct {
	engine *liquid.Engine
	mu     sync.Mutex
}

// New builds a Renderer with the filters the section templates rely on.
func New() *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil || value == "" {
			return defaultVal
		}
		return value
	})
	return &Renderer{engine: engine}
}

// Render produces the final body for one recipient: subject is
// substituted separately by callers (via Substitute) before staging,
// so Render only concerns itself with section bodies.
func (r *Renderer) Render(sections []domain.Section, metadata map[string]string, generated map[string]string, format domain.ContentFormat) (string, error) {
	ordered := append([]domain.Section(nil), sections...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var b strings.Builder
	for _, s := range ordered {
		content, err := r.renderSection(s, metadata, generated)
		if err != nil {
			return "", fmt.Errorf("render section %s: %w", s.ID, err)
		}
		content = Substitute(content, metadata)
		if format == domain.FormatHTML {
			b.WriteString(sectionWrapperOpen(s))
			b.WriteString(content)
			b.WriteString(sectionWrapperClose(s))
		} else {
			b.WriteString(content)
			b.WriteString("\n\n")
		}
	}
	return b.String(), nil
}

func (r *Renderer) renderSection(s domain.Section, metadata map[string]string, generated map[string]string) (string, error) {
	if s.Personalized() {
		text, ok := generated[s.ID]
		if !ok || text == "" {
			return MissingContentPlaceholder, nil
		}
		return text, nil
	}

	bindings := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		bindings[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out, err := r.engine.ParseAndRenderString(s.Content, bindings)
	if err != nil {
		return "", err
	}
	return out, nil
}

func sectionWrapperOpen(s domain.Section) string {
	switch s.Type {
	case domain.SectionButton:
		url := ""
		if s.ButtonURL != nil {
			url = *s.ButtonURL
		}
		return fmt.Sprintf(`<a href="%s" class="btn">`, url)
	default:
		return "<p>"
	}
}

func sectionWrapperClose(s domain.Section) string {
	switch s.Type {
	case domain.SectionButton:
		return "</a>"
	default:
		return "</p>"
	}
}
