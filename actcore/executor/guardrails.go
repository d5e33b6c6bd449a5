package executor

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const truncationMarker = "...[truncated %d bytes]"

// Guardrails filters what an observation says back to the model. It only
// ever touches the rendered text; the Observation is left as produced.
type Guardrails struct {
	outputFilters []*regexp.Regexp
	maxOutputSize int
}

// NewGuardrails creates guardrails with the default secret filters.
func NewGuardrails(maxOutputSize int) *Guardrails {
	return &Guardrails{
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(password)(\\?"?\s*[:=]\s*\\?"?)[^\s"\\,}]+`),
			regexp.MustCompile(`(?i)(api[_-]?key)(\\?"?\s*[:=]\s*\\?"?)[^\s"\\,}]+`),
			regexp.MustCompile(`(?i)(secret)(\\?"?\s*[:=]\s*\\?"?)[^\s"\\,}]+`),
			regexp.MustCompile(`(?i)(bearer)(\s+)[A-Za-z0-9\-._~+/]+=*`),
		},
		maxOutputSize: maxOutputSize,
	}
}

// AddFilter registers an extra redaction pattern. Its first two groups, if
// present, are kept and the rest of the match is masked.
func (g *Guardrails) AddFilter(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("guardrail filter %q: %w", pattern, err)
	}
	g.outputFilters = append(g.outputFilters, re)
	return nil
}

// ResetFilters drops every filter, the defaults included.
func (g *Guardrails) ResetFilters() { g.outputFilters = nil }

// SanitizeOutput masks sensitive values in rendered output.
func (g *Guardrails) SanitizeOutput(output string) string {
	sanitized := output
	for _, filter := range g.outputFilters {
		repl := "[REDACTED]"
		if filter.NumSubexp() >= 2 {
			repl = "${1}${2}[REDACTED]"
		}
		sanitized = filter.ReplaceAllString(sanitized, repl)
	}
	return sanitized
}

// Render renders obs, redacts it and bounds its size. The cut never splits a
// multi-byte rune.
func (g *Guardrails) Render(obs Observation) string {
	out := g.SanitizeOutput(obs.Render())
	if g.maxOutputSize > 0 && len(out) > g.maxOutputSize {
		cut := g.maxOutputSize
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + fmt.Sprintf(truncationMarker, len(out)-cut)
	}
	return out
}
