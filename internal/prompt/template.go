package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	varRe    = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const ifClose = "{{/if}}"

// Vars is a map of variable names to values for template rendering.
type Vars map[string]string

// Render expands a template: {{variable}} is replaced with its value, and
// {{#if variable}}...{{/if}} blocks are kept only when the variable is
// non-empty. Missing required variables cause an error.
func Render(tmpl string, vars Vars) (string, error) {
	result := tmpl
	for {
		closeIdx := strings.Index(result, ifClose)
		if closeIdx < 0 {
			break
		}
		opens := ifOpenRe.FindAllStringSubmatchIndex(result[:closeIdx], -1)
		if len(opens) == 0 {
			return "", fmt.Errorf("unmatched %s in template", ifClose)
		}
		open := opens[len(opens)-1]
		name := result[open[2]:open[3]]
		body := result[open[1]:closeIdx]
		if vars[name] == "" {
			body = ""
		}
		result = result[:open[0]] + body + result[closeIdx+len(ifClose):]
	}

	var missing []string
	expanded := varRe.ReplaceAllStringFunc(result, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}
