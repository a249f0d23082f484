package agents

import (
	"sort"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

// sortedCheckNames returns the configured check names in stable order.
func sortedCheckNames(rc *pipeline.RunContext) []string {
	names := make([]string, 0, len(rc.Config.Checks))
	for name := range rc.Config.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
