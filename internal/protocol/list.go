package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"ksinstall/internal/tools"
)

// ParseFrameworkList reads `kubescape list frameworks` output. The JSON
// array form is preferred; bullet lines ("* NSA") are the fallback.
// Names are lower-cased and de-duplicated in order.
func ParseFrameworkList(stdout []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(stdout))
	var names []string
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &names); err != nil {
			return nil, fmt.Errorf("%w: framework list: %v", tools.ErrMalformedOutput, err)
		}
	} else {
		for _, line := range lines(stdout) {
			for _, bullet := range []string{"* ", "- ", "• "} {
				if strings.HasPrefix(line, bullet) {
					names = append(names, strings.TrimSpace(strings.TrimPrefix(line, bullet)))
					break
				}
			}
		}
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no frameworks listed", tools.ErrMalformedOutput)
	}
	return out, nil
}
