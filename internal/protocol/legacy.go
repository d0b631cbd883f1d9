package protocol

import "strings"

// nonFrameworkArtifacts are bulk download items that are not rule bundles.
var nonFrameworkArtifacts = map[string]bool{
	"controls-inputs": true,
	"exceptions":      true,
	"attack-tracks":   true,
	"controls":        true,
}

// Legacy parses the quoted text protocol of releases before v2.0.150:
//
//	'nsa' downloaded successfully and saved at: '/home/u/.kubescape/nsa.json'
type Legacy struct{}

func (Legacy) Name() string { return "legacy" }

func (Legacy) Artifacts(stdout, stderr []byte) []Artifact {
	var out []Artifact
	for _, line := range append(lines(stdout), lines(stderr)...) {
		if a, ok := parseLegacyLine(line); ok {
			out = append(out, a)
		}
	}
	return out
}

func (Legacy) Diagnostics(stdout, stderr []byte) []string {
	var out []string
	for _, line := range append(lines(stdout), lines(stderr)...) {
		lower := strings.ToLower(line)
		for _, prefix := range []string{"[error]", "[fatal]"} {
			if strings.HasPrefix(lower, prefix) {
				out = append(out, strings.TrimSpace(line[len(prefix):]))
				break
			}
		}
	}
	return out
}

// parseLegacyLine accepts exactly: QUOTED WORDS QUOTED, where the words
// between contain "downloaded" and end with ':'.
func parseLegacyLine(line string) (Artifact, bool) {
	tokens, ok := tokenizeQuoted(line)
	if !ok || len(tokens) != 3 {
		return Artifact{}, false
	}
	if !tokens[0].quoted || tokens[1].quoted || !tokens[2].quoted {
		return Artifact{}, false
	}
	middle := strings.ToLower(tokens[1].text)
	if !strings.Contains(middle, "downloaded") || !strings.HasSuffix(strings.TrimSpace(middle), ":") {
		return Artifact{}, false
	}

	name := strings.TrimSpace(tokens[0].text)
	path := strings.TrimSpace(tokens[2].text)
	if name == "" || path == "" {
		return Artifact{}, false
	}
	kind := KindFramework
	if nonFrameworkArtifacts[strings.ToLower(name)] {
		kind = strings.ToLower(name)
	}
	return Artifact{Kind: kind, Name: name, Path: path}, true
}

type token struct {
	text   string
	quoted bool
}

// tokenizeQuoted splits line into alternating single-quoted and bare
// segments. Leading text before the first quote is ignored, so log prefixes
// like "[success] " are tolerated. An unterminated quote fails.
func tokenizeQuoted(line string) ([]token, bool) {
	start := strings.IndexByte(line, '\'')
	if start < 0 {
		return nil, false
	}
	rest := line[start:]

	var tokens []token
	for rest != "" {
		if rest[0] == '\'' {
			end := strings.IndexByte(rest[1:], '\'')
			if end < 0 {
				return nil, false
			}
			tokens = append(tokens, token{text: rest[1 : end+1], quoted: true})
			rest = rest[end+2:]
			continue
		}
		next := strings.IndexByte(rest, '\'')
		if next < 0 {
			if strings.TrimSpace(rest) != "" {
				tokens = append(tokens, token{text: rest})
			}
			break
		}
		tokens = append(tokens, token{text: rest[:next]})
		rest = rest[next:]
	}
	return tokens, true
}
