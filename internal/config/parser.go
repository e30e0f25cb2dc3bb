package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// kvParser implements koanf's Parser interface for DLEP's configuration
// grammar: one `key=value` pair per line, `#` starts a comment that runs
// to end of line, blank lines are ignored. This isn't YAML, TOML, or INI,
// so there's no off-the-shelf koanf parser for it — everything else
// (layering, env overlay, unmarshal-into-struct) stays on koanf as usual.
type kvParser struct{}

// Parser returns a koanf Parser for the key=value grammar.
func Parser() *kvParser { return &kvParser{} }

// Unmarshal parses b into a flat key->string map. A "." inside a key
// (e.g. "metrics.addr=:9100") is kept as part of the key, matching
// koanf's delimiter; Load itself acts only on the flat keys in
// recognizedKeys and warns about and ignores any other key.
func (kvParser) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	scanner := bufio.NewScanner(bytes.NewReader(b))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config line %d: missing '=' in %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" {
			return nil, fmt.Errorf("config line %d: empty key", lineNo)
		}
		out[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	return out, nil
}

// Marshal renders m back to the key=value grammar, sorted key order is
// not guaranteed — Marshal exists only to satisfy koanf's Parser
// interface; the daemon never writes its own config back out.
func (kvParser) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	for k, v := range m {
		fmt.Fprintf(&buf, "%s=%v\n", k, v)
	}
	return buf.Bytes(), nil
}

// stripComment removes a trailing `#...` comment, respecting neither
// quoting nor escaping — DLEP's config grammar has none (spec §6).
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}
