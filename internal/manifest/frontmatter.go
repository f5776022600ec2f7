package manifest

// frontmatter.go: markdown documents carrying YAML frontmatter between ---
// delimiters.

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// split returns the frontmatter (raw YAML bytes) of a document. The
// document must begin with "---\n"; the closing "---" line ends the
// frontmatter block.
func split(data []byte) ([]byte, error) {
	const delim = "---\n"
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, fmt.Errorf("manifest: missing opening --- delimiter")
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		return nil, fmt.Errorf("manifest: missing closing --- delimiter")
	}
	return rest[:idx+1], nil
}

// join marshals v as YAML frontmatter followed by body.
func join(v any, body string) ([]byte, error) {
	fm, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
