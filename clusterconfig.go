package main

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ClusterProfile is everything the config writer needs from discovery.
type ClusterProfile struct {
	ServerIP    string
	ClientNodes int
	CPUs        int
	Memory      int
}

// RecognizedValues lists the top-level keys the writer may overwrite.
func (p ClusterProfile) RecognizedValues() map[string]interface{} {
	return map[string]interface{}{
		// general
		"virtual_mode":     "no",
		"container_engine": "apptainer",
		"cgroups_version":  "v1",
		// server
		"server_ip":          p.ServerIP,
		"cpus_server_node":   p.CPUs,
		"memory_server_node": p.Memory,
		// client nodes
		"number_of_client_nodes": p.ClientNodes,
		"cpus_per_client_node":   p.CPUs,
		"memory_per_client_node": p.Memory,
	}
}

type splice struct {
	start, end int
	text       string
}

// UpdateConfig rewrites the values of recognized top-level keys in src.
// Only the bytes of those values change; keys missing from src are not added.
func UpdateConfig(src []byte, profile ClusterProfile) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, errors.Wrapf(ErrUnparsableValue, "config: %v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return src, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrUnparsableValue, "config: top level is not a mapping")
	}

	values := profile.RecognizedValues()
	flow := root.Style&yaml.FlowStyle != 0
	lines := newLineIndex(src)
	splices := make([]splice, 0, len(values))
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		v, ok := values[key.Value]
		if !ok {
			continue
		}
		s, err := valueSplice(src, lines, key, value, v, flow)
		if err != nil {
			return nil, errors.WithMessage(err, "config key "+key.Value)
		}
		splices = append(splices, s)
	}

	var out bytes.Buffer
	out.Grow(len(src))
	last := 0
	for _, s := range splices {
		out.Write(src[last:s.start])
		out.WriteString(s.text)
		last = s.end
	}
	out.Write(src[last:])
	return out.Bytes(), nil
}

// UpdateConfigFile rewrites path in place. There is no backup.
func UpdateConfigFile(path string, profile ClusterProfile) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "unable to stat configuration file %s", path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to read configuration file %s", path)
	}
	out, err := UpdateConfig(src, profile)
	if err != nil {
		return errors.WithMessage(err, path)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "unable to write configuration file %s", path)
	}
	logger.WithField("path", path).Info("cluster config updated")
	return nil
}

func valueSplice(src []byte, lines lineIndex, key, value *yaml.Node, v interface{}, flow bool) (splice, error) {
	if value.Kind != yaml.ScalarNode || value.Anchor != "" {
		return splice{}, errors.Wrap(ErrUnparsableValue, "value is not a plain scalar")
	}

	// "key:" with nothing after it: insert after the colon
	if value.Tag == "!!null" && value.Value == "" && value.Style&yaml.TaggedStyle == 0 {
		keyStart := lines.offset(src, key.Line, key.Column)
		keyEnd := keyStart + len(key.Value)
		if key.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			var err error
			if keyEnd, err = scalarEnd(src, keyStart, key, flow); err != nil {
				return splice{}, err
			}
		}
		colon := bytes.IndexByte(src[keyEnd:], ':')
		if colon < 0 {
			return splice{}, errors.Wrap(ErrUnparsableValue, "no colon after key")
		}
		at := keyEnd + colon + 1
		text, err := renderScalar(v, 0)
		if err != nil {
			return splice{}, err
		}
		return splice{start: at, end: at, text: " " + text}, nil
	}

	// an explicit tag is replaced together with the value
	start := lines.offset(src, value.Line, value.Column)
	end, err := scalarEnd(src, skipTag(src, start), value, flow)
	if err != nil {
		return splice{}, err
	}
	text, err := renderScalar(v, value.Style)
	if err != nil {
		return splice{}, err
	}
	return splice{start: start, end: end, text: text}, nil
}

func skipTag(src []byte, at int) int {
	if at >= len(src) || src[at] != '!' {
		return at
	}
	for at < len(src) && src[at] != ' ' && src[at] != '\t' && src[at] != '\n' {
		at++
	}
	for at < len(src) && (src[at] == ' ' || src[at] == '\t') {
		at++
	}
	return at
}

// scalarEnd finds the end offset of a single-line scalar starting at start.
// Inside a flow mapping plain scalars also stop at flow indicators.
func scalarEnd(src []byte, start int, n *yaml.Node, flow bool) (int, error) {
	line := src[start:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	switch {
	case n.Style&yaml.DoubleQuotedStyle != 0:
		for i := 1; i < len(line); i++ {
			switch line[i] {
			case '\\':
				i++
			case '"':
				return start + i + 1, nil
			}
		}
	case n.Style&yaml.SingleQuotedStyle != 0:
		for i := 1; i < len(line); i++ {
			if line[i] != '\'' {
				continue
			}
			if i+1 < len(line) && line[i+1] == '\'' {
				i++
				continue
			}
			return start + i + 1, nil
		}
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle|yaml.FlowStyle) == 0:
		text := string(line)
		if flow {
			if i := strings.IndexAny(text, ",[]{}"); i >= 0 {
				text = text[:i]
			}
		}
		for i := 1; i < len(text); i++ {
			if text[i] == '#' && (text[i-1] == ' ' || text[i-1] == '\t') {
				text = text[:i]
				break
			}
		}
		text = strings.TrimRight(text, " \t\r")
		if text == n.Value {
			return start + len(text), nil
		}
	}
	return 0, errors.Wrapf(ErrUnparsableValue, "unsupported scalar layout at line %d", n.Line)
}

// renderScalar formats v keeping the quoting style of the value it replaces.
// Integers and YAML 1.1 boolean words are always plain.
func renderScalar(v interface{}, style yaml.Style) (string, error) {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch x := v.(type) {
	case int:
		n.Tag = "!!int"
		n.Value = strconv.Itoa(x)
	case string:
		if isYAML11Bool(x) {
			return x, nil
		}
		n.Tag = "!!str"
		n.Value = x
		n.Style = style & (yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle)
	default:
		return "", errors.Errorf("unsupported value type %T", v)
	}

	out, err := yaml.Marshal(n)
	if err != nil {
		return "", errors.Wrap(err, "rendering value")
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// Consumers of the config read YAML 1.1, where these are booleans, so
// "virtual_mode: no" must stay unquoted.
func isYAML11Bool(s string) bool {
	switch strings.ToLower(s) {
	case "y", "yes", "n", "no", "true", "false", "on", "off":
		return true
	}
	return false
}

type lineIndex []int

var utf8BOM = []byte("\xef\xbb\xbf")

// newLineIndex records the byte offset of every line start. The parser drops
// a leading BOM before counting columns, so line 1 starts after it.
func newLineIndex(src []byte) lineIndex {
	first := 0
	if bytes.HasPrefix(src, utf8BOM) {
		first = len(utf8BOM)
	}
	idx := lineIndex{first}
	for i, b := range src {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// offset converts a 1-based line and rune column to a byte offset.
func (idx lineIndex) offset(src []byte, line, column int) int {
	if line < 1 || line > len(idx) {
		return len(src)
	}
	off := idx[line-1]
	for c := 1; c < column && off < len(src); c++ {
		_, size := utf8.DecodeRune(src[off:])
		off += size
	}
	return off
}
