package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultIndent is used when a Codec has no explicit indentation.
const DefaultIndent = 2

// base64LineWidth is the wrap width of base64 blocks.
const base64LineWidth = 76

// Codec converts between Document trees and YAML text.
//
// yaml.v3 only supports a document wide indentation, so StringBlock.Indent
// is kept as metadata and the codec writes every block with Indent.
type Codec struct {
	Indent int
}

// Encode writes doc as YAML.
func (c Codec) Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("encoding document: nil document")
	}
	root := doc.Root
	if root == nil {
		root = &Mapping{}
	}
	body, err := encodeNode(root)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	top := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: joinComment(doc.Header),
		FootComment: joinComment(doc.Footer),
		Content:     []*yaml.Node{body},
	}

	indent := c.Indent
	if indent <= 0 {
		indent = DefaultIndent
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(top); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses YAML text into a Document. An empty input yields a document
// with an empty root mapping.
func (c Codec) Decode(data []byte) (*Document, error) {
	var top yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	doc := &Document{Root: &Mapping{}}
	if top.Kind == 0 {
		return doc, nil
	}
	doc.Header = splitComment(top.HeadComment)
	doc.Footer = splitComment(top.FootComment)
	if len(top.Content) == 0 {
		return doc, nil
	}

	body := top.Content[0]
	if body.Kind == yaml.ScalarNode && body.ShortTag() == "!!null" {
		return doc, nil
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing document: root must be a mapping, got %s at line %d", kindName(body), body.Line)
	}
	if len(doc.Header) == 0 {
		doc.Header = splitComment(body.HeadComment)
	}
	root, err := decodeMapping(body)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	doc.Root = root
	return doc, nil
}

// ── Encoding ──────────────────────────────────────────────────────────────────

func encodeNode(n Node) (*yaml.Node, error) {
	switch v := n.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil

	case *Scalar:
		out := &yaml.Node{Kind: yaml.ScalarNode, Value: v.Text}
		switch v.Tag {
		case TagString:
			out.Tag = "!!str"
		case TagNull:
			out.Tag = "!!null"
		}
		return out, nil

	case *StringBlock:
		style := yaml.LiteralStyle
		if v.Layout == Folded {
			style = yaml.FoldedStyle
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: style, Value: v.Text}, nil

	case *Binary:
		if v.Encoding == Base64Block {
			lines := wrap(base64.StdEncoding.EncodeToString(v.Data), base64LineWidth)
			out := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!binary", Value: strings.Join(lines, "\n")}
			if len(lines) > 1 {
				out.Value += "\n"
				out.Style = yaml.LiteralStyle
			}
			return out, nil
		}
		out := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, b := range v.Data {
			out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.Itoa(int(b))})
		}
		return out, nil

	case *Sequence:
		out := &yaml.Node{Kind: yaml.SequenceNode}
		if v.Flow {
			out.Style = yaml.FlowStyle
		}
		for i, item := range v.Items {
			child, err := encodeNode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Content = append(out.Content, child)
		}
		return out, nil

	case *Mapping:
		out := &yaml.Node{Kind: yaml.MappingNode}
		for _, e := range v.Entries {
			child, err := encodeNode(e.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key, HeadComment: joinComment(e.Comment)}
			out.Content = append(out.Content, key, child)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

func wrap(s string, width int) []string {
	if len(s) <= width {
		return []string{s}
	}
	var lines []string
	for len(s) > width {
		lines = append(lines, s[:width])
		s = s[width:]
	}
	if s != "" {
		lines = append(lines, s)
	}
	return lines
}

func joinComment(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case l == "":
			out[i] = "#"
		case strings.HasPrefix(l, "#"):
			out[i] = l
		default:
			out[i] = "# " + l
		}
	}
	return strings.Join(out, "\n")
}

// ── Decoding ──────────────────────────────────────────────────────────────────

func decodeNode(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: dangling alias", n.Line)
		}
		return decodeNode(n.Alias)

	case yaml.ScalarNode:
		return decodeScalar(n)

	case yaml.SequenceNode:
		seq := &Sequence{Flow: n.Style&yaml.FlowStyle != 0}
		for i, item := range n.Content {
			child, err := decodeNode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			seq.Items = append(seq.Items, child)
		}
		return seq, nil

	case yaml.MappingNode:
		return decodeMapping(n)
	}
	return nil, fmt.Errorf("line %d: unsupported node %s", n.Line, kindName(n))
}

func decodeScalar(n *yaml.Node) (Node, error) {
	tag := n.ShortTag()
	if tag == "!!binary" {
		data, err := base64.StdEncoding.DecodeString(stripSpace(n.Value))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid base64 block: %w", n.Line, err)
		}
		return &Binary{Data: data, Encoding: Base64Block}, nil
	}
	if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		layout := Literal
		if n.Style&yaml.FoldedStyle != 0 {
			layout = Folded
		}
		return &StringBlock{Text: n.Value, Layout: layout, Chomping: chompingOf(n.Value), Indent: -1}, nil
	}

	out := &Scalar{Text: n.Value}
	switch tag {
	case "!!int":
		out.Tag = TagInt
	case "!!float":
		out.Tag = TagFloat
	case "!!bool":
		out.Tag = TagBool
	case "!!null":
		out.Tag = TagNull
	default:
		out.Tag = TagString
	}
	return out, nil
}

func decodeMapping(n *yaml.Node) (*Mapping, error) {
	m := &Mapping{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.AliasNode && k.Alias != nil {
			k = k.Alias
		}
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		if m.Has(k.Value) {
			return nil, fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		child, err := decodeNode(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.Value, err)
		}
		m.Append(k.Value, child, splitComment(k.HeadComment)...)
	}
	return m, nil
}

func chompingOf(text string) Chomping {
	switch {
	case strings.HasSuffix(text, "\n\n"):
		return ChompKeep
	case strings.HasSuffix(text, "\n"):
		return ChompClip
	}
	return ChompStrip
}

func splitComment(c string) []string {
	if c == "" {
		return nil
	}
	lines := strings.Split(c, "\n")
	for i, l := range lines {
		l = strings.TrimPrefix(l, "#")
		lines[i] = strings.TrimPrefix(l, " ")
	}
	return lines
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
