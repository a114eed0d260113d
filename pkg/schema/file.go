package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/bfv/configs/pkg/document"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/style"
)

// ── Definition file model ─────────────────────────────────────────────────────

type classDef struct {
	Name       string        `yaml:"name" toml:"name"`
	FileName   string        `yaml:"fileName" toml:"fileName"`
	Header     []string      `yaml:"header" toml:"header"`
	Footer     []string      `yaml:"footer" toml:"footer"`
	Properties []propertyDef `yaml:"properties" toml:"properties"`
}

type propertyDef struct {
	Name        string   `yaml:"name" toml:"name"`
	Type        string   `yaml:"type" toml:"type"`
	TypeName    string   `yaml:"typeName" toml:"typeName"`
	Comment     []string `yaml:"comment" toml:"comment"`
	Default     any      `yaml:"default" toml:"default"`
	DefaultFrom string   `yaml:"defaultFrom" toml:"defaultFrom"`
	RoundTrip   bool     `yaml:"roundTrip" toml:"roundTrip"`

	Fields []propertyDef `yaml:"fields" toml:"fields"`
	Elem   *propertyDef  `yaml:"elem" toml:"elem"`

	Number      *numberDef `yaml:"number" toml:"number"`
	StringBlock *blockDef  `yaml:"stringBlock" toml:"stringBlock"`
	Binary      *binaryDef `yaml:"binary" toml:"binary"`

	Validators   []validatorDef `yaml:"validators" toml:"validators"`
	KeyGenerator string         `yaml:"keyGenerator" toml:"keyGenerator"`
	KeyParser    string         `yaml:"keyParser" toml:"keyParser"`
	Normalize    string         `yaml:"normalize" toml:"normalize"`
	Language     *languageDef   `yaml:"scriptLanguage" toml:"scriptLanguage"`

	AsMap *asMapDef `yaml:"asMap" toml:"asMap"`
}

type numberDef struct {
	Pattern string `yaml:"pattern" toml:"pattern"`
	Depth   *int   `yaml:"depth" toml:"depth"`
}

type blockDef struct {
	Layout        string `yaml:"layout" toml:"layout"`
	Chomping      string `yaml:"chomping" toml:"chomping"`
	MinimumLength *int   `yaml:"minimumLength" toml:"minimumLength"`
	MinimumLines  *int   `yaml:"minimumLines" toml:"minimumLines"`
	Spacing       *int   `yaml:"spacing" toml:"spacing"`
	Depth         *int   `yaml:"depth" toml:"depth"`
}

type binaryDef struct {
	Encoding            string `yaml:"encoding" toml:"encoding"`
	SwitchIfLongerThan  *int   `yaml:"switchIfLongerThan" toml:"switchIfLongerThan"`
	SwitchIfShorterThan *int   `yaml:"switchIfShorterThan" toml:"switchIfShorterThan"`
	Depth               *int   `yaml:"depth" toml:"depth"`
}

type validatorDef struct {
	Predicate string `yaml:"predicate" toml:"predicate"`
	Message   string `yaml:"message" toml:"message"`
}

type languageDef struct {
	ID       string   `yaml:"id" toml:"id"`
	Options  []string `yaml:"options" toml:"options"`
	Override bool     `yaml:"override" toml:"override"`
}

type asMapDef struct {
	Keys          []string `yaml:"keys" toml:"keys"`
	Simplify      string   `yaml:"simplify" toml:"simplify"`
	KeySerializer string   `yaml:"keySerializer" toml:"keySerializer"`
}

// ── Loading ───────────────────────────────────────────────────────────────────

// Format is the syntax of a definition file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// LoadFile reads and compiles a schema definition file.
func LoadFile(path string, opts ...CompileOption) (*ConfigClassSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	class, err := Decode(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	if class.Name == "" {
		class.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Compile(class, opts...)
}

// Decode parses a definition into an uncompiled class schema.
func Decode(data []byte, format Format) (*ConfigClassSchema, error) {
	var def classDef
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	}

	class := &ConfigClassSchema{
		Name:     def.Name,
		FileName: def.FileName,
		Header:   def.Header,
		Footer:   def.Footer,
	}
	for i := range def.Properties {
		p, err := def.Properties[i].build()
		if err != nil {
			return nil, err
		}
		class.Properties = append(class.Properties, p)
	}
	return class, nil
}

func (d *propertyDef) build() (*PropertySchema, error) {
	p := &PropertySchema{
		Name:        d.Name,
		TypeName:    d.TypeName,
		Comment:     d.Comment,
		Default:     d.Default,
		DefaultFrom: d.DefaultFrom,
		RoundTrip:   d.RoundTrip,
	}

	switch d.Type {
	case "object":
		p.Type = TypeObject
	case "sequence", "list":
		p.Type = TypeSequence
	case "mapping", "map":
		p.Type = TypeMapping
	default:
		kind, err := style.ParseKind(d.Type)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", d.Name, err)
		}
		p.Type, p.Kind = TypeScalar, kind
	}

	for i := range d.Fields {
		f, err := d.Fields[i].build()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", d.Name, err)
		}
		p.Fields = append(p.Fields, f)
	}
	if d.Elem != nil {
		e, err := d.Elem.build()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", d.Name, err)
		}
		p.Elem = e
	}

	if err := d.buildStyles(p); err != nil {
		return nil, fmt.Errorf("property %q: %w", d.Name, err)
	}

	var lang script.Language
	var override bool
	if d.Language != nil {
		opts, err := script.ParseLanguageOptions(d.Language.Options)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", d.Name, err)
		}
		lang = script.Language{ID: d.Language.ID, Options: opts}
		override = d.Language.Override
	}
	spec := func(src string) *script.Spec {
		if src == "" {
			return nil
		}
		return &script.Spec{Source: src, Language: lang, Override: override}
	}

	for _, v := range d.Validators {
		var vs ValidatorSpec
		if pred := spec(v.Predicate); pred != nil {
			vs.Predicate = *pred
		}
		if m := spec(v.Message); m != nil {
			vs.Message = *m
		}
		p.Validators = append(p.Validators, vs)
	}
	p.NormalizeScript = spec(d.Normalize)

	if d.AsMap != nil {
		p.MapTransform = &MapTransformSpec{
			KeyFields:     d.AsMap.Keys,
			Simplify:      d.AsMap.Simplify,
			KeySerializer: d.AsMap.KeySerializer,
			KeyGenerator:  spec(d.KeyGenerator),
			KeyParser:     spec(d.KeyParser),
		}
	} else {
		p.KeyGenerator = spec(d.KeyGenerator)
		p.KeyParser = spec(d.KeyParser)
	}
	return p, nil
}

func (d *propertyDef) buildStyles(p *PropertySchema) error {
	if n := d.Number; n != nil {
		p.Styles.Number = &style.NumberStyle{Pattern: n.Pattern, Depth: intOr(n.Depth, 1)}
	}

	if b := d.StringBlock; b != nil {
		s := style.DefaultStringBlock()
		switch strings.ToLower(b.Layout) {
		case "", "literal":
		case "folded":
			s.Layout = document.Folded
		default:
			return fmt.Errorf("unknown string block layout %q", b.Layout)
		}
		switch strings.ToLower(b.Chomping) {
		case "", "strip":
		case "clip":
			s.Chomping = document.ChompClip
		case "keep":
			s.Chomping = document.ChompKeep
		default:
			return fmt.Errorf("unknown string block chomping %q", b.Chomping)
		}
		s.MinimumLength = intOr(b.MinimumLength, s.MinimumLength)
		s.MinimumLines = intOr(b.MinimumLines, s.MinimumLines)
		s.Spacing = intOr(b.Spacing, s.Spacing)
		s.Depth = intOr(b.Depth, s.Depth)
		p.Styles.StringBlock = &s
	}

	if b := d.Binary; b != nil {
		s := style.DefaultBinary()
		switch strings.ToLower(b.Encoding) {
		case "", "base64":
		case "bytes":
			s.Encoding = document.ByteSequence
		default:
			return fmt.Errorf("unknown binary encoding %q", b.Encoding)
		}
		s.SwitchIfLongerThan = intOr(b.SwitchIfLongerThan, s.SwitchIfLongerThan)
		s.SwitchIfShorterThan = intOr(b.SwitchIfShorterThan, s.SwitchIfShorterThan)
		s.Depth = intOr(b.Depth, s.Depth)
		p.Styles.Binary = &s
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
