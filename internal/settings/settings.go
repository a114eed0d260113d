// Package settings reads the engine settings: script defaults, timeouts
// and document layout. Values come from viper, so they can be set in a
// settings file, through CONFIGS_* environment variables or by flags bound
// to the same keys.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bfv/configs/pkg/document"
	"github.com/bfv/configs/pkg/mapper"
	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/script/lua"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "CONFIGS"

// Setting keys.
const (
	KeyScriptLanguage   = "script.language"
	KeyScriptOptions    = "script.options"
	KeyScriptTimeout    = "script.timeout"
	KeyOverrideLanguage = "script.override-language"
	KeyOverrideOptions  = "script.override-options"
	KeyDocumentIndent   = "document.indent"
)

// Settings is the resolved engine configuration.
type Settings struct {
	Script   Script
	Document Document
}

// Script holds the script bridge settings.
type Script struct {
	// Language and Options are the process default for scripts that
	// declare no language.
	Language string
	Options  []string
	Timeout  time.Duration

	// OverrideLanguage and OverrideOptions are forced on scripts that ask
	// to override the process default.
	OverrideLanguage string
	OverrideOptions  []string
}

// Document holds the document codec settings.
type Document struct {
	Indent int
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyScriptLanguage, lua.LanguageID)
	v.SetDefault(KeyScriptOptions, []string{})
	v.SetDefault(KeyScriptTimeout, script.DefaultTimeout)
	v.SetDefault(KeyOverrideLanguage, "")
	v.SetDefault(KeyOverrideOptions, []string{})
	v.SetDefault(KeyDocumentIndent, document.DefaultIndent)
}

// Load reads the settings from v. path names an optional settings file.
func Load(v *viper.Viper, path string) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading settings %s: %w", path, err)
		}
	}

	s := &Settings{
		Script: Script{
			Language:         v.GetString(KeyScriptLanguage),
			Options:          v.GetStringSlice(KeyScriptOptions),
			Timeout:          v.GetDuration(KeyScriptTimeout),
			OverrideLanguage: v.GetString(KeyOverrideLanguage),
			OverrideOptions:  v.GetStringSlice(KeyOverrideOptions),
		},
		Document: Document{
			Indent: v.GetInt(KeyDocumentIndent),
		},
	}
	if s.Script.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyScriptTimeout, s.Script.Timeout)
	}
	if s.Document.Indent < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", KeyDocumentIndent, s.Document.Indent)
	}
	return s, nil
}

func language(id string, raw []string) (script.Language, error) {
	opts, err := script.ParseLanguageOptions(raw)
	if err != nil {
		return script.Language{}, err
	}
	return script.Language{ID: id, Options: opts}, nil
}

// NewBridge returns a script bridge with the Lua host registered and the
// language defaults and timeout of s applied. opts are applied last.
func (s *Settings) NewBridge(opts ...script.Option) (*script.Bridge, error) {
	process, err := language(s.Script.Language, s.Script.Options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyScriptOptions, err)
	}
	annotation, err := language(s.Script.OverrideLanguage, s.Script.OverrideOptions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyOverrideOptions, err)
	}
	if annotation.ID == "" {
		annotation.Options = nil
	}

	base := []script.Option{
		script.WithHost(lua.New()),
		script.WithProcessDefault(process),
		script.WithAnnotationDefault(annotation),
		script.WithTimeout(s.Script.Timeout),
	}
	return script.NewBridge(append(base, opts...)...), nil
}

// NewEngine returns a mapper engine using b and the document settings of s.
func (s *Settings) NewEngine(b *script.Bridge, serializers *schema.Serializers, opts ...mapper.Option) *mapper.Engine {
	base := []mapper.Option{
		mapper.WithBridge(b),
		mapper.WithSerializers(serializers),
		mapper.WithIndent(s.Document.Indent),
	}
	return mapper.New(append(base, opts...)...)
}
