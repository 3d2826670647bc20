// Package manifest reads and validates the gear's option schema document.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
)

// flagPattern matches short command-line flags: a dash followed by one or
// two alphanumerics. Schema entries whose id does not match are not options.
var flagPattern = regexp.MustCompile(`^-[A-Za-z0-9]{1,2}$`)

// IsFlag reports whether s is a well-formed short command-line flag.
func IsFlag(s string) bool {
	return flagPattern.MatchString(s)
}

// Manifest describes the gear: identity fields, the config schema mapping
// option keys to command-line flags, and the declared file inputs.
type Manifest struct {
	Name        string               `json:"name" yaml:"name" validate:"required"`
	Label       string               `json:"label" yaml:"label"`
	Version     string               `json:"version" yaml:"version" validate:"required"`
	Description string               `json:"description" yaml:"description"`
	Config      ConfigDoc            `json:"config" yaml:"config" validate:"dive"`
	Inputs      map[string]InputSpec `json:"inputs" yaml:"inputs"`
}

// ConfigEntry is one schema option. Order matters: compiled flags follow the
// document order of the config block.
type ConfigEntry struct {
	Key         string
	Flag        string `validate:"omitempty,cliflag"`
	Type        string
	Default     any
	Description string
}

// InputSpec declares a named file input.
type InputSpec struct {
	Base     string `json:"base" yaml:"base"`
	Optional bool   `json:"optional" yaml:"optional"`
}

// ConfigDoc holds config entries in document order. Standard map decoding
// would lose the order, so both decoders walk the raw document.
type ConfigDoc []ConfigEntry

// configOption is the on-disk shape of a single config entry.
type configOption struct {
	ID          string `json:"id" yaml:"id"`
	Type        string `json:"type" yaml:"type"`
	Default     any    `json:"default" yaml:"default"`
	Description string `json:"description" yaml:"description"`
}

func (c *ConfigDoc) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("config must be an object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("config key must be a string, got %v", keyTok)
		}
		var opt configOption
		if err := dec.Decode(&opt); err != nil {
			return fmt.Errorf("config entry %s: %w", key, err)
		}
		*c = append(*c, entryFromOption(key, opt))
	}
	_, err = dec.Token()
	return err
}

func (c *ConfigDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("config must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var opt configOption
		if err := valNode.Decode(&opt); err != nil {
			return fmt.Errorf("config entry %s: %w", keyNode.Value, err)
		}
		*c = append(*c, entryFromOption(keyNode.Value, opt))
	}
	return nil
}

func entryFromOption(key string, opt configOption) ConfigEntry {
	return ConfigEntry{
		Key:         key,
		Flag:        opt.ID,
		Type:        opt.Type,
		Default:     opt.Default,
		Description: opt.Description,
	}
}

// Locate returns the manifest path under dir, preferring manifest.json and
// falling back to the YAML spellings.
func Locate(dir string) (string, error) {
	for _, name := range []string{"manifest.json", "manifest.yaml", "manifest.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no manifest found in %s", gearerrors.ErrInvalidConfig, dir)
}

// Load reads a manifest, dispatching on the file extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gearerrors.NewIO("read", path, err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, gearerrors.NewParse("manifest", path, err.Error())
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, gearerrors.NewParse("manifest", path, err.Error())
		}
	default:
		return nil, gearerrors.NewUnsupported("manifest format", filepath.Ext(path))
	}
	return &m, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cliflag", func(fl validator.FieldLevel) bool {
		return flagPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the manifest for authoring mistakes: identity fields must
// be present, declared flags must be short options the compiler can emit,
// and flag-bearing entries must carry a compilable type. A run tolerates
// stray entries (the compiler skips them); this check exists so schema typos
// surface before anything is executed.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return formatValidationErrors(err)
	}
	for _, entry := range m.Config {
		if !IsFlag(entry.Flag) {
			continue
		}
		switch entry.Type {
		case "boolean", "string":
		default:
			return gearerrors.NewConfigType(entry.Key, entry.Type)
		}
	}
	return nil
}

// ConfigEntries returns the schema options in document order.
func (m *Manifest) ConfigEntries() []ConfigEntry {
	return []ConfigEntry(m.Config)
}

// formatValidationErrors converts validator errors into user-friendly messages.
func formatValidationErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return gearerrors.Wrap(err, "manifest validation")
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", gearerrors.ErrInvalidConfig, strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "cliflag":
		return fmt.Sprintf("%s %q must be a dash followed by one or two alphanumerics", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}
