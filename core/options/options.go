// Package options compiles the gear's option schema and the run's config
// values into the command-line arguments for the analysis tool.
//
// The schema is resolved once into a typed option list; compilation then
// walks that list against the config values. The two steps are separate so
// schema errors surface at load time, before any value is inspected.
package options

import (
	"fmt"
	"regexp"
	"strings"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
	"github.com/cerebralab/siena-gear/core/manifest"
)

// Kind discriminates the supported option value types.
type Kind int

const (
	// BoolOption emits its flag alone when the config value is true.
	BoolOption Kind = iota
	// StringOption emits flag and value when the config value is non-empty.
	StringOption
)

// Option is one schema entry resolved to a typed emission rule.
type Option struct {
	Key     string
	Flag    string
	Kind    Kind
	Quoted  bool // value is wrapped in double quotes on emission
	Numeric bool // value must be a signed decimal
}

// quotedKeys are options whose values the analysis tools expect quoted:
// they carry whole sub-command argument strings.
var quotedKeys = map[string]bool{
	"BET":    true,
	"S_DIFF": true,
	"S_FAST": true,
}

// numericKeys are the field-of-view bound options. The tools accept garbage
// here without complaint and produce meaningless results, so the compiler is
// the only place this contract is enforced.
var numericKeys = map[string]bool{
	"TOP":    true,
	"BOTTOM": true,
}

// numberPattern is anchored at both ends: a valid prefix followed by
// trailing garbage is exactly the input the bound check exists to refuse.
var numberPattern = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)

// Resolve turns schema entries into typed options, preserving schema order.
// Entries whose id is not a short command-line flag are dropped; they are
// documentation-only manifest keys. A declared type outside
// {boolean, string} is a fatal schema error.
func Resolve(entries []manifest.ConfigEntry) ([]Option, error) {
	opts := make([]Option, 0, len(entries))
	for _, entry := range entries {
		if !manifest.IsFlag(entry.Flag) {
			continue
		}
		opt := Option{Key: entry.Key, Flag: entry.Flag}
		switch entry.Type {
		case "boolean":
			opt.Kind = BoolOption
		case "string":
			opt.Kind = StringOption
			opt.Quoted = quotedKeys[entry.Key]
			opt.Numeric = numericKeys[entry.Key]
		default:
			return nil, gearerrors.NewConfigType(entry.Key, entry.Type)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// Compile emits argument tokens for values against the resolved options, in
// option order. Boolean options emit their flag alone iff the value is
// exactly true. String options emit a flag/value pair iff the value is
// non-empty, after quote wrapping and the numeric bound check. A value whose
// dynamic type does not match its option is a fatal config error.
func Compile(opts []Option, values map[string]any) ([]string, error) {
	args := make([]string, 0, len(opts)*2)
	for _, opt := range opts {
		value, ok := values[opt.Key]
		if !ok || value == nil {
			continue
		}
		switch opt.Kind {
		case BoolOption:
			b, isBool := value.(bool)
			if !isBool {
				return nil, &gearerrors.ConfigTypeError{Key: opt.Key, Type: fmt.Sprintf("%T", value)}
			}
			if b {
				args = append(args, opt.Flag)
			}
		case StringOption:
			s, isString := value.(string)
			if !isString {
				return nil, &gearerrors.ConfigTypeError{Key: opt.Key, Type: fmt.Sprintf("%T", value)}
			}
			if s == "" {
				continue
			}
			if opt.Quoted && !strings.HasPrefix(s, `"`) {
				s = `"` + s + `"`
			}
			if opt.Numeric && !numberPattern.MatchString(s) {
				return nil, gearerrors.NewValueValidation(opt.Key, s)
			}
			args = append(args, opt.Flag, s)
		}
	}
	return args, nil
}
