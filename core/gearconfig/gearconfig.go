// Package gearconfig loads the run configuration the pipeline writes next to
// the gear's inputs.
package gearconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
)

// Config mirrors config.json: the option values chosen for this run, the
// staged input files, where results attach, and (optionally) how to reach
// the pipeline API.
type Config struct {
	Values      map[string]any   `json:"config"`
	Inputs      map[string]Input `json:"inputs" validate:"dive"`
	Destination Destination      `json:"destination"`
	Core        *Core            `json:"core,omitempty"`

	runID string
}

// Input is one staged input file.
type Input struct {
	Base     string   `json:"base"`
	Location Location `json:"location"`
}

// Location is where the pipeline staged the file.
type Location struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name"`
}

// Destination is the container the analysis attaches to.
type Destination struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Core carries pipeline API credentials when the run has them.
type Core struct {
	APIBaseURL string `json:"api_base_url" validate:"omitempty,url"`
	APIKey     string `json:"api_key"`
}

// Load reads a config.json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gearerrors.NewIO("read", path, err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, gearerrors.NewParse("config", path, err.Error())
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks the structural invariants: every staged input carries a
// path and any API endpoint must be a URL.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return gearerrors.Wrap(err, "config validation")
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", gearerrors.ErrInvalidConfig, strings.Join(messages, "; "))
}

// Input returns the named staged input.
func (c *Config) Input(name string) (Input, bool) {
	in, ok := c.Inputs[name]
	return in, ok
}

// RunID returns the destination container id, minting a random one when the
// pipeline did not provide a destination. The value is stable for the
// lifetime of the Config.
func (c *Config) RunID() string {
	if c.runID == "" {
		if c.Destination.ID != "" {
			c.runID = c.Destination.ID
		} else {
			c.runID = uuid.NewString()
		}
	}
	return c.runID
}

// APICredentials returns the pipeline API endpoint when the run config
// carries a complete one. ok is false for runs that must fall back to file
// metadata.
func (c *Config) APICredentials() (baseURL, key string, ok bool) {
	if c.Core == nil || c.Core.APIBaseURL == "" || c.Core.APIKey == "" {
		return "", "", false
	}
	return c.Core.APIBaseURL, c.Core.APIKey, true
}
