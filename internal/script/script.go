// Package script loads lifecycle scripts and plays them against a bridge.
//
// A script is an ordered list of steps. Each step does exactly one thing:
// deliver a lifecycle event, deliver an intent, deliver a permission result,
// publish a battery broadcast, register an observer or sleep.
//
//	name: cold start
//	steps:
//	  - event: create
//	  - event: start
//	  - intent: {action: VIEW, data: "app://open"}
//	  - register_battery: true
//	  - battery: {status: 2, level: 50, scale: 100}
//	  - sleep: 100ms
//	  - event: destroy
//
// Scripts can be written in YAML or TOML; the format is chosen by extension.
package script

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/actbridge/actbridge/internal/bridge"
	"github.com/actbridge/actbridge/internal/errors"
)

// Format is a script encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Script is a named sequence of steps.
type Script struct {
	Name  string `yaml:"name" toml:"name"`
	Steps []Step `yaml:"steps" toml:"steps"`
}

// Step is one scripted action. Exactly one field must be set.
type Step struct {
	// Event is a lifecycle event name: create, start, resume, pause, stop, restart or destroy
	Event string `yaml:"event,omitempty" toml:"event,omitempty"`
	// Intent delivers a new intent. An empty action makes it a null intent.
	Intent *IntentStep `yaml:"intent,omitempty" toml:"intent,omitempty"`
	// Permission delivers a permission result
	Permission *PermissionStep `yaml:"permission,omitempty" toml:"permission,omitempty"`
	// Battery publishes a battery broadcast to the manual power source
	Battery *BatteryStep `yaml:"battery,omitempty" toml:"battery,omitempty"`
	// RegisterBattery installs a battery observer that reports to the runner output
	RegisterBattery bool `yaml:"register_battery,omitempty" toml:"register_battery,omitempty"`
	// RegisterPermission installs a permission observer
	RegisterPermission *RegisterPermissionStep `yaml:"register_permission,omitempty" toml:"register_permission,omitempty"`
	// Sleep pauses the script, e.g. "250ms"
	Sleep string `yaml:"sleep,omitempty" toml:"sleep,omitempty"`
}

// IntentStep describes an intent.
type IntentStep struct {
	Action string `yaml:"action" toml:"action"`
	Data   string `yaml:"data" toml:"data"`
}

// PermissionStep describes a permission result.
type PermissionStep struct {
	Code        int      `yaml:"code" toml:"code"`
	Permissions []string `yaml:"permissions" toml:"permissions"`
	Grants      []int    `yaml:"grants" toml:"grants"`
}

// BatteryStep describes a battery-changed broadcast.
type BatteryStep struct {
	Status int `yaml:"status" toml:"status"`
	Level  int `yaml:"level" toml:"level"`
	Scale  int `yaml:"scale" toml:"scale"`
}

// RegisterPermissionStep configures the scripted permission observer.
type RegisterPermissionStep struct {
	// Consume makes the observer report results as handled
	Consume bool `yaml:"consume" toml:"consume"`
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.NewValidationError("unsupported script extension").
			WithField("path").WithValue(path)
	}
}

// Load reads and validates the script at path.
func Load(path string) (*Script, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Script, error) {
	var s Script
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing script: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &s)
		if err != nil {
			return nil, fmt.Errorf("parsing script: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.NewValidationError("unknown script key").
				WithField(undecoded[0].String())
		}
	default:
		return nil, errors.NewValidationError("unsupported script format").
			WithField("format").WithValue(string(format))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every step.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.NewValidationError("script has no steps").WithField("steps")
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(); err != nil {
			return errors.NewValidationError("invalid step").
				WithField(fmt.Sprintf("steps[%d]", i)).WithCause(err)
		}
	}
	return nil
}

// kinds returns the names of the fields set on the step.
func (st *Step) kinds() []string {
	var set []string
	if st.Event != "" {
		set = append(set, "event")
	}
	if st.Intent != nil {
		set = append(set, "intent")
	}
	if st.Permission != nil {
		set = append(set, "permission")
	}
	if st.Battery != nil {
		set = append(set, "battery")
	}
	if st.RegisterBattery {
		set = append(set, "register_battery")
	}
	if st.RegisterPermission != nil {
		set = append(set, "register_permission")
	}
	if st.Sleep != "" {
		set = append(set, "sleep")
	}
	return set
}

// Kind returns the name of the step's action.
func (st *Step) Kind() string {
	if kinds := st.kinds(); len(kinds) == 1 {
		return kinds[0]
	}
	return ""
}

func (st *Step) validate() error {
	kinds := st.kinds()
	switch len(kinds) {
	case 0:
		return errors.New("step is empty")
	case 1:
	default:
		return fmt.Errorf("step sets %s; want exactly one", strings.Join(kinds, ", "))
	}

	switch kinds[0] {
	case "event":
		ev, ok := bridge.ParseEvent(st.Event)
		if !ok {
			return fmt.Errorf("unknown lifecycle event %q", st.Event)
		}
		if ev == bridge.EventNewIntent {
			return errors.New("use an intent step to deliver new_intent")
		}
	case "intent":
		if st.Intent.Data != "" {
			if _, err := url.Parse(st.Intent.Data); err != nil {
				return fmt.Errorf("invalid intent data: %w", err)
			}
		}
	case "permission":
		if len(st.Permission.Permissions) != len(st.Permission.Grants) {
			return fmt.Errorf("permission result has %d permissions but %d grants",
				len(st.Permission.Permissions), len(st.Permission.Grants))
		}
	case "sleep":
		d, err := time.ParseDuration(st.Sleep)
		if err != nil {
			return fmt.Errorf("invalid sleep: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("negative sleep %s", st.Sleep)
		}
	}
	return nil
}

// intent converts the step to a bridge intent. A step with no action is the
// null intent.
func (is *IntentStep) intent() *bridge.Intent {
	if is.Action == "" {
		return nil
	}
	in := &bridge.Intent{Action: is.Action}
	if is.Data != "" {
		in.Data, _ = url.Parse(is.Data)
	}
	return in
}
