// Package power turns battery broadcasts into the (charging, percent) pair
// the runtime observes, and provides the sources those broadcasts come from.
package power

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Status is the battery status code carried by a broadcast.
type Status int

// Status codes. The numeric values are part of the broadcast format.
const (
	StatusUnknown     Status = 1
	StatusCharging    Status = 2
	StatusDischarging Status = 3
	StatusNotCharging Status = 4
	StatusFull        Status = 5
)

// String returns the sysfs spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusCharging:
		return "Charging"
	case StatusDischarging:
		return "Discharging"
	case StatusNotCharging:
		return "Not charging"
	case StatusFull:
		return "Full"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStatus maps the text of a sysfs status file to a Status.
// Unrecognized text is StatusUnknown.
func ParseStatus(text string) Status {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "charging":
		return StatusCharging
	case "discharging":
		return StatusDischarging
	case "not charging":
		return StatusNotCharging
	case "full":
		return StatusFull
	default:
		return StatusUnknown
	}
}

// Broadcast extra keys.
const (
	ExtraStatus = "status"
	ExtraLevel  = "level"
	ExtraScale  = "scale"
)

// Broadcast is a battery-changed broadcast: a bag of loosely typed extras.
type Broadcast map[string]any

// NewBroadcast builds a Broadcast with the three extras set.
func NewBroadcast(status Status, level, scale int) Broadcast {
	return Broadcast{
		ExtraStatus: int(status),
		ExtraLevel:  level,
		ExtraScale:  scale,
	}
}

// Extras are the decoded broadcast fields. Missing extras are -1.
type Extras struct {
	Status int `mapstructure:"status"`
	Level  int `mapstructure:"level"`
	Scale  int `mapstructure:"scale"`
}

// Decode reads the extras out of b. Values may be numbers or numeric
// strings. Fields that are missing or fail to decode keep -1; the error
// reports the ones that failed.
func (b Broadcast) Decode() (Extras, error) {
	extras := Extras{Status: -1, Level: -1, Scale: -1}
	if len(b) == 0 {
		return extras, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &extras,
	})
	if err != nil {
		return extras, err
	}
	if err := decoder.Decode(map[string]any(b)); err != nil {
		return extras, fmt.Errorf("decode battery broadcast: %w", err)
	}
	return extras, nil
}

// Snapshot is the runtime's view of the power state.
type Snapshot struct {
	Charging bool
	// Percent is level/scale in [0,1] for sane input, NaN when scale <= 0.
	Percent float32
}

// FromExtras computes a Snapshot from decoded extras.
func FromExtras(e Extras) Snapshot {
	status := Status(e.Status)
	s := Snapshot{
		Charging: status == StatusCharging || status == StatusFull,
	}
	if e.Scale <= 0 {
		s.Percent = float32(math.NaN())
	} else {
		s.Percent = float32(e.Level) / float32(e.Scale)
	}
	return s
}

// FromBroadcast computes a Snapshot from b, treating undecodable extras as missing.
func FromBroadcast(b Broadcast) Snapshot {
	extras, _ := b.Decode()
	return FromExtras(extras)
}

// JSON renders the snapshot as {"charging": <bool>, "percent": <float>}.
// The percent uses the shortest float32 form with at least one decimal
// (0.5, 1.0); NaN and infinities render as null.
func (s Snapshot) JSON() string {
	return fmt.Sprintf(`{"charging": %t, "percent": %s}`, s.Charging, formatPercent(s.Percent))
}

// String implements fmt.Stringer.
func (s Snapshot) String() string {
	return s.JSON()
}

func formatPercent(p float32) string {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	text := strconv.FormatFloat(f, 'f', -1, 32)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}
