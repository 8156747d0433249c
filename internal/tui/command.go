package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/actbridge/actbridge/internal/script"
)

// helpText lists the console commands.
const helpText = "create start resume pause stop restart destroy | intent [action data] | " +
	"permission <code> [perm=grant...] | battery <status> <level> <scale> | " +
	"watch battery | watch permission [consume] | sleep <dur> | quit"

// ParseCommand converts a console line into a script step.
func ParseCommand(line string) (script.Step, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return script.Step{}, fmt.Errorf("empty command")
	}
	name, args := fields[0], fields[1:]

	var st script.Step
	switch name {
	case "create", "start", "resume", "pause", "stop", "restart", "destroy":
		if len(args) != 0 {
			return st, fmt.Errorf("%s takes no arguments", name)
		}
		st.Event = name
	case "intent":
		switch len(args) {
		case 0:
			st.Intent = &script.IntentStep{}
		case 1:
			st.Intent = &script.IntentStep{Action: args[0]}
		case 2:
			st.Intent = &script.IntentStep{Action: args[0], Data: args[1]}
		default:
			return st, fmt.Errorf("usage: intent [action [data]]")
		}
	case "permission":
		p, err := parsePermission(args)
		if err != nil {
			return st, err
		}
		st.Permission = p
	case "battery":
		b, err := parseBattery(args)
		if err != nil {
			return st, err
		}
		st.Battery = b
	case "watch":
		if len(args) == 0 {
			return st, fmt.Errorf("usage: watch battery | watch permission [consume]")
		}
		switch args[0] {
		case "battery":
			st.RegisterBattery = true
		case "permission":
			consume := len(args) > 1 && args[1] == "consume"
			st.RegisterPermission = &script.RegisterPermissionStep{Consume: consume}
		default:
			return st, fmt.Errorf("unknown observer %q", args[0])
		}
	case "sleep":
		if len(args) != 1 {
			return st, fmt.Errorf("usage: sleep <duration>")
		}
		st.Sleep = args[0]
	default:
		return st, fmt.Errorf("unknown command %q", name)
	}
	return st, nil
}

// parsePermission parses "<code> [perm=grant ...]".
func parsePermission(args []string) (*script.PermissionStep, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: permission <code> [perm=grant...]")
	}
	code, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid request code %q", args[0])
	}
	p := &script.PermissionStep{Code: code}
	for _, pair := range args[1:] {
		perm, grant, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("want perm=grant, got %q", pair)
		}
		g, err := strconv.Atoi(grant)
		if err != nil {
			return nil, fmt.Errorf("invalid grant %q", grant)
		}
		p.Permissions = append(p.Permissions, perm)
		p.Grants = append(p.Grants, g)
	}
	return p, nil
}

// parseBattery parses "<status> <level> <scale>".
func parseBattery(args []string) (*script.BatteryStep, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("usage: battery <status> <level> <scale>")
	}
	var vals [3]int
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		vals[i] = v
	}
	return &script.BatteryStep{Status: vals[0], Level: vals[1], Scale: vals[2]}, nil
}
