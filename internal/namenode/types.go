package namenode

import (
	"fmt"
	"strings"
)

// NodeRole is the HA role of the local NameNode, derived at runtime.
type NodeRole int

const (
	RoleNonHA NodeRole = iota
	RoleActive
	RoleStandby
)

func (r NodeRole) String() string {
	switch r {
	case RoleActive:
		return "active"
	case RoleStandby:
		return "standby"
	default:
		return "non-ha"
	}
}

// UpgradeType is the kind of stack upgrade in progress, if any.
type UpgradeType int

const (
	UpgradeNone UpgradeType = iota
	UpgradeRolling
	UpgradeNonRolling
)

func (u UpgradeType) String() string {
	switch u {
	case UpgradeRolling:
		return "rolling"
	case UpgradeNonRolling:
		return "nonrolling"
	default:
		return "none"
	}
}

// ParseUpgradeType accepts "", "none", "rolling" and "nonrolling".
func ParseUpgradeType(s string) (UpgradeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return UpgradeNone, nil
	case "rolling":
		return UpgradeRolling, nil
	case "nonrolling", "non-rolling", "express":
		return UpgradeNonRolling, nil
	default:
		return UpgradeNone, fmt.Errorf("%w: unknown upgrade type %q", ErrConfiguration, s)
	}
}

// Direction of an upgrade.
type Direction int

const (
	DirectionUpgrade Direction = iota
	DirectionDowngrade
)

func (d Direction) String() string {
	if d == DirectionDowngrade {
		return "downgrade"
	}
	return "upgrade"
}

// ParseDirection accepts "", "upgrade" and "downgrade".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "upgrade":
		return DirectionUpgrade, nil
	case "downgrade":
		return DirectionDowngrade, nil
	default:
		return DirectionUpgrade, fmt.Errorf("%w: unknown upgrade direction %q", ErrConfiguration, s)
	}
}

// Phase distinguishes the very first start of a cluster from every later one.
type Phase int

const (
	PhaseOther Phase = iota
	PhaseInitialStart
)

func (p Phase) String() string {
	if p == PhaseInitialStart {
		return "initial_start"
	}
	return "other"
}

// ParsePhase accepts "", "other" and "initial_start".
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "other":
		return PhaseOther, nil
	case "initial_start":
		return PhaseInitialStart, nil
	default:
		return PhaseOther, fmt.Errorf("%w: unknown command phase %q", ErrConfiguration, s)
	}
}

// UpgradeContext is fixed for the duration of one Start.
type UpgradeContext struct {
	Type      UpgradeType
	Direction Direction
	Phase     Phase
}

// Action is a lifecycle entry point.
type Action string

const (
	ActionConfigure    Action = "configure"
	ActionStart        Action = "start"
	ActionStop         Action = "stop"
	ActionStatus       Action = "status"
	ActionDecommission Action = "decommission"
	ActionFormat       Action = "format"
)

// Actions lists every supported action.
var Actions = []Action{
	ActionConfigure,
	ActionStart,
	ActionStop,
	ActionStatus,
	ActionDecommission,
	ActionFormat,
}

// ParseAction maps a name to an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrConfiguration, s)
}

// Request is one invocation of the orchestrator.
type Request struct {
	Action Action

	// HDFSBinary is the hdfs client path. Required for start and stop.
	HDFSBinary string

	// DoFormat allows Start to format an unformatted NameNode.
	DoFormat bool

	// ForceFormat reformats even when the NameNode looks formatted. Format action only.
	ForceFormat bool

	Upgrade UpgradeContext
}
