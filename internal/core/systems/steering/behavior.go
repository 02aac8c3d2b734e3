package steering

import (
	"fmt"
	"strings"

	"github.com/zeusync/boids/internal/core/systems/physics"
)

// Behavior selects which steering rule an agent follows each tick.
type Behavior uint8

const (
	BehaviorSeek Behavior = iota
	BehaviorArrive
)

func (b Behavior) String() string {
	switch b {
	case BehaviorSeek:
		return "seek"
	case BehaviorArrive:
		return "arrive"
	default:
		return fmt.Sprintf("behavior(%d)", uint8(b))
	}
}

// ParseBehavior accepts "seek" or "arrive", case-insensitively.
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seek":
		return BehaviorSeek, nil
	case "arrive":
		return BehaviorArrive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBehavior, s)
	}
}

// Apply runs the behavior against target and returns the heading hint.
func (b Behavior) Apply(a *Agent, target physics.Vector3) physics.Vector3 {
	if b == BehaviorArrive {
		return a.Arrive(target)
	}
	return a.Seek(target)
}

func (b Behavior) MarshalText() ([]byte, error) {
	if b != BehaviorSeek && b != BehaviorArrive {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBehavior, uint8(b))
	}
	return []byte(b.String()), nil
}

func (b *Behavior) UnmarshalText(text []byte) error {
	parsed, err := ParseBehavior(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
