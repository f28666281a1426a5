package stats

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lolfu/winrate-engine/internal/models"
)

// defaultCarries are champions played as the bottom-lane carry when the
// remote role metadata does not say.
var defaultCarries = []int{
	6, 15, 18, 21, 22, 29, 42, 51, 67, 81, 96, 104, 110, 119, 133, 202, 222, 236, 429,
}

var defaultSupports = []int{
	12, 16, 25, 37, 40, 43, 44, 53, 89, 117, 143, 201, 267, 412,
}

// PositionPolicy resolves the bottom-lane carry/support split when the
// role reported for a participant is ambiguous.
type PositionPolicy struct {
	Carry   map[int]bool
	Support map[int]bool
}

type policyFile struct {
	CarryChampions   []int `yaml:"carry_champions"`
	SupportChampions []int `yaml:"support_champions"`
}

func NewPositionPolicy(carry, support []int) PositionPolicy {
	p := PositionPolicy{Carry: make(map[int]bool, len(carry)), Support: make(map[int]bool, len(support))}
	for _, id := range carry {
		p.Carry[id] = true
	}
	for _, id := range support {
		p.Support[id] = true
	}
	return p
}

func DefaultPositionPolicy() PositionPolicy {
	return NewPositionPolicy(defaultCarries, defaultSupports)
}

// LoadPositionPolicy reads a YAML policy. An empty path yields the default.
func LoadPositionPolicy(path string) (PositionPolicy, error) {
	if path == "" {
		return DefaultPositionPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return PositionPolicy{}, fmt.Errorf("read position policy: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return PositionPolicy{}, fmt.Errorf("parse position policy: %w", err)
	}
	for _, id := range f.CarryChampions {
		for _, s := range f.SupportChampions {
			if id == s {
				return PositionPolicy{}, fmt.Errorf("position policy: champion %d listed as carry and support", id)
			}
		}
	}
	return NewPositionPolicy(f.CarryChampions, f.SupportChampions), nil
}

// Infer maps the reported lane and role of a participant to a position.
func (p PositionPolicy) Infer(lane, role string, championID int) (models.Position, error) {
	switch lane {
	case "TOP":
		return models.PositionTop, nil
	case "JUNGLE":
		return models.PositionJungle, nil
	case "MID", "MIDDLE":
		return models.PositionMid, nil
	case "BOT", "BOTTOM":
		switch role {
		case "DUO_CARRY":
			return models.PositionADC, nil
		case "DUO_SUPPORT":
			return models.PositionSupport, nil
		}
		switch {
		case p.Carry[championID]:
			return models.PositionADC, nil
		case p.Support[championID]:
			return models.PositionSupport, nil
		}
	}
	return "", fmt.Errorf("%w: lane %q role %q champion %d", ErrAmbiguousPosition, lane, role, championID)
}
