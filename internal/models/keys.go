package models

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityKind discriminates the key spaces of remote entities.
type EntityKind uint8

const (
	KindMatch EntityKind = iota + 1
	KindPlayer
	KindPlayerName
)

func (k EntityKind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindPlayer:
		return "player"
	case KindPlayerName:
		return "name"
	default:
		return "unknown"
	}
}

// EntityKey identifies a match or player. Keys never collide across kinds.
type EntityKey struct {
	Kind EntityKind
	ID   int64
	Name string
}

func MatchKey(id int64) EntityKey  { return EntityKey{Kind: KindMatch, ID: id} }
func PlayerKey(id int64) EntityKey { return EntityKey{Kind: KindPlayer, ID: id} }

// PlayerNameKey normalizes the name the way the remote service does:
// lower case with all whitespace removed.
func PlayerNameKey(name string) EntityKey {
	return EntityKey{Kind: KindPlayerName, Name: NormalizeName(name)}
}

// NormalizeName returns the canonical lookup form of a player name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

// Numeric reports whether the key is addressed by an integer id.
func (k EntityKey) Numeric() bool {
	return k.Kind == KindMatch || k.Kind == KindPlayer
}

func (k EntityKey) String() string {
	if k.Numeric() {
		return k.Kind.String() + ":" + strconv.FormatInt(k.ID, 10)
	}
	return k.Kind.String() + ":" + k.Name
}

// ParseEntityKey is the inverse of EntityKey.String.
func ParseEntityKey(s string) (EntityKey, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return EntityKey{}, fmt.Errorf("invalid entity key %q", s)
	}
	switch kind {
	case "match", "player":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return EntityKey{}, fmt.Errorf("invalid entity key %q: %w", s, err)
		}
		if kind == "match" {
			return MatchKey(id), nil
		}
		return PlayerKey(id), nil
	case "name":
		return EntityKey{Kind: KindPlayerName, Name: rest}, nil
	}
	return EntityKey{}, fmt.Errorf("invalid entity key kind %q", kind)
}
