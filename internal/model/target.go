package model

import (
	"encoding/json"
	"fmt"
)

// TargetType names the kind of tenant resource a hostname serves.
type TargetType string

const (
	TargetShop    TargetType = "shop"
	TargetBooking TargetType = "booking"
	TargetPage    TargetType = "page"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetShop, TargetBooking, TargetPage:
		return true
	}
	return false
}

// Target binds a hostname to exactly one tenant resource. The zero value is
// invalid; construct targets with ShopTarget, BookingTarget, PageTarget or
// ParseTarget.
type Target struct {
	typ TargetType
	id  string
}

func ShopTarget(id string) Target    { return Target{typ: TargetShop, id: id} }
func BookingTarget(id string) Target { return Target{typ: TargetBooking, id: id} }
func PageTarget(id string) Target    { return Target{typ: TargetPage, id: id} }

// ParseTarget builds a Target from its stored representation.
func ParseTarget(typ, id string) (Target, error) {
	t := TargetType(typ)
	if !t.Valid() {
		return Target{}, fmt.Errorf("unknown target type %q", typ)
	}
	if id == "" {
		return Target{}, fmt.Errorf("target %s: missing id", typ)
	}
	return Target{typ: t, id: id}, nil
}

func (t Target) Type() TargetType { return t.typ }
func (t Target) ID() string       { return t.id }
func (t Target) IsZero() bool     { return t.typ == "" }

func (t Target) String() string {
	return string(t.typ) + ":" + t.id
}

type targetJSON struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetJSON{Type: t.typ, ID: t.id})
}

func (t *Target) UnmarshalJSON(b []byte) error {
	var raw targetJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseTarget(string(raw.Type), raw.ID)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
