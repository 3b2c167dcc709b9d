package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// HexColor is a 0xRRGGBB color. In YAML it reads "#rrggbb", "0xrrggbb" or
// a plain integer and is written as "#rrggbb".
type HexColor uint32

// String returns the color as "#rrggbb".
func (c HexColor) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *HexColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: color must be a scalar", value.Line)
	}
	v, err := parseHexColor(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c HexColor) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func parseHexColor(s string) (HexColor, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(s[1:], 16, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	default:
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	if v > 0xffffff {
		return 0, fmt.Errorf("color %q out of range", s)
	}
	return HexColor(v), nil
}
