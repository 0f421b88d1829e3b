package textrun

import (
	"fmt"
	"strconv"
)

const (
	DefaultFG = 37 // white
	DefaultBG = 40 // black
)

// ColorState is the foreground/background pair set by SGR escape sequences.
// Codes are the SGR parameter values themselves (30–37, 90–97, 40–47, 100–107).
type ColorState struct {
	FG int
	BG int
}

// DefaultColorState returns the state a decode pass starts from and an SGR reset
// returns to.
func DefaultColorState() ColorState {
	return ColorState{FG: DefaultFG, BG: DefaultBG}
}

// IsDefault reports whether c equals DefaultColorState.
func (c ColorState) IsDefault() bool {
	return c == DefaultColorState()
}

// Classes returns the CSS-style class names for c, e.g. "fg31 bg40".
func (c ColorState) Classes() string {
	return fmt.Sprintf("fg%d bg%d", c.FG, c.BG)
}

// apply interprets one SGR parameter. Unknown parameters are accepted and ignored.
func (c *ColorState) apply(param string) {
	if param == "" {
		*c = DefaultColorState()
		return
	}
	p, err := strconv.Atoi(param)
	if err != nil {
		// digits only, so this is an overflow: unknown code
		return
	}
	switch {
	case p == 0:
		*c = DefaultColorState()
	case 30 <= p && p <= 37, 90 <= p && p <= 97:
		c.FG = p
	case 40 <= p && p <= 47, 100 <= p && p <= 107:
		c.BG = p
	}
}
