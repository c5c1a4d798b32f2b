package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	FlowInflow  FlowDirection = "inflow"
	FlowOutflow FlowDirection = "outflow"

	codeSegments   = 4
	codeSegmentLen = 3
)

type (
	// AccountCode is a hierarchical chart-of-accounts code in the form
	// NNN-NNN-NNN-NNN. Deeper levels refine the classification; unused
	// trailing segments are all zeroes (e.g. "110-000-000-000" is the
	// level-1 group refined by "110-505-000-000" at level 2).
	AccountCode string

	// FlowDirection is the cash-flow contribution of an account: accounts
	// whose code starts with 1 or 4 count as inflows, the rest as outflows.
	FlowDirection string
)

var ErrInvalidAccountCode = errors.New("invalid account code")

// ParseAccountCode validates s against the NNN-NNN-NNN-NNN shape. The first
// segment must be non-zero and a zero segment cannot be followed by a
// non-zero one.
func ParseAccountCode(s string) (AccountCode, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != codeSegments {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountCode, s)
	}
	sawZero := false
	for i, p := range parts {
		if len(p) != codeSegmentLen {
			return "", fmt.Errorf("%w: %q", ErrInvalidAccountCode, s)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("%w: %q", ErrInvalidAccountCode, s)
			}
		}
		if p == "000" {
			if i == 0 {
				return "", fmt.Errorf("%w: %q has no class segment", ErrInvalidAccountCode, s)
			}
			sawZero = true
		} else if sawZero {
			return "", fmt.Errorf("%w: %q has a gap segment", ErrInvalidAccountCode, s)
		}
	}
	return AccountCode(s), nil
}

// Segments returns the four dash-separated segments.
func (c AccountCode) Segments() []string {
	return strings.Split(string(c), "-")
}

// Class returns the leading digit of the code ('1'..'9').
func (c AccountCode) Class() byte {
	if len(c) == 0 {
		return 0
	}
	return c[0]
}

// Level returns the depth of the code, 1 to 4, counted as the number of
// leading non-zero segments.
func (c AccountCode) Level() int {
	level := 0
	for _, s := range c.Segments() {
		if s == "000" {
			break
		}
		level++
	}
	return level
}

// Parent returns the code one level up, or false for a level-1 code.
func (c AccountCode) Parent() (AccountCode, bool) {
	level := c.Level()
	if level <= 1 {
		return "", false
	}
	parts := c.Segments()
	parts[level-1] = "000"
	return AccountCode(strings.Join(parts, "-")), true
}

// IsDescendantOf reports whether c sits under p in the hierarchy.
func (c AccountCode) IsDescendantOf(p AccountCode) bool {
	if c == p {
		return false
	}
	pLevel := p.Level()
	if pLevel >= c.Level() {
		return false
	}
	cs, ps := c.Segments(), p.Segments()
	for i := 0; i < pLevel; i++ {
		if cs[i] != ps[i] {
			return false
		}
	}
	return true
}

// Direction classifies the account for cash-flow purposes: class 1 and
// class 4 codes contribute as inflows, every other class as an outflow.
func (c AccountCode) Direction() FlowDirection {
	switch c.Class() {
	case '1', '4':
		return FlowInflow
	default:
		return FlowOutflow
	}
}

func (c AccountCode) String() string {
	return string(c)
}
