package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/vmtomo/internal/monitoring"
)

// Mode selects how Verify surfaces problems.
type Mode int

const (
	// ModeWarn logs problems and reports false.
	ModeWarn Mode = iota
	// ModeRaise returns a *ValidationError.
	ModeRaise
	// ModeSilent reports false without logging.
	ModeSilent
)

// ParseMode maps "warn", "raise" or "silent" to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "", "warn":
		return ModeWarn, nil
	case "raise":
		return ModeRaise, nil
	case "silent":
		return ModeSilent, nil
	}
	return ModeWarn, fmt.Errorf("vm: unknown validation mode %q", name)
}

func (m Mode) String() string {
	switch m {
	case ModeRaise:
		return "raise"
	case ModeSilent:
		return "silent"
	}
	return "warn"
}

// Validator checks a model for structural and content defects.
type Validator struct {
	Mode Mode
}

// CheckGrid lists problems with the slowness grid.
func (v Validator) CheckGrid(s Serializable) []string {
	var problems []string
	g := s.Grid()
	shape := g.Shape()
	if shape[0] < 1 || shape[1] < 1 || shape[2] < 1 {
		problems = append(problems, fmt.Sprintf("grid shape %v has an empty dimension", shape))
	}
	if want := shape[0] * shape[1] * shape[2]; g.Len() != want {
		problems = append(problems, fmt.Sprintf("grid holds %d values (expected %d)", g.Len(), want))
	}
	var nan, zero int
	for _, x := range g.Values() {
		switch {
		case x != x:
			nan++
		case x == 0:
			zero++
		}
	}
	if nan > 0 {
		problems = append(problems, fmt.Sprintf("%d NaN values", nan))
	}
	if zero > 0 {
		problems = append(problems, fmt.Sprintf("%d zero slowness values", zero))
	}
	return problems
}

// CheckInterfaces lists problems with the interface stack.
func (v Validator) CheckInterfaces(s Serializable) []string {
	stack := s.Interfaces()
	if len(stack) == 0 {
		return nil
	}
	shape := s.Grid().Shape()
	n := shape[0] * shape[1]
	var problems []string
	var nan, inf int
	for i, f := range stack {
		lens := [4]int{len(f.Depth), len(f.Jump), len(f.DepthMask), len(f.JumpMask)}
		for k, l := range lens {
			if l != n {
				problems = append(problems, fmt.Sprintf(
					"interface %d %s has %d values (expected nx*ny = %d)", i, interfaceArrayNames[k], l, n))
			}
		}
		for _, z := range f.Depth {
			switch {
			case math.IsNaN(float64(z)):
				nan++
			case math.IsInf(float64(z), 0):
				inf++
			}
		}
	}
	if nan > 0 {
		problems = append(problems, fmt.Sprintf("%d NaN values", nan))
	}
	if inf > 0 {
		problems = append(problems, fmt.Sprintf("%d infinite values", inf))
	}
	return problems
}

// Validate runs both checks and returns nil when the model is clean.
func (v Validator) Validate(s Serializable) *ValidationError {
	e := &ValidationError{
		GridProblems:      v.CheckGrid(s),
		InterfaceProblems: v.CheckInterfaces(s),
	}
	if e.Count() == 0 {
		return nil
	}
	return e
}

// Verify reports whether s is free of problems, surfacing any according
// to the validator's Mode.
func (v Validator) Verify(s Serializable) (bool, error) {
	e := v.Validate(s)
	if e == nil {
		return true, nil
	}
	switch v.Mode {
	case ModeRaise:
		return false, e
	case ModeWarn:
		monitoring.Logf("warning: %v", e)
	}
	return false, nil
}

// Verify checks the model with a Validator in the model's Validation mode.
func (m *Model) Verify() (bool, error) {
	return Validator{Mode: m.Validation}.Verify(m)
}
