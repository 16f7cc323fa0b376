package force

import (
	"errors"
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

var errScaleUndefined = errors.New("script must assign scale")

// Expr is a compiled strength expression. Scripts see frame (int) and
// seconds (float) and must assign scale. Only the math module is importable
// so that results depend on nothing but the inputs. The input is not called
// time because tengo has a builtin of that name.
type Expr struct {
	source   string
	compiled *tengo.Compiled
}

func CompileExpr(source string) (*Expr, error) {
	script := tengo.NewScript([]byte(source))
	if err := script.Add("frame", 0); err != nil {
		return nil, err
	}
	if err := script.Add("seconds", 0.0); err != nil {
		return nil, err
	}
	script.SetImports(stdlib.GetModuleMap("math"))

	compiled, err := script.Compile()
	if err != nil {
		return nil, err
	}
	e := &Expr{source: source, compiled: compiled}
	// Trial run as the first stepped frame so scripts dividing by frame
	// are accepted.
	if _, err := e.Eval(1, 0); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Expr) Source() string {
	if e == nil {
		return ""
	}
	return e.source
}

// Eval runs the script for one frame and returns scale. Runtime panics of
// the VM, such as integer division by zero, come back as errors.
func (e *Expr) Eval(frame int, seconds float64) (scale float64, err error) {
	if e == nil || e.compiled == nil {
		return 1, nil
	}
	if err := e.compiled.Set("frame", frame); err != nil {
		return 0, err
	}
	if err := e.compiled.Set("seconds", seconds); err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			scale, err = 0, fmt.Errorf("script panicked at frame %d: %v", frame, r)
		}
	}()
	if err := e.compiled.Run(); err != nil {
		return 0, err
	}
	if !e.compiled.IsDefined("scale") {
		return 0, errScaleUndefined
	}
	v := e.compiled.Get("scale")
	switch v.ValueType() {
	case "int", "float":
	default:
		return 0, fmt.Errorf("scale must be a number, got %s", v.ValueType())
	}
	return finiteOr(v.Float(), 0), nil
}

// Clone returns an independent copy for snapshots.
func (e *Expr) Clone() *Expr {
	if e == nil {
		return nil
	}
	return &Expr{source: e.source, compiled: e.compiled.Clone()}
}
