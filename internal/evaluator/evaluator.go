// Package evaluator runs quick-search expressions in a sandboxed JavaScript VM.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrEmpty is returned for blank expressions.
var ErrEmpty = errors.New("evaluator: empty expression")

// Evaluator evaluates one expression per call in a fresh VM.
type Evaluator struct {
	timeout time.Duration
}

func New(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Evaluator{timeout: timeout}
}

// Eval returns the exported value of expr; nil for undefined or null.
func (e *Evaluator) Eval(ctx context.Context, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmpty
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(1024)
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, err
		}
	}

	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt("context cancelled")
	})
	defer stop()

	val, err := vm.RunString(expr)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("evaluate: %v", interrupted.Value())
		}
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}
