// Package sandbox runs generated analyzeData functions in an embedded
// JavaScript interpreter with no module loader, filesystem, network or timers.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/prompt"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultMaxCallStack = 1024

	deniedFunc = "__denied"
)

// ErrNoValue is returned when the function completes without returning.
var ErrNoValue = errors.New("the generated function did not return a value")

// ExecError wraps a failure raised while compiling or running generated code.
type ExecError struct {
	Msg string
}

func (e *ExecError) Error() string { return e.Msg }

// Executor evaluates generated code against a dataset.
type Executor struct {
	Timeout      time.Duration
	MaxCallStack int
}

// Run executes code and always returns display text: the normalized result,
// or a diagnostic that includes the generated code.
func (e Executor) Run(ctx context.Context, code string, ds *dataset.Dataset) string {
	out, err := e.Execute(ctx, code, ds)
	switch {
	case errors.Is(err, ErrNoValue):
		return "The generated function did not return a value.\n\nGenerated code:\n" + code
	case err != nil:
		return fmt.Sprintf("Error executing generated code: %s\n\nGenerated code:\n%s", err.Error(), code)
	}
	return out
}

// Execute is Run without the diagnostic formatting.
func (e Executor) Execute(ctx context.Context, code string, ds *dataset.Dataset) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &ExecError{Msg: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", &ExecError{Msg: err.Error()}
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	stack := e.MaxCallStack
	if stack <= 0 {
		stack = DefaultMaxCallStack
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(stack)
	if err := harden(vm); err != nil {
		return "", &ExecError{Msg: err.Error()}
	}

	timer := time.AfterFunc(timeout, func() { vm.Interrupt(fmt.Sprintf("execution timed out after %s", timeout)) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err().Error()) })
	defer stop()

	rewritten, _ := Rewrite(code)
	if _, err := vm.RunString(rewritten); err != nil {
		return "", describe(err)
	}
	fnVal, err := vm.RunString("typeof " + prompt.FunctionName + " === 'function' ? " + prompt.FunctionName + " : undefined")
	if err != nil {
		return "", describe(err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return "", &ExecError{Msg: prompt.FunctionName + " is not defined"}
	}
	rows, err := bindRows(vm, ds)
	if err != nil {
		return "", describe(err)
	}
	res, err := fn(goja.Undefined(), rows)
	if err != nil {
		return "", describe(err)
	}
	return normalize(vm, res)
}

// harden removes eval, the Function global and the constructor links on the
// function prototypes, then installs the deny-list guard. Afterwards
// (function(){}).constructor resolves to Object.
func harden(vm *goja.Runtime) error {
	for _, src := range []string{"(function(){})", "(function*(){})", "(async function(){})"} {
		proto, err := vm.RunString("Object.getPrototypeOf(" + src + ")")
		if err != nil {
			// Function kinds the interpreter cannot parse cannot be reached either.
			continue
		}
		if err := proto.ToObject(vm).Delete("constructor"); err != nil {
			return fmt.Errorf("remove %s constructor: %w", src, err)
		}
	}
	g := vm.GlobalObject()
	for _, name := range []string{"eval", "Function"} {
		if err := g.Delete(name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return vm.Set(deniedFunc, func(call goja.FunctionCall) goja.Value {
		msg := call.Argument(0).String() + " is not allowed"
		exc, err := vm.New(vm.Get("Error"), vm.ToValue(msg))
		if err != nil {
			panic(vm.ToValue(msg))
		}
		panic(exc)
	})
}

// bindRows materializes the dataset as a native array of plain objects.
func bindRows(vm *goja.Runtime, ds *dataset.Dataset) (goja.Value, error) {
	var rows []dataset.Record
	if ds != nil {
		rows = ds.Rows
	}
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	return parse(goja.Undefined(), vm.ToValue(dataset.SerializeRows(rows)))
}

func normalize(vm *goja.Runtime, res goja.Value) (string, error) {
	if res == nil || goja.IsUndefined(res) {
		return "", ErrNoValue
	}
	if goja.IsNull(res) {
		return "null", nil
	}
	if obj, ok := res.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); !isFn {
			stringify, _ := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
			if s, err := stringify(goja.Undefined(), obj, goja.Null(), vm.ToValue(2)); err == nil && !goja.IsUndefined(s) {
				return s.String(), nil
			}
		}
	}
	return res.String(), nil
}

// describe turns interpreter errors into ExecError with a readable message.
func describe(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ExecError{Msg: exceptionMessage(ex)}
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return &ExecError{Msg: fmt.Sprint(ie.Value())}
	}
	return &ExecError{Msg: err.Error()}
}

func exceptionMessage(ex *goja.Exception) string {
	v := ex.Value()
	if v == nil || goja.IsUndefined(v) {
		return ex.Error()
	}
	return v.String()
}
