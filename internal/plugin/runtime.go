package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

// Runtime wraps a goja VM with the bindings available to scripts.
// A Runtime runs one request and is not safe for concurrent use.
type Runtime struct {
	vm      *goja.Runtime
	script  string
	logger  zerolog.Logger
	failure *ScriptError
}

// NewRuntime creates a new Runtime with all bindings installed
func NewRuntime(script string, logger zerolog.Logger) *Runtime {
	r := &Runtime{
		vm:     goja.New(),
		script: script,
		logger: logger,
	}
	r.setupBindings()
	return r
}

// VM returns the underlying goja runtime
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Failure returns the error raised by fail, if any
func (r *Runtime) Failure() *ScriptError {
	return r.failure
}

func (r *Runtime) setupBindings() {
	r.setupConsole()
	r.setupUtils()
	r.setupFail()
}

// setupConsole creates console.log, console.warn, console.error and console.debug
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()

	logAt := func(level zerolog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			r.logger.WithLevel(level).Str("script", r.script).Msgf("%v", args)
			return goja.Undefined()
		}
	}

	console.Set("log", logAt(zerolog.InfoLevel))
	console.Set("warn", logAt(zerolog.WarnLevel))
	console.Set("error", logAt(zerolog.ErrorLevel))
	console.Set("debug", logAt(zerolog.DebugLevel))

	r.vm.Set("console", console)
}

// setupUtils creates JSON helpers
func (r *Runtime) setupUtils() {
	utils := r.vm.NewObject()

	utils.Set("parseJSON", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("parseJSON requires string"))
		}
		var result interface{}
		if err := json.Unmarshal([]byte(call.Arguments[0].String()), &result); err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return r.vm.ToValue(result)
	})

	utils.Set("stringifyJSON", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("stringifyJSON requires value"))
		}
		data, err := json.Marshal(call.Arguments[0].Export())
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("JSON stringify error: %v", err)))
		}
		return r.vm.ToValue(string(data))
	})

	r.vm.Set("utils", utils)
}

// setupFail creates fail(code, message), which aborts the script
func (r *Runtime) setupFail() {
	r.vm.Set("fail", func(call goja.FunctionCall) goja.Value {
		err := &ScriptError{Script: r.script}
		if len(call.Arguments) > 0 {
			err.Code = call.Arguments[0].String()
		}
		if len(call.Arguments) > 1 {
			err.Message = call.Arguments[1].String()
		} else {
			err.Message = err.Code
		}
		r.failure = err
		panic(r.vm.NewGoError(err))
	})
}

// RunScript executes JavaScript code and returns the result
func (r *Runtime) RunScript(source string) (goja.Value, error) {
	return r.vm.RunString(source)
}

// CallFunction calls a JavaScript function by name with Go arguments
func (r *Runtime) CallFunction(name string, args ...interface{}) (goja.Value, error) {
	fn, ok := goja.AssertFunction(r.vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("function %s not defined", name)
	}

	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		jsArgs[i] = r.vm.ToValue(arg)
	}

	return fn(goja.Undefined(), jsArgs...)
}
