package luafx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/brickstorm/internal/app"
)

// DefaultCallTimeout bounds a single scripted hook call.
const DefaultCallTimeout = 250 * time.Millisecond

// ErrVMClosed is returned when a script runs after its interpreter was
// torn down.
var ErrVMClosed = errors.New("lua vm closed")

// vm wraps a gopher-lua interpreter restricted to safe libraries.
// LState is not goroutine-safe; the mutex serializes every entry point.
type vm struct {
	mu      sync.Mutex
	L       *lua.LState
	closed  bool
	timeout time.Duration
	log     *app.Logger
}

func newVM(timeout time.Duration, log *app.Logger) *vm {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Opened selectively below
	})
	openSafeLibraries(L)

	v := &vm{L: L, timeout: timeout, log: log}
	v.install()
	return v
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Intentionally NOT opened:
	// - io (file system access)
	// - os (system calls, execute)
	// - debug (can bypass the sandbox)
	// - package (can load arbitrary modules)
}

// install strips the escape hatches OpenBase leaves behind and routes
// print through the session logger.
func (v *vm) install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		v.L.SetGlobal(name, lua.LNil)
	}

	v.L.SetGlobal("print", v.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.Get(i).String())
		}
		v.log.Debug("script: %s", strings.Join(parts, " "))
		return 0
	}))
}

// doFile executes a Lua file.
func (v *vm) doFile(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrVMClosed
	}
	return v.recovered(func() error {
		return v.L.DoFile(path)
	})
}

// doString executes a Lua string.
func (v *vm) doString(code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrVMClosed
	}
	return v.recovered(func() error {
		return v.L.DoString(code)
	})
}

// call invokes a Lua function under the per-call deadline.
func (v *vm) call(fn *lua.LFunction, args ...lua.LValue) (ret []lua.LValue, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrVMClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	v.L.SetContext(ctx)
	defer v.L.RemoveContext()

	// Record stack top before pushing anything
	stackTop := v.L.GetTop()

	err = v.recovered(func() error {
		v.L.Push(fn)
		for _, arg := range args {
			v.L.Push(arg)
		}
		return v.L.PCall(len(args), lua.MultRet, nil)
	})
	if err != nil {
		return nil, err
	}

	// Collect return values (only the values added by the call)
	nRet := v.L.GetTop() - stackTop
	if nRet <= 0 {
		return nil, nil
	}
	ret = make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		ret[i] = v.L.Get(stackTop + i + 1)
	}
	v.L.Pop(nRet)

	return ret, nil
}

// buildTable constructs a table while holding the interpreter lock.
// Returns nil when the interpreter is closed.
func (v *vm) buildTable(build func(L *lua.LState) *lua.LTable) *lua.LTable {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	return build(v.L)
}

// globalTable returns a global of table type.
func (v *vm) globalTable(name string) (*lua.LTable, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, false
	}
	t, ok := v.L.GetGlobal(name).(*lua.LTable)
	return t, ok
}

// recovered executes a function with panic recovery.
func (v *vm) recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// close releases the interpreter. Idempotent.
func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.L.Close()
	v.closed = true
}
