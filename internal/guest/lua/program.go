package lua

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/ipc"
	"github.com/Paintersrp/proclet/internal/signals"
)

// Program is a Lua chunk hosted on the scheduler loop.
type Program struct {
	proc *host.Proc
	L    *lua.LState

	pendingExit *exitcode.Code
}

// New creates a program bound to p with the `proc` table installed. The
// state opens only the base, table, string, and math libraries; scripts get
// no direct filesystem or shell access.
func New(p *host.Proc) *Program {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	g := &Program{proc: p, L: L}
	g.register()
	return g
}

func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// Run hosts the script at path as p's program and drives the loop until the
// host exits.
func Run(ctx context.Context, p *host.Proc, path string) exitcode.Code {
	g := New(p)
	defer g.Close()

	p.Loop().Post(func() { g.Boot(path) })
	return p.Run(ctx)
}

// Boot loads and executes the chunk at path. It must run on the loop.
func (g *Program) Boot(path string) {
	g.runEntry(func() error { return g.L.DoFile(path) })
}

// BootString is Boot for an in-memory chunk.
func (g *Program) BootString(src string) {
	g.runEntry(func() error { return g.L.DoString(src) })
}

// Close releases the Lua state.
func (g *Program) Close() {
	g.L.Close()
}

// runEntry wraps every entry into the Lua state. An exit requested by the
// script is applied after the state unwinds; any other script error follows
// the uncaught-failure path.
func (g *Program) runEntry(entry func() error) {
	err := entry()
	if g.pendingExit != nil {
		code := *g.pendingExit
		g.pendingExit = nil
		g.proc.Exit(code)
		return
	}
	if err != nil {
		g.proc.Raise(fmt.Errorf("lua: %w", err))
	}
}

func (g *Program) call(fn *lua.LFunction, args ...lua.LValue) {
	g.runEntry(func() error {
		return g.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	})
}

func (g *Program) register() {
	L := g.L

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"pid":         g.procPid,
		"ppid":        g.procPPid,
		"uptime":      g.procUptime,
		"exitcode":    g.procExitCode,
		"setexitcode": g.procSetExitCode,
		"exit":        g.procExit,
		"warn":        g.procWarn,
		"deprecate":   g.procDeprecate,
		"on":          g.procOn,
		"send":        g.procSend,
		"connected":   g.procConnected,
		"disconnect":  g.procDisconnect,
		"kill":        g.procKill,
		"alive":       g.procAlive,
		"post":        g.procPost,
		"after":       g.procAfter,
	})

	env := L.NewTable()
	L.SetFuncs(env, map[string]lua.LGFunction{
		"get":    g.envGet,
		"set":    g.envSet,
		"delete": g.envDelete,
		"keys":   g.envKeys,
	})
	L.SetField(mod, "env", env)

	L.SetGlobal("proc", mod)
}

func (g *Program) procPid(L *lua.LState) int {
	L.Push(lua.LNumber(g.proc.Pid()))
	return 1
}

func (g *Program) procPPid(L *lua.LState) int {
	L.Push(lua.LNumber(g.proc.PPid()))
	return 1
}

func (g *Program) procUptime(L *lua.LState) int {
	L.Push(lua.LNumber(g.proc.Uptime().Seconds()))
	return 1
}

func (g *Program) procExitCode(L *lua.LState) int {
	L.Push(lua.LNumber(g.proc.ExitCode()))
	return 1
}

func (g *Program) procSetExitCode(L *lua.LState) int {
	g.proc.SetExitCode(exitcode.Code(L.CheckInt(1)))
	return 0
}

// procExit records the requested code and unwinds the script. The exit is
// applied once the state has fully unwound; a pcall in the script can delay
// it to the end of the current entry, never cancel it.
func (g *Program) procExit(L *lua.LState) int {
	code := exitcode.Code(L.OptInt(1, int(g.proc.ExitCode())))
	if g.pendingExit == nil {
		g.pendingExit = &code
		g.proc.SetExitCode(code)
	}
	L.RaiseError("exit requested")
	return 0
}

func (g *Program) procWarn(L *lua.LState) int {
	message := L.CheckString(1)
	name := L.OptString(2, "")
	if err := g.proc.EmitWarning(name, message); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (g *Program) procDeprecate(L *lua.LState) int {
	if err := g.proc.EmitDeprecation(L.CheckString(1)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// procOn subscribes a script function to a host surface. Lifecycle names
// are matched first; anything else is treated as a signal name.
func (g *Program) procOn(L *lua.LState) int {
	kind := L.CheckString(1)
	fn := L.CheckFunction(2)

	switch strings.ToLower(kind) {
	case "exit":
		g.proc.OnExit(func(ev host.ExitEvent) {
			g.call(fn, lua.LNumber(ev.Code))
		})
	case "beforeexit":
		g.proc.OnBeforeExit(func(ev host.BeforeExitEvent) {
			g.call(fn, lua.LNumber(ev.Code))
		})
	case "warning":
		g.proc.OnWarning(func(rec host.WarningRecord) {
			t := g.L.NewTable()
			t.RawSetString("name", lua.LString(rec.Name))
			t.RawSetString("message", lua.LString(rec.Message))
			g.call(fn, t)
		})
	case "failure":
		g.proc.OnFailure(func(f host.Failure) {
			g.call(fn, lua.LString(f.Err.Error()))
		})
	case "unhandledrejection":
		g.proc.OnUnhandledRejection(func(r host.Rejection) {
			g.call(fn, g.rejectionTable(r))
		})
	case "rejectionhandled":
		g.proc.OnRejectionHandled(func(r host.Rejection) {
			g.call(fn, g.rejectionTable(r))
		})
	case "message":
		g.proc.OnMessage(func(m json.RawMessage) {
			var v any
			if err := json.Unmarshal(m, &v); err != nil {
				return
			}
			g.call(fn, toLuaValue(g.L, v))
		})
	case "disconnect":
		g.proc.OnDisconnect(func() {
			g.call(fn)
		})
	default:
		if _, err := g.proc.OnSignal(kind, func(d signals.Delivery) {
			g.call(fn, lua.LString(d.Name))
		}); err != nil {
			L.RaiseError("subscribe %s: %s", kind, err.Error())
		}
	}
	return 0
}

func (g *Program) rejectionTable(r host.Rejection) *lua.LTable {
	t := g.L.NewTable()
	t.RawSetString("id", lua.LString(r.ID.String()))
	if r.Reason != nil {
		t.RawSetString("reason", lua.LString(r.Reason.Error()))
	}
	return t
}

func (g *Program) procSend(L *lua.LState) int {
	v := toGoValue(L.Get(1))
	err := g.proc.Send(v)
	switch {
	case err == nil:
		L.Push(lua.LTrue)
	case errors.Is(err, host.ErrNoChannel), errors.Is(err, ipc.ErrNotConnected):
		L.Push(lua.LFalse)
	default:
		L.RaiseError("send: %s", err.Error())
	}
	return 1
}

func (g *Program) procConnected(L *lua.LState) int {
	L.Push(lua.LBool(g.proc.Connected()))
	return 1
}

func (g *Program) procDisconnect(L *lua.LState) int {
	if err := g.proc.Disconnect(); err != nil && !errors.Is(err, host.ErrNoChannel) {
		L.RaiseError("disconnect: %s", err.Error())
	}
	return 0
}

func (g *Program) procKill(L *lua.LState) int {
	pid := L.CheckInt(1)

	sig := "SIGTERM"
	switch v := L.Get(2).(type) {
	case lua.LNumber:
		sig = strconv.Itoa(int(v))
	case lua.LString:
		sig = string(v)
	case *lua.LNilType:
	default:
		L.RaiseError("kill: signal must be a name or number")
	}

	if err := signals.Kill(pid, sig); err != nil {
		L.RaiseError("kill: %s", err.Error())
	}
	return 0
}

func (g *Program) procAlive(L *lua.LState) int {
	ok, err := signals.Alive(L.CheckInt(1))
	if err != nil {
		L.RaiseError("alive: %s", err.Error())
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (g *Program) procPost(L *lua.LState) int {
	fn := L.CheckFunction(1)
	g.proc.Loop().Post(func() { g.call(fn) })
	return 0
}

func (g *Program) procAfter(L *lua.LState) int {
	ms := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	cancel := g.proc.Loop().After(time.Duration(float64(ms)*float64(time.Millisecond)), func() {
		g.call(fn)
	})
	L.Push(L.NewFunction(func(L *lua.LState) int {
		cancel()
		return 0
	}))
	return 1
}

func (g *Program) envGet(L *lua.LState) int {
	if v, ok := g.proc.Env().Lookup(L.CheckString(1)); ok {
		L.Push(lua.LString(v))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}

func (g *Program) envSet(L *lua.LState) int {
	key := L.CheckString(1)
	if err := g.proc.Env().Set(key, toGoValue(L.Get(2))); err != nil {
		L.RaiseError("env.set: %s", err.Error())
	}
	return 0
}

func (g *Program) envDelete(L *lua.LState) int {
	g.proc.Env().Delete(L.CheckString(1))
	return 0
}

func (g *Program) envKeys(L *lua.LState) int {
	t := g.L.NewTable()
	for i, key := range g.proc.Env().Keys() {
		t.RawSetInt(i+1, lua.LString(key))
	}
	L.Push(t)
	return 1
}
