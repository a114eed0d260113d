// Package lua runs schema scripts on gopher-lua.
//
// A script is either an expression ("x > 0") or a chunk of statements
// ending in a return ("if x > 0 then return true end return false"). It
// is compiled once to a function prototype; every invocation runs it on a
// fresh, sandboxed state with the bindings set as globals.
package lua

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/bfv/configs/pkg/script"
)

// LanguageID is the id the host registers under.
const LanguageID = "lua"

// Supported language options.
const (
	OptionSandbox       = "sandbox"
	OptionCallStackSize = "call-stack-size"
)

// Host compiles Lua scripts.
type Host struct{}

// New returns a Lua host.
func New() *Host {
	return &Host{}
}

// Language returns LanguageID.
func (*Host) Language() string { return LanguageID }

// Compile parses source into a reusable program.
func (*Host) Compile(name, source string, opts []script.LanguageOption) (script.Program, error) {
	cfg, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}

	chunk, err := parse.Parse(strings.NewReader("return "+source), name)
	if err != nil {
		chunk, err = parse.Parse(strings.NewReader(source), name)
		if err != nil {
			return nil, err
		}
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, err
	}
	return &program{proto: proto, options: cfg}, nil
}

type options struct {
	sandbox       bool
	callStackSize int
}

func parseOptions(opts []script.LanguageOption) (options, error) {
	cfg := options{sandbox: true, callStackSize: lua.CallStackSize}
	for _, o := range opts {
		switch o.Key {
		case OptionSandbox:
			v, err := strconv.ParseBool(o.Value)
			if err != nil {
				return cfg, fmt.Errorf("option %s: %w", o.Key, err)
			}
			cfg.sandbox = v
		case OptionCallStackSize:
			v, err := strconv.Atoi(o.Value)
			if err != nil || v <= 0 {
				return cfg, fmt.Errorf("option %s: invalid size %q", o.Key, o.Value)
			}
			cfg.callStackSize = v
		default:
			return cfg, fmt.Errorf("unknown option %q", o.Key)
		}
	}
	return cfg, nil
}

type program struct {
	proto   *lua.FunctionProto
	options options
}

// Run executes the program on a new state. The state honours ctx, so a
// cancelled or expired context stops a running loop.
func (p *program) Run(ctx context.Context, bindings map[string]any) (result any, err error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: p.options.callStackSize,
	})
	defer L.Close()

	if p.options.sandbox {
		openSandboxed(L)
	} else {
		L.OpenLibs()
	}
	L.SetContext(ctx)

	for name, v := range bindings {
		L.SetGlobal(name, toLua(L, v))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	L.Push(L.NewFunctionFromProto(p.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return toGo(ret), nil
}

// openSandboxed opens the base, table, string and math libraries and drops
// everything that loads code or touches the file system.
func openSandboxed(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}
