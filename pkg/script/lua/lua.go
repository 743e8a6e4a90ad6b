// Package lua hosts scripts written in Lua, so reactions can be authored
// and deployed without recompiling the binary.
//
// A script file evaluates to a setup function:
//
//	return function(bot)
//	    bot.on("slash_command", function(payload)
//	        bot.reply("got " .. (payload.command or "?"))
//	    end)
//	    bot.hears("deploy (%S+)", function(payload, match)
//	        bot.reply("deploying " .. match[2])
//	    end)
//	end
//
// Each invocation gets its own Lua state; an LState is not goroutine-safe,
// and a fresh state per run also gives scripts the same clean-slate
// registration semantics as Go scripts. Only the base, table, string and
// math libraries are opened; scripts get no filesystem or process access.
package lua

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/slacklet/slacklet/pkg/bot"
	"github.com/slacklet/slacklet/pkg/dispatch"
	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/slackapi"
)

// Script is one Lua source file, usable wherever a Go script is.
type Script struct {
	name   string
	source string
}

// Load reads a script file. The script's name is the file name without the
// .lua extension.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua: read %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".lua")
	return &Script{name: name, source: string(data)}, nil
}

// LoadDir loads every *.lua file in dir, sorted by file name.
func LoadDir(dir string) ([]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("lua: read dir %s: %w", dir, err)
	}

	var scripts []*Script
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		s, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}

	sort.Slice(scripts, func(i, j int) bool { return scripts[i].name < scripts[j].name })
	return scripts, nil
}

// Name implements script.Script.
func (s *Script) Name() string { return s.name }

// Setup implements script.Script: it evaluates the file in a fresh state
// and calls the returned setup function with the bot table.
func (s *Script) Setup(b *bot.Bot) error {
	L := newState()

	if err := L.DoString(s.source); err != nil {
		return fmt.Errorf("lua: %s: %w", s.name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	setup, ok := ret.(*lua.LFunction)
	if !ok {
		return fmt.Errorf("lua: %s: script must return a setup function, got %s", s.name, ret.Type())
	}

	inv := &invocation{L: L, bot: b, script: s.name}
	if err := L.CallByParam(lua.P{Fn: setup, NRet: 0, Protect: true}, inv.botTable()); err != nil {
		return fmt.Errorf("lua: %s: setup: %w", s.name, err)
	}
	return nil
}

// newState builds a sandboxed Lua state with a minimal library set.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	return L
}

// invocation is the per-run bridge state. Dispatch is single-threaded
// within one invocation, so tracking the in-flight delivery in plain
// fields is safe.
type invocation struct {
	L      *lua.LState
	bot    *bot.Bot
	script string

	current    *payload.Payload
	currentCtx context.Context
}

func (inv *invocation) botTable() *lua.LTable {
	L := inv.L
	tbl := L.NewTable()
	tbl.RawSetString("on", L.NewFunction(inv.luaOn))
	tbl.RawSetString("hears", L.NewFunction(inv.luaHears))
	tbl.RawSetString("reply", L.NewFunction(inv.luaReply(false)))
	tbl.RawSetString("reply_private", L.NewFunction(inv.luaReply(true)))
	tbl.RawSetString("say", L.NewFunction(inv.luaSay))
	tbl.RawSetString("brain_get", L.NewFunction(inv.luaBrainGet))
	tbl.RawSetString("brain_set", L.NewFunction(inv.luaBrainSet))
	tbl.RawSetString("team_id", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(inv.bot.TeamID()))
		return 1
	}))
	return tbl
}

// bot.on(name..., fn)
func (inv *invocation) luaOn(L *lua.LState) int {
	top := L.GetTop()
	if top < 2 {
		L.RaiseError("on: expected at least one event name and a handler")
	}
	fn := L.CheckFunction(top)
	names := make([]string, 0, top-1)
	for i := 1; i < top; i++ {
		names = append(names, L.CheckString(i))
	}

	inv.bot.On(func(ctx context.Context, p *payload.Payload) error {
		return inv.call(ctx, fn, p, nil)
	}, names...)
	return 0
}

// bot.hears(pattern, fn) — pattern is a Go regular expression.
func (inv *invocation) luaHears(L *lua.LState) int {
	pattern := L.CheckString(1)
	fn := L.CheckFunction(2)

	re, err := regexp.Compile(pattern)
	if err != nil {
		L.RaiseError("hears: bad pattern %q: %v", pattern, err)
	}

	inv.bot.Hears(re, func(ctx context.Context, p *payload.Payload, m *dispatch.Match) error {
		return inv.call(ctx, fn, p, m)
	})
	return 0
}

func (inv *invocation) call(ctx context.Context, fn *lua.LFunction, p *payload.Payload, m *dispatch.Match) error {
	inv.current = p
	inv.currentCtx = ctx

	args := []lua.LValue{payloadToLua(inv.L, p)}
	if m != nil {
		groups := inv.L.NewTable()
		for i, g := range m.Groups {
			groups.RawSetInt(i+1, lua.LString(g))
		}
		args = append(args, groups)
	}

	if err := inv.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		return fmt.Errorf("lua: %s: handler: %w", inv.script, err)
	}
	return nil
}

// bot.reply(message [, ephemeral]) — replies to the in-flight delivery.
func (inv *invocation) luaReply(private bool) lua.LGFunction {
	return func(L *lua.LState) int {
		if inv.current == nil {
			L.RaiseError("reply: no delivery in flight")
		}
		msg, err := msgFromLua(L.CheckAny(1))
		if err != nil {
			L.RaiseError("reply: %v", err)
		}

		ephemeral := private
		if L.GetTop() >= 2 {
			ephemeral = lua.LVAsBool(L.Get(2))
		}

		if ephemeral {
			err = inv.bot.ReplyPrivate(inv.currentCtx, inv.current, msg)
		} else {
			err = inv.bot.Reply(inv.currentCtx, inv.current, msg)
		}
		if err != nil {
			L.RaiseError("reply: %v", err)
		}
		return 0
	}
}

// bot.say(message)
func (inv *invocation) luaSay(L *lua.LState) int {
	msg, err := msgFromLua(L.CheckAny(1))
	if err != nil {
		L.RaiseError("say: %v", err)
	}
	ctx := inv.currentCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := inv.bot.Say(ctx, msg); err != nil {
		L.RaiseError("say: %v", err)
	}
	return 0
}

// bot.brain_get(key)
func (inv *invocation) luaBrainGet(L *lua.LState) int {
	key := L.CheckString(1)
	v, ok := inv.bot.Recall(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, v))
	return 1
}

// bot.brain_set(key, value)
func (inv *invocation) luaBrainSet(L *lua.LState) int {
	key := L.CheckString(1)
	inv.bot.Remember(key, luaToGo(L.CheckAny(2)))
	return 0
}

func payloadToLua(L *lua.LState, p *payload.Payload) lua.LValue {
	var doc map[string]interface{}
	if err := json.Unmarshal(p.Raw(), &doc); err != nil {
		return L.NewTable()
	}
	return goToLua(L, doc)
}

// msgFromLua accepts a string or a message-shaped table.
func msgFromLua(lv lua.LValue) (*slackapi.Message, error) {
	switch v := lv.(type) {
	case lua.LString:
		return slackapi.NewTextMessage(string(v)), nil
	case *lua.LTable:
		data, err := json.Marshal(luaToGo(v))
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		msg := &slackapi.Message{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("message must be a string or table, got %s", lv.Type())
	}
}
