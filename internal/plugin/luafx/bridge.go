package luafx

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/plugin"
)

// effectCall carries one behavior invocation: the execution context
// handed down by the engine and the patch accumulating recorded
// changes.
type effectCall struct {
	ec    *plugin.ExecContext
	patch *game.Patch
}

// gameTable builds the Lua view of one invocation: read accessors plus
// mutators that record every change into the call's patch.
func (s *Script) gameTable(call *effectCall) *lua.LTable {
	return s.vm.buildTable(func(L *lua.LState) *lua.LTable {
		t := L.NewTable()
		L.SetFuncs(t, map[string]lua.LGFunction{
			"paddle":           call.luaPaddle,
			"balls":            call.luaBalls,
			"ball_count":       call.luaBallCount,
			"block_count":      call.luaBlockCount,
			"delta_ms":         call.luaDeltaMS,
			"budget_exhausted": call.luaBudgetExhausted,

			"scale_paddle_width": call.luaScalePaddleWidth,
			"set_paddle_width":   call.luaSetPaddleWidth,
			"scale_paddle_speed": call.luaScalePaddleSpeed,
			"scale_ball_speed":   call.luaScaleBallSpeed,
			"scale_ball_radius":  call.luaScaleBallRadius,
			"add_ball":           call.luaAddBall,
			"remove_ball":        call.luaRemoveBall,
		})
		return t
	})
}

func (c *effectCall) state() (plugin.GameState, bool) {
	if c.ec == nil || c.ec.Game == nil {
		return nil, false
	}
	return c.ec.Game, true
}

func (c *effectCall) luaPaddle(L *lua.LState) int {
	gs, ok := c.state()
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	p := gs.Paddle()

	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(p.X))
	t.RawSetString("y", lua.LNumber(p.Y))
	t.RawSetString("width", lua.LNumber(p.Width))
	t.RawSetString("height", lua.LNumber(p.Height))
	t.RawSetString("speed", lua.LNumber(p.Speed))
	L.Push(t)
	return 1
}

func (c *effectCall) luaBalls(L *lua.LState) int {
	arr := L.NewTable()
	gs, ok := c.state()
	if !ok {
		L.Push(arr)
		return 1
	}

	for i, b := range gs.Balls() {
		t := L.NewTable()
		t.RawSetString("id", lua.LString(b.ID))
		t.RawSetString("x", lua.LNumber(b.X))
		t.RawSetString("y", lua.LNumber(b.Y))
		t.RawSetString("vx", lua.LNumber(b.VX))
		t.RawSetString("vy", lua.LNumber(b.VY))
		t.RawSetString("radius", lua.LNumber(b.Radius))
		t.RawSetString("speed", lua.LNumber(b.Speed))
		arr.RawSetInt(i+1, t)
	}
	L.Push(arr)
	return 1
}

func (c *effectCall) luaBallCount(L *lua.LState) int {
	gs, ok := c.state()
	if !ok {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(len(gs.Balls())))
	return 1
}

func (c *effectCall) luaBlockCount(L *lua.LState) int {
	gs, ok := c.state()
	if !ok {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(len(gs.Blocks())))
	return 1
}

func (c *effectCall) luaDeltaMS(L *lua.LState) int {
	if c.ec == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(c.ec.DeltaTime.Seconds() * 1000))
	return 1
}

func (c *effectCall) luaBudgetExhausted(L *lua.LState) int {
	if c.ec == nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(c.ec.Perf.Exhausted()))
	return 1
}

func (c *effectCall) luaScalePaddleWidth(L *lua.LState) int {
	factor := float64(L.CheckNumber(1))
	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	p := gs.Paddle()
	before := p.Width
	after := before * factor
	c.patch.RecordPaddleWidth(before, after)
	p.Width = after

	L.Push(lua.LNumber(after))
	return 1
}

func (c *effectCall) luaSetPaddleWidth(L *lua.LState) int {
	width := float64(L.CheckNumber(1))
	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	p := gs.Paddle()
	c.patch.RecordPaddleWidth(p.Width, width)
	p.Width = width
	return 0
}

func (c *effectCall) luaScalePaddleSpeed(L *lua.LState) int {
	factor := float64(L.CheckNumber(1))
	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	p := gs.Paddle()
	before := p.Speed
	after := before * factor
	c.patch.RecordPaddleSpeed(before, after)
	p.Speed = after

	L.Push(lua.LNumber(after))
	return 1
}

func (c *effectCall) luaScaleBallSpeed(L *lua.LState) int {
	factor := float64(L.CheckNumber(1))
	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	scaled := 0
	for _, b := range gs.Balls() {
		before := b.Speed
		after := before * factor
		c.patch.RecordBallSpeed(b.ID, before, after)
		b.Speed = after
		scaled++
	}
	L.Push(lua.LNumber(scaled))
	return 1
}

func (c *effectCall) luaScaleBallRadius(L *lua.LState) int {
	factor := float64(L.CheckNumber(1))
	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	scaled := 0
	for _, b := range gs.Balls() {
		before := b.Radius
		after := before * factor
		c.patch.RecordBallRadius(b.ID, before, after)
		b.Radius = after
		scaled++
	}
	L.Push(lua.LNumber(scaled))
	return 1
}

func (c *effectCall) luaAddBall(L *lua.LState) int {
	x := float64(L.CheckNumber(1))
	y := float64(L.CheckNumber(2))
	vx := float64(L.CheckNumber(3))
	vy := float64(L.CheckNumber(4))

	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	b := game.NewBall(x, y, vx, vy)
	gs.AddBall(b)
	c.patch.RecordAddBall(b)

	L.Push(lua.LString(b.ID))
	return 1
}

func (c *effectCall) luaRemoveBall(L *lua.LState) int {
	id := L.CheckString(1)
	gs, ok := c.state()
	if !ok {
		L.RaiseError("no game state")
		return 0
	}

	for _, b := range gs.Balls() {
		if b.ID == id {
			c.patch.RecordRemoveBall(b)
			gs.RemoveBall(id)
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}

// Table read helpers for decoding the powerup descriptor.

func tableString(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func tableNumber(t *lua.LTable, key string) (float64, bool) {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return float64(n), true
	}
	return 0, false
}

func tableBool(t *lua.LTable, key string) bool {
	if b, ok := t.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return false
}

func tableStringSlice(t *lua.LTable, key string) []string {
	arr, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}

	var out []string
	arr.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}

func tableFunc(t *lua.LTable, key string) (*lua.LFunction, bool) {
	fn, ok := t.RawGetString(key).(*lua.LFunction)
	return fn, ok
}
