// Package luafx loads power-up plugins written as Lua scripts.
//
// A script declares a single global `powerup` table carrying the
// descriptor fields and behavior functions:
//
//	powerup = {
//	    type        = "gravity-well",
//	    name        = "Gravity Well",
//	    description = "Pulls every ball toward the paddle",
//	    icon        = "vortex",
//	    color       = "#9c27b0",
//	    rarity      = "epic",
//	    duration_ms = 8000,
//	    version     = "1.0.0",
//	    conflicts_with = { "turbo-ball" },
//	    stacks      = false,
//	}
//
//	function powerup.apply(game)
//	    game.scale_ball_speed(0.5)
//	end
//
//	function powerup.remove(game)
//	    game.scale_ball_speed(2.0)
//	end
//
// Load wraps the script in the standard effect contract, so scripted
// and native power-ups are indistinguishable to the engine. Behavior
// functions receive a game table whose mutators record every change
// into a patch; scripted effects get rollback without doing anything.
//
// Scripts run sandboxed: only the base, table, string and math
// libraries are open, the load/dofile family is stripped, and every
// call runs under a deadline. The deadline interrupts runaway loops
// between VM instructions; it cannot interrupt a single blocking call.
//
// Each script owns a private interpreter. gopher-lua states are not
// goroutine-safe, so all entry points serialize on an internal mutex.
package luafx
