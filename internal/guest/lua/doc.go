// Package lua hosts Lua programs on the scheduler loop.
//
// A Program wraps a gopher-lua state with a `proc` table that exposes the
// host facade to the script: the environment snapshot, exit control,
// warnings, signal subscriptions, IPC, and timers. Scripts run as the
// hosted program, so an uncaught Lua error follows the same path as any
// other uncaught failure.
//
// gopher-lua states are not goroutine-safe. Every entry into the state,
// the initial chunk and every callback, happens on the scheduler goroutine;
// the Program must not be touched from anywhere else.
package lua
