package server

import (
	"time"

	"github.com/eternalApril/emberkv/internal/resp"
	"github.com/eternalApril/emberkv/internal/storage"
)

// cmdContext carries everything a handler may touch while serving one command
type cmdContext struct {
	name    string // upper-case command name
	args    []string
	storage storage.Storage
	now     time.Time
	evicted func() // reports a read-triggered eviction
}

type commandFunc func(ctx *cmdContext) (resp.Value, error)

// command is one dispatch table entry
type command struct {
	// arity includes the command name itself: N means exactly N tokens, -N means at least N
	arity   int
	handler commandFunc
}

// acceptsArgs checks the token count (name + args) against the arity rule
func (c command) acceptsArgs(nargs int) bool {
	tokens := nargs + 1
	if c.arity < 0 {
		return tokens >= -c.arity
	}
	return tokens == c.arity
}

// commandTable is the full command set, keyed by upper-case name
var commandTable = map[string]command{
	"PING": {arity: -1, handler: ping},
	"ECHO": {arity: 2, handler: echo},
	"SET":  {arity: -3, handler: set},
	"GET":  {arity: 2, handler: get},
}
