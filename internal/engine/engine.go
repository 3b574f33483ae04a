package engine

import (
	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/value"
)

// Engine drives one Module through Skald's beat scheduler. It is not
// safe for concurrent use: the model is single-threaded and synchronous,
// matching the host's own call/response rhythm (spec §1, §3).
type Engine struct {
	module *ast.Module
	state  map[string]value.Value
	cache  map[string]value.Value
	cur    cursorState
}

// NewEngine returns an Engine with no Module loaded. Call Load before
// Start or StartAt.
func NewEngine() *Engine {
	return &Engine{
		state: make(map[string]value.Value),
		cache: make(map[string]value.Value),
	}
}

// Load installs mod as the engine's current Module. Declared variables
// not already present in state are seeded from their Initial value;
// existing state and the query cache are left untouched, so a Go-module
// transition (spec's GoModule response) can hand control to a new module
// without losing the variables the player has already set. The cursor is
// reset only by Start or StartAt, never by Load.
func (e *Engine) Load(mod *ast.Module) {
	e.module = mod
	for _, decl := range mod.Declarations {
		if _, exists := e.state[decl.Name]; !exists {
			e.state[decl.Name] = decl.Initial
		}
	}
}

// Start begins a play session at block 0, beat 0. State and the query
// cache persist from any prior session on this Engine; only the cursor
// resets.
func (e *Engine) Start() Response {
	if e.module == nil || len(e.module.Blocks) == 0 {
		return errorResponse(ErrEmptyModule, "start() on a module with zero blocks", 0)
	}
	e.cur = cursorState{}
	if resp := e.positionAt(0); resp != nil {
		return *resp
	}
	return e.run()
}

// StartAt begins a play session at the named block's first beat.
func (e *Engine) StartAt(tag string) Response {
	if e.module == nil {
		return errorResponsef(ErrModuleTagNotFound, 0, "block %q not found", tag)
	}
	idx, ok := e.module.BlockByTag(tag)
	if !ok {
		return errorResponsef(ErrModuleTagNotFound, 0, "block %q not found", tag)
	}
	e.cur = cursorState{}
	if resp := e.positionAt(idx); resp != nil {
		return *resp
	}
	return e.run()
}

// Act selects choice choiceIndex from the most recent Content response.
// With zero choices, act(0) is the canonical "continue". Invalid indices
// and currently-unavailable choices report an Error without disturbing
// the cursor, so the host can retry with a valid selection.
func (e *Engine) Act(choiceIndex int) Response {
	if e.cur.ended {
		return endResponse()
	}
	if e.cur.awaiting != awaitingContent {
		return errorResponse(ErrUnknown, "act() called with no pending content to act on", e.currentBeatLine())
	}

	choices := e.cur.awaitingChoices
	n := len(choices)
	if n == 0 {
		if choiceIndex != 0 {
			return errorResponsef(ErrChoiceOutOfBounds, e.currentBeatLine(), "choice index %d out of bounds for 0 options", choiceIndex)
		}
		e.cur.awaiting = awaitingNone
		if resp := e.advanceCursor(); resp != nil {
			return *resp
		}
		return e.run()
	}

	if choiceIndex < 0 || choiceIndex >= n {
		return errorResponsef(ErrChoiceOutOfBounds, e.currentBeatLine(), "choice index %d out of bounds for %d options", choiceIndex, n)
	}
	choice := choices[choiceIndex]
	if !e.resolveConditional(choice.Condition) {
		return errorResponse(ErrChoiceUnavailable, "selected choice is unavailable", choice.Line)
	}

	e.cur.awaiting = awaitingNone
	e.cur.chosenChoice = &choice
	e.setPhase(phaseExecution)
	return e.run()
}

// Answer supplies the host's response to the top query on the resolution
// stack, or nil for "no answer". A nil answer to a query that expects a
// response is rejected; a nil answer to one that doesn't erases any
// stale cache entry for that call.
func (e *Engine) Answer(v *value.Value) Response {
	if e.cur.ended {
		return endResponse()
	}
	if e.cur.awaiting != awaitingQuery || len(e.cur.resolutionStack) == 0 {
		return errorResponse(ErrResolutionQueueEmpty, "answer() called with no pending query", e.currentBeatLine())
	}

	top := e.cur.resolutionStack[len(e.cur.resolutionStack)-1]
	if top.ExpectsResponse && v == nil {
		return errorResponsef(ErrExpectedAnswer, top.Line, "query %q requires a value", top.Call.Name)
	}

	key := e.callKey(top.Call)
	if v != nil {
		e.cache[key] = *v
	} else {
		delete(e.cache, key)
	}
	e.cur.resolutionStack = e.cur.resolutionStack[:len(e.cur.resolutionStack)-1]
	e.cur.awaiting = awaitingNone
	return e.run()
}

// State reads one state variable, reporting whether it has been set.
// Exposed for hosts and tests that need to inspect engine state directly
// rather than through query answers.
func (e *Engine) State(name string) (value.Value, bool) {
	v, ok := e.state[name]
	return v, ok
}

// CachedAnswer reads the cached answer for a method call, reporting
// whether one is present.
func (e *Engine) CachedAnswer(call value.MethodCall) (value.Value, bool) {
	v, ok := e.cache[e.callKey(call)]
	return v, ok
}
