package engine

import (
	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/callkey"
	"github.com/skald-lang/skald/internal/value"
)

// phase is the Cursor's position within one beat's four-phase lifecycle
// (spec §4.5): Conditional gates whether the beat runs at all, Resolution
// resolves every method call the beat and its choices depend on,
// Presentation renders content, and Execution applies a chosen choice's
// operations.
type phase int

const (
	phaseConditional phase = iota
	phaseResolution
	phasePresentation
	phaseExecution
)

// awaiting tags what kind of response the engine last handed the host, so
// Act and Answer can reject calls that don't match the engine's current
// suspension point.
type awaiting int

const (
	awaitingNone awaiting = iota
	awaitingContent
	awaitingQuery
)

// maxSchedulerIterations bounds the tight inner loop run() uses to walk
// through beats with no host-visible content (skipped conditionals, logic
// beats, empty blocks) between one Response and the next. The reference
// implementation uses the same figure as a runaway-script safety net.
const maxSchedulerIterations = 50

// cursorState is Skald's Cursor (spec §3): position, current phase, the
// resolution stack, and the queued transitions a beat's operations may
// have set up for advanceCursor to consume.
type cursorState struct {
	blockIndex int
	beatIndex  int
	phase      phase

	resolutionStack []pendingQuery
	queuedForPhase  bool

	hasQueuedTransition bool
	queuedTransition    string

	hasQueuedGo bool
	queuedGo    goTransition

	hasQueuedExit bool
	queuedExit    exitPayload

	hasLastConditionPass bool
	didLastConditionPass bool

	awaiting        awaiting
	awaitingChoices []ast.Choice
	chosenChoice    *ast.Choice

	ended bool
}

func (e *Engine) setPhase(p phase) {
	e.cur.phase = p
	e.cur.queuedForPhase = false
}

func (e *Engine) currentBeat() *ast.Beat {
	if e.module == nil || e.cur.blockIndex < 0 || e.cur.blockIndex >= len(e.module.Blocks) {
		return nil
	}
	blk := &e.module.Blocks[e.cur.blockIndex]
	if e.cur.beatIndex < 0 || e.cur.beatIndex >= len(blk.Beats) {
		return nil
	}
	return &blk.Beats[e.cur.beatIndex]
}

func (e *Engine) currentBeatLine() int {
	if b := e.currentBeat(); b != nil {
		return b.Line
	}
	return 0
}

// enqueue pushes a batch of queries onto the resolution stack in the
// order the host should be asked about them. The stack is LIFO (its "top"
// is the last element), so callers pass calls in ask order and enqueue
// pushes them in reverse. Duplicate calls within one batch (by resolved cache key) collapse
// to a single ask, first occurrence wins.
func (e *Engine) enqueue(calls []pendingQuery) {
	if len(calls) == 0 {
		return
	}
	keys := make([]string, len(calls))
	byKey := make(map[string]pendingQuery, len(calls))
	for i, c := range calls {
		k := e.callKey(c.Call)
		keys[i] = k
		if _, exists := byKey[k]; !exists {
			byKey[k] = c
		}
	}
	unique := callkey.Dedupe(keys)
	for i := len(unique) - 1; i >= 0; i-- {
		e.cur.resolutionStack = append(e.cur.resolutionStack, byKey[unique[i]])
	}
}

// positionAt seeks forward from blockIndex to the first block with at
// least one beat, mirroring advanceCursor's own empty-block skipping so
// start() and start_at() behave consistently with normal advancement.
func (e *Engine) positionAt(blockIndex int) *Response {
	for blockIndex < len(e.module.Blocks) && len(e.module.Blocks[blockIndex].Beats) == 0 {
		blockIndex++
	}
	if blockIndex >= len(e.module.Blocks) {
		resp := errorResponse(ErrEOF, "module has no beats", 0)
		e.cur.ended = true
		return &resp
	}
	e.cur.blockIndex = blockIndex
	e.cur.beatIndex = 0
	e.setPhase(phaseConditional)
	return nil
}

// advanceCursor implements advance_cursor (spec §4.5): consume a queued
// Move transition if present, otherwise step to the next beat in the
// current block; cross block boundaries (skipping empty blocks) as
// needed; return End once the last beat of the last block is behind us.
func (e *Engine) advanceCursor() *Response {
	if e.cur.hasQueuedTransition {
		idx, ok := e.module.BlockByTag(e.cur.queuedTransition)
		e.cur.hasQueuedTransition = false
		if !ok {
			resp := errorResponsef(ErrModuleTagNotFound, e.currentBeatLine(), "move to unknown tag %q", e.cur.queuedTransition)
			return &resp
		}
		e.cur.blockIndex = idx
		e.cur.beatIndex = -1
	}

	e.cur.beatIndex++
	for e.cur.beatIndex >= len(e.module.Blocks[e.cur.blockIndex].Beats) {
		e.cur.blockIndex++
		e.cur.beatIndex = 0
		if e.cur.blockIndex >= len(e.module.Blocks) {
			// Running off the end of the module is the ordinary way a
			// script finishes: it surfaces as End directly, not as an
			// Error. ErrEOF is reserved for positionAt, where start()/
			// start_at() can't find any beat to run at all.
			e.cur.ended = true
			resp := endResponse()
			return &resp
		}
	}

	e.setPhase(phaseConditional)
	return nil
}

// run is the scheduler's core loop (spec §4.5's next()): drain queued
// exits and module transitions first, then the resolution stack, then
// dispatch into the current phase. It returns as soon as there is a
// Response to hand back to the host.
func (e *Engine) run() Response {
	for iter := 0; iter < maxSchedulerIterations; iter++ {
		if e.cur.hasQueuedExit {
			e.cur.hasQueuedExit = false
			e.cur.ended = true
			e.cur.awaiting = awaitingNone
			return exitResponse(e.cur.queuedExit)
		}
		if e.cur.hasQueuedGo {
			e.cur.hasQueuedGo = false
			e.cur.awaiting = awaitingNone
			return goModuleResponse(e.cur.queuedGo)
		}
		if len(e.cur.resolutionStack) > 0 {
			top := e.cur.resolutionStack[len(e.cur.resolutionStack)-1]
			e.cur.awaiting = awaitingQuery
			return queryResponse(top)
		}

		resp, done := e.step()
		if done {
			return resp
		}
	}
	return errorResponse(ErrUnknown, "exceeded maximum scheduler iterations without producing a response", e.currentBeatLine())
}

// step dispatches one phase's worth of work for the beat under the
// cursor. done is false when the phase enqueued queries or silently
// advanced to another beat, in which case run()'s loop continues.
func (e *Engine) step() (Response, bool) {
	beat := e.currentBeat()
	if beat == nil {
		e.cur.ended = true
		return endResponse(), true
	}

	switch e.cur.phase {
	case phaseConditional:
		return e.stepConditional(beat)
	case phaseResolution:
		return e.stepResolution(beat)
	case phasePresentation:
		return e.stepPresentation(beat)
	case phaseExecution:
		return e.stepExecution()
	default:
		return errorResponse(ErrUnknown, "cursor in an unrecognized phase", beat.Line), true
	}
}

func (e *Engine) stepConditional(beat *ast.Beat) (Response, bool) {
	if beat.IsElse {
		if e.cur.hasLastConditionPass && e.cur.didLastConditionPass {
			if resp := e.advanceCursor(); resp != nil {
				return *resp, true
			}
			return Response{}, false
		}
		e.cur.didLastConditionPass = true
		e.cur.hasLastConditionPass = true
		e.setPhase(phaseResolution)
		return Response{}, false
	}

	if !e.cur.queuedForPhase {
		e.cur.queuedForPhase = true
		calls := collectFromConditional(beat.Condition, beat.Line)
		if len(calls) > 0 {
			e.enqueue(calls)
			return Response{}, false
		}
	}

	passed := e.resolveConditional(beat.Condition)
	e.cur.didLastConditionPass = passed
	e.cur.hasLastConditionPass = true
	if !passed {
		if resp := e.advanceCursor(); resp != nil {
			return *resp, true
		}
		return Response{}, false
	}

	e.setPhase(phaseResolution)
	return Response{}, false
}

func (e *Engine) stepResolution(beat *ast.Beat) (Response, bool) {
	if !e.cur.queuedForPhase {
		e.cur.queuedForPhase = true
		var calls []pendingQuery
		for _, op := range beat.Operations {
			calls = append(calls, collectFromOperation(op)...)
		}
		calls = append(calls, collectFromTextContent(beat.Content, beat.Line)...)
		for _, choice := range beat.Choices {
			calls = append(calls, collectFromConditional(choice.Condition, choice.Line)...)
		}
		if len(calls) > 0 {
			e.enqueue(calls)
			return Response{}, false
		}
	}

	if resp := e.applyOperations(beat.Operations); resp != nil {
		return *resp, true
	}
	if e.cur.hasQueuedExit || e.cur.hasQueuedGo {
		return Response{}, false
	}

	e.setPhase(phasePresentation)
	return Response{}, false
}

func (e *Engine) stepPresentation(beat *ast.Beat) (Response, bool) {
	if beat.IsLogic {
		if resp := e.advanceCursor(); resp != nil {
			return *resp, true
		}
		return Response{}, false
	}

	options := make([]Option, len(beat.Choices))
	for i, c := range beat.Choices {
		options[i] = Option{
			Chunks:      e.resolveTextChunks(c.Content),
			IsAvailable: e.resolveConditional(c.Condition),
		}
	}
	e.cur.awaitingChoices = beat.Choices
	e.cur.awaiting = awaitingContent
	return contentResponse(beat.Attribution, e.resolveTextChunks(beat.Content), options, beat.Line), true
}

func (e *Engine) stepExecution() (Response, bool) {
	choice := e.cur.chosenChoice
	if !e.cur.queuedForPhase {
		e.cur.queuedForPhase = true
		var calls []pendingQuery
		for _, op := range choice.Operations {
			calls = append(calls, collectFromOperation(op)...)
		}
		if len(calls) > 0 {
			e.enqueue(calls)
			return Response{}, false
		}
	}

	if resp := e.applyOperations(choice.Operations); resp != nil {
		return *resp, true
	}
	if e.cur.hasQueuedExit || e.cur.hasQueuedGo {
		return Response{}, false
	}

	if resp := e.advanceCursor(); resp != nil {
		return *resp, true
	}
	return Response{}, false
}

// applyOperations applies a beat or choice's operations in source order.
// Only mutation type-mismatches are fatal; everything else either mutates
// state or queues a transition for advanceCursor to pick up.
func (e *Engine) applyOperations(ops []ast.Operation) *Response {
	for _, op := range ops {
		switch op.Kind {
		case ast.OpMove:
			e.cur.hasQueuedTransition = true
			e.cur.queuedTransition = op.TargetTag
		case ast.OpMethodCall:
			// No-op: the call was already resolved as a query during
			// Resolution, and its answer (if kept) lives in the cache.
		case ast.OpMutation:
			if resp := e.applyMutation(op); resp != nil {
				return resp
			}
		case ast.OpGoModule:
			e.cur.hasQueuedGo = true
			e.cur.queuedGo = goTransition{ModulePath: op.ModulePath, StartTag: op.StartTag}
		case ast.OpExit:
			e.cur.hasQueuedExit = true
			var arg value.Value
			if op.HasExitArgument {
				arg = e.resolveToSimple(op.ExitArgument)
			}
			e.cur.queuedExit = exitPayload{Argument: arg, HasArgument: op.HasExitArgument}
		}
	}
	return nil
}

func (e *Engine) applyMutation(op ast.Operation) *Response {
	switch op.MutationType {
	case ast.MutateEquate:
		e.state[op.MutationLValue] = e.resolveToSimple(op.MutationRValue)
	case ast.MutateSwitch:
		cur, exists := e.state[op.MutationLValue]
		switch {
		case !exists:
			e.state[op.MutationLValue] = value.Bool(true)
		case cur.Kind() == value.KindBool:
			e.state[op.MutationLValue] = value.Bool(!cur.BoolValue())
		default:
			resp := errorResponsef(ErrTypeMismatch, op.Line, "cannot switch-mutate non-bool variable %q", op.MutationLValue)
			return &resp
		}
	case ast.MutateAdd:
		e.applyAddSubtract(op, true)
	case ast.MutateSubtract:
		e.applyAddSubtract(op, false)
	}
	return nil
}

// applyAddSubtract implements the add/subtract mutation over whatever is
// currently in the lvalue: numeric pairs add/subtract normally, string
// pairs concatenate under add, and any other non-numeric pairing (and
// subtract over strings) is a no-op rather than a type error.
func (e *Engine) applyAddSubtract(op ast.Operation, isAdd bool) {
	rv := e.resolveToSimple(op.MutationRValue)
	cur, exists := e.state[op.MutationLValue]
	if !exists {
		if isAdd {
			e.state[op.MutationLValue] = rv
		}
		return
	}

	switch {
	case cur.Kind() == value.KindInt && rv.Kind() == value.KindInt:
		if isAdd {
			e.state[op.MutationLValue] = value.Int(cur.IntValue() + rv.IntValue())
		} else {
			e.state[op.MutationLValue] = value.Int(cur.IntValue() - rv.IntValue())
		}
	case cur.Kind() == value.KindFloat && rv.Kind() == value.KindFloat:
		if isAdd {
			e.state[op.MutationLValue] = value.Float(cur.FloatValue() + rv.FloatValue())
		} else {
			e.state[op.MutationLValue] = value.Float(cur.FloatValue() - rv.FloatValue())
		}
	case isAdd && cur.Kind() == value.KindString && rv.Kind() == value.KindString:
		e.state[op.MutationLValue] = value.String(cur.StrValue() + rv.StrValue())
	}
}
