// Package engine implements Skald's resumable beat scheduler: the state
// machine that walks a parsed Module beat by beat, suspending at queries,
// content, module transitions, and exits, and resuming on host actions.
package engine

import (
	"fmt"

	"github.com/skald-lang/skald/internal/value"
)

// ErrorCode is one of the stable, numbered runtime error conditions a
// public engine call may surface as an Error response.
type ErrorCode int

const (
	ErrUnknown ErrorCode = iota
	ErrEOF
	ErrEmptyModule
	ErrModuleTagNotFound
	ErrChoiceOutOfBounds
	ErrChoiceUnavailable
	ErrExpectedAnswer
	ErrResolutionQueueEmpty
	ErrTypeMismatch
)

func (c ErrorCode) String() string {
	switch c {
	case ErrEOF:
		return "EOF"
	case ErrEmptyModule:
		return "EmptyModule"
	case ErrModuleTagNotFound:
		return "ModuleTagNotFound"
	case ErrChoiceOutOfBounds:
		return "ChoiceOutOfBounds"
	case ErrChoiceUnavailable:
		return "ChoiceUnavailable"
	case ErrExpectedAnswer:
		return "ExpectedAnswer"
	case ErrResolutionQueueEmpty:
		return "ResolutionQueueEmpty"
	case ErrTypeMismatch:
		return "TypeMismatch"
	default:
		return "Unknown"
	}
}

// ResponseKind tags the Response union the scheduler yields from every
// public engine call.
type ResponseKind int

const (
	RespContent ResponseKind = iota
	RespQuery
	RespGoModule
	RespExit
	RespEnd
	RespError
)

func (k ResponseKind) String() string {
	switch k {
	case RespContent:
		return "Content"
	case RespQuery:
		return "Query"
	case RespGoModule:
		return "GoModule"
	case RespExit:
		return "Exit"
	case RespEnd:
		return "End"
	case RespError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Option is one choice as presented in a Content response: its resolved
// text and whether its condition currently permits selecting it.
type Option struct {
	Chunks      []string
	IsAvailable bool
}

// Response is the tagged union every public Engine call returns. Only the
// fields relevant to Kind are populated.
type Response struct {
	Kind ResponseKind
	Line int

	// RespContent
	Attribution string
	Chunks      []string
	Options     []Option

	// RespQuery
	Call            value.MethodCall
	ExpectsResponse bool

	// RespGoModule
	ModulePath string
	StartTag   string

	// RespExit
	ExitArgument    value.Value
	HasExitArgument bool

	// RespError
	Code    ErrorCode
	Message string
}

func contentResponse(attribution string, chunks []string, options []Option, line int) Response {
	return Response{Kind: RespContent, Attribution: attribution, Chunks: chunks, Options: options, Line: line}
}

func queryResponse(q pendingQuery) Response {
	return Response{Kind: RespQuery, Call: q.Call, ExpectsResponse: q.ExpectsResponse, Line: q.Line}
}

func goModuleResponse(g goTransition) Response {
	return Response{Kind: RespGoModule, ModulePath: g.ModulePath, StartTag: g.StartTag}
}

func exitResponse(x exitPayload) Response {
	return Response{Kind: RespExit, ExitArgument: x.Argument, HasExitArgument: x.HasArgument}
}

func endResponse() Response {
	return Response{Kind: RespEnd}
}

func errorResponse(code ErrorCode, message string, line int) Response {
	return Response{Kind: RespError, Code: code, Message: message, Line: line}
}

func errorResponsef(code ErrorCode, line int, format string, args ...any) Response {
	return errorResponse(code, fmt.Sprintf(format, args...), line)
}

// pendingQuery is one entry on the resolution stack: a method call awaiting
// a host answer.
type pendingQuery struct {
	Call            value.MethodCall
	ExpectsResponse bool
	Line            int
}

type goTransition struct {
	ModulePath string
	StartTag   string
}

type exitPayload struct {
	Argument    value.Value
	HasArgument bool
}
