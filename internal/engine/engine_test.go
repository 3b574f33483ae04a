package engine

import (
	"strings"
	"testing"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/grammar"
	"github.com/skald-lang/skald/internal/value"
)

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, diags := grammar.Parse([]byte(src), "test.ska")
	for _, d := range diags {
		if d.Kind == ast.DiagError {
			t.Fatalf("unexpected parse error: %+v", d)
		}
	}
	return mod
}

func joined(chunks []string) string {
	return strings.Join(chunks, "")
}

func boolAnswer(b bool) *value.Value {
	v := value.Bool(b)
	return &v
}

func TestMinimalLinearModule(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\nHello, world.\n"))

	resp := e.Start()
	if resp.Kind != RespContent {
		t.Fatalf("Start() kind = %v, want Content: %+v", resp.Kind, resp)
	}
	if resp.Attribution != "" || joined(resp.Chunks) != "Hello, world." || len(resp.Options) != 0 {
		t.Fatalf("Start() = %+v", resp)
	}

	resp = e.Act(0)
	if resp.Kind != RespEnd {
		t.Fatalf("Act(0) kind = %v, want End: %+v", resp.Kind, resp)
	}
}

func TestVariableInterpolation(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "~ name = \"world\"\n#start\nHello, {name}!\n"))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "Hello, world!" {
		t.Fatalf("Start() = %+v", resp)
	}
	if resp := e.Act(0); resp.Kind != RespEnd {
		t.Fatalf("Act(0) kind = %v, want End", resp.Kind)
	}
}

func TestConditionalBeatSkip(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "~ debug = false\n#start\n(? debug) Debug message.\nPublic message.\n"))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "Public message." {
		t.Fatalf("Start() = %+v, want the debug beat skipped entirely", resp)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\n(? :is_admin()) Welcome, admin.\nWelcome, guest.\n"))

	resp := e.Start()
	if resp.Kind != RespQuery {
		t.Fatalf("Start() kind = %v, want Query: %+v", resp.Kind, resp)
	}
	if resp.Call.Name != "is_admin" || !resp.ExpectsResponse {
		t.Fatalf("query = %+v, want is_admin() expecting a response", resp)
	}

	resp = e.Answer(boolAnswer(true))
	if resp.Kind != RespContent || joined(resp.Chunks) != "Welcome, admin." {
		t.Fatalf("Answer(true) = %+v", resp)
	}
}

func TestQueryAnsweredFalseFallsThrough(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\n(? :is_admin()) Welcome, admin.\nWelcome, guest.\n"))

	e.Start()
	resp := e.Answer(boolAnswer(false))
	if resp.Kind != RespContent || joined(resp.Chunks) != "Welcome, guest." {
		t.Fatalf("Answer(false) = %+v", resp)
	}
}

func TestChoiceWithUnavailableOption(t *testing.T) {
	src := "~ gold = 0\n#start\nYou approach the vendor.\n" +
		"  > (? gold >= 10) Buy sword -> buy\n" +
		"  > Leave -> leave\n" +
		"#buy\nYou buy a sword.\n" +
		"#leave\nYou leave.\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || len(resp.Options) != 2 {
		t.Fatalf("Start() = %+v", resp)
	}
	if resp.Options[0].IsAvailable {
		t.Fatalf("option 0 should be unavailable (gold=0 < 10): %+v", resp.Options[0])
	}
	if !resp.Options[1].IsAvailable {
		t.Fatalf("option 1 should be available: %+v", resp.Options[1])
	}

	resp = e.Act(0)
	if resp.Kind != RespError || resp.Code != ErrChoiceUnavailable {
		t.Fatalf("Act(0) = %+v, want ChoiceUnavailable", resp)
	}

	resp = e.Act(1)
	if resp.Kind != RespContent || joined(resp.Chunks) != "You leave." {
		t.Fatalf("Act(1) = %+v, want the leave block's content", resp)
	}
}

func TestChoiceOutOfBounds(t *testing.T) {
	src := "#start\nPick one.\n  > A -> a\n  > B -> b\n#a\nGot A.\n#b\nGot B.\n"
	e := NewEngine()
	e.Load(mustParse(t, src))
	e.Start()

	if resp := e.Act(2); resp.Kind != RespError || resp.Code != ErrChoiceOutOfBounds {
		t.Fatalf("Act(2) = %+v, want ChoiceOutOfBounds", resp)
	}
	if resp := e.Act(-1); resp.Kind != RespError || resp.Code != ErrChoiceOutOfBounds {
		t.Fatalf("Act(-1) = %+v, want ChoiceOutOfBounds", resp)
	}
	// The engine should still be usable after those rejected calls.
	if resp := e.Act(0); resp.Kind != RespContent || joined(resp.Chunks) != "Got A." {
		t.Fatalf("Act(0) after rejected calls = %+v", resp)
	}
}

func TestSwitchMutation(t *testing.T) {
	src := "~ flag = false\n#start\n* ~ flag =!\n#next\n{flag}\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "true" {
		t.Fatalf("Start() = %+v, want the logic beat to flip flag then present \"true\"", resp)
	}
	if resp := e.Act(0); resp.Kind != RespEnd {
		t.Fatalf("Act(0) kind = %v, want End", resp.Kind)
	}
}

func TestAnswerWithNoPendingQueryIsRejected(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\nHello.\n"))
	e.Start()

	resp := e.Answer(boolAnswer(true))
	if resp.Kind != RespError || resp.Code != ErrResolutionQueueEmpty {
		t.Fatalf("Answer() with no pending query = %+v, want ResolutionQueueEmpty", resp)
	}
}

func TestAnswerNilToExpectedQueryIsRejected(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\n(? :flag()) Yes.\nNo.\n"))
	e.Start()

	resp := e.Answer(nil)
	if resp.Kind != RespError || resp.Code != ErrExpectedAnswer {
		t.Fatalf("Answer(nil) = %+v, want ExpectedAnswer", resp)
	}
	// The query should still be pending, answerable on retry.
	resp = e.Answer(boolAnswer(true))
	if resp.Kind != RespContent || joined(resp.Chunks) != "Yes." {
		t.Fatalf("retry Answer(true) = %+v", resp)
	}
}

func TestStartOnEmptyModule(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "-- nothing but a comment\n"))

	resp := e.Start()
	if resp.Kind != RespError || resp.Code != ErrEmptyModule {
		t.Fatalf("Start() on empty module = %+v, want EmptyModule", resp)
	}
}

func TestStartAtUnknownTag(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\nHello.\n"))

	resp := e.StartAt("nope")
	if resp.Kind != RespError || resp.Code != ErrModuleTagNotFound {
		t.Fatalf("StartAt(nope) = %+v, want ModuleTagNotFound", resp)
	}
}

func TestMoveToUnknownTag(t *testing.T) {
	src := "#start\nGoing elsewhere.\n  -> nowhere\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "Going elsewhere." {
		t.Fatalf("Start() = %+v", resp)
	}
	resp = e.Act(0)
	if resp.Kind != RespError || resp.Code != ErrModuleTagNotFound {
		t.Fatalf("Act(0) with a dangling move = %+v, want ModuleTagNotFound", resp)
	}
}

func TestExitWithArgument(t *testing.T) {
	src := "#start\nFarewell.\n  EXIT \"goodbye\"\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	// The beat's operations apply in Resolution, before Presentation, so
	// the queued Exit is emitted ahead of the beat's own text.
	resp := e.Start()
	if resp.Kind != RespExit || !resp.HasExitArgument || resp.ExitArgument != value.String("goodbye") {
		t.Fatalf("Start() = %+v, want Exit(\"goodbye\")", resp)
	}
	if resp := e.Act(0); resp.Kind != RespEnd {
		t.Fatalf("Act(0) after Exit = %+v, want End", resp)
	}
}

func TestGoModuleResponse(t *testing.T) {
	src := "#start\nLeaving.\n  GO other.ska -> arrival\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	// As with Exit, the queued GoModule is emitted before the beat's text.
	resp := e.Start()
	if resp.Kind != RespGoModule {
		t.Fatalf("Start() = %+v, want GoModule", resp)
	}
	if resp.ModulePath != "other.ska" || resp.StartTag != "arrival" {
		t.Fatalf("Start() = %+v, want GoModule(other.ska, arrival)", resp)
	}
}

func TestAddSubtractMutation(t *testing.T) {
	src := "~ gold = 5\n#start\n* ~ gold += 3\n* ~ gold -= 1\n#next\n{gold}\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "7" {
		t.Fatalf("Start() = %+v, want gold resolved to 7", resp)
	}
}

func TestStringConcatenateAdd(t *testing.T) {
	src := "~ greeting = \"Hello\"\n#start\n* ~ greeting += \", world\"\n#next\n{greeting}\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "Hello, world" {
		t.Fatalf("Start() = %+v", resp)
	}
}

func TestSwitchMutationOnNonBoolIsTypeMismatch(t *testing.T) {
	src := "~ gold = 5\n#start\n* ~ gold =!\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespError || resp.Code != ErrTypeMismatch {
		t.Fatalf("Start() = %+v, want TypeMismatch", resp)
	}
}

func TestStateAndCachePersistAcrossRestart(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "#start\n(? :is_admin()) Welcome, admin.\nWelcome, guest.\n"))

	e.Start()
	e.Answer(boolAnswer(true))

	// Restarting re-asks the condition's query, but the earlier answer is
	// still in the cache.
	resp := e.Start()
	if resp.Kind != RespQuery || resp.Call.Name != "is_admin" {
		t.Fatalf("restarted Start() = %+v, want the is_admin query asked again", resp)
	}
	if got, ok := e.CachedAnswer(value.MethodCall{Name: "is_admin"}); !ok || got != value.Bool(true) {
		t.Fatalf("CachedAnswer(is_admin) after restart = (%v, %v), want (true, true): the cached admin answer must persist", got, ok)
	}
}

func TestElseLogicBeatRunsWhenConditionFailed(t *testing.T) {
	src := "~ debug = false\n~ result = \"\"\n#start\n" +
		"* (? debug) ~ result = \"debug\"\n" +
		"* (else) ~ result = \"release\"\n" +
		"#next\n{result}\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "release" {
		t.Fatalf("Start() = %+v, want the (else) beat to run since the prior condition failed", resp)
	}
}

func TestElseLogicBeatSkippedWhenConditionPassed(t *testing.T) {
	src := "~ debug = true\n~ result = \"\"\n#start\n" +
		"* (? debug) ~ result = \"debug\"\n" +
		"* (else) ~ result = \"release\"\n" +
		"#next\n{result}\n"
	e := NewEngine()
	e.Load(mustParse(t, src))

	resp := e.Start()
	if resp.Kind != RespContent || joined(resp.Chunks) != "debug" {
		t.Fatalf("Start() = %+v, want the (else) beat skipped since the prior condition passed", resp)
	}
}

func TestLoadDoesNotOverwriteExistingState(t *testing.T) {
	e := NewEngine()
	e.Load(mustParse(t, "~ gold = 5\n#start\nHello.\n"))
	e.state["gold"] = value.Int(99)

	e.Load(mustParse(t, "~ gold = 5\n#start\nHello.\n"))
	got, ok := e.State("gold")
	if !ok || got != value.Int(99) {
		t.Fatalf("State(gold) = (%v, %v), want (99, true): re-load must not reset existing state", got, ok)
	}
}
