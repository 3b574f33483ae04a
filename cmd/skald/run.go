package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/config"
	eng "github.com/skald-lang/skald/internal/engine"
	"github.com/skald-lang/skald/internal/grammar"
	"github.com/skald-lang/skald/internal/trace"
	"github.com/skald-lang/skald/internal/value"
)

func newRunCmd() *cobra.Command {
	var configPath, startTag string
	var noTrace bool

	cmd := &cobra.Command{
		Use:   "run <file.ska>",
		Short: "Play a module against a line-oriented terminal host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if noTrace {
				cfg.Trace.Enable = false
			}
			return runHost(args[0], startTag, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a skald.yaml config file")
	cmd.Flags().StringVar(&startTag, "start", "", "block tag to start at (defaults to the module's first block)")
	cmd.Flags().BoolVar(&noTrace, "no-trace", false, "disable session trace recording even if config enables it")
	return cmd
}

// host plays one Engine against stdin/stdout, the way SkaldTester drives the
// engine in the original's ftxui frontend: strip the ftxui layer away and
// what's left is exactly this request/print/read loop.
type host struct {
	engine      *eng.Engine
	cfg         config.Config
	recorder    *trace.Recorder
	sessionID   string
	scanner     *bufio.Scanner
	currentOpts []eng.Option
}

func runHost(path, startTag string, cfg config.Config) error {
	closeLog := configureLogging(cfg.Log.File)
	defer closeLog()

	h := &host{engine: eng.NewEngine(), cfg: cfg, scanner: bufio.NewScanner(os.Stdin)}

	if cfg.Trace.Enable {
		rec, err := trace.NewRecorder(cfg.Trace.Dir)
		if err != nil {
			log.Printf("trace recorder disabled: %v", err)
		} else {
			sessionID, err := rec.Start()
			if err != nil {
				log.Printf("trace recorder disabled: %v", err)
			} else {
				h.recorder = rec
				h.sessionID = sessionID
				defer rec.Close()
			}
		}
	}

	if err := h.loadModule(path); err != nil {
		return err
	}
	log.Printf("loaded module %s", path)

	var resp eng.Response
	if startTag != "" {
		resp = h.engine.StartAt(startTag)
	} else {
		resp = h.engine.Start()
	}

	for {
		resp = h.skipAutoQueries(resp)
		h.logResponse(resp)

		switch resp.Kind {
		case eng.RespEnd:
			fmt.Println("-- The story has ended. --")
			return nil
		case eng.RespError:
			// Recoverable codes are absorbed inside nextAfterContent/
			// nextAfterQuery by retrying the same input prompt; reaching
			// here means the error came from Start/StartAt/GoModule, where
			// there is no prior prompt to retry against.
			return fmt.Errorf("engine error [%s]: %s", resp.Code, resp.Message)
		case eng.RespContent:
			h.printContent(resp)
			resp = h.nextAfterContent(resp)
		case eng.RespQuery:
			h.printQuery(resp)
			resp = h.nextAfterQuery(resp)
		case eng.RespGoModule:
			fmt.Printf(">> continuing to %s (tag %q) -- press enter --\n", resp.ModulePath, resp.StartTag)
			h.readLine()
			next, err := h.goModule(resp)
			if err != nil {
				return err
			}
			resp = next
		case eng.RespExit:
			h.printExit(resp)
			h.readLine()
			resp = h.engine.Act(0)
		}
	}
}

// skipAutoQueries eliminates queries the host never needs to see: a bare
// MethodCall operation's return value is discarded by the engine, so its
// query carries expects_response=false and can be answered with nil
// immediately, the same "eliminate autos" loop the original's SkaldTester
// runs before presenting anything to the player.
func (h *host) skipAutoQueries(resp eng.Response) eng.Response {
	for resp.Kind == eng.RespQuery && !resp.ExpectsResponse {
		resp = h.engine.Answer(nil)
	}
	return resp
}

func (h *host) printContent(resp eng.Response) {
	text := strings.Join(resp.Chunks, "")
	if resp.Attribution != "" {
		fmt.Printf("%s: %s\n", resp.Attribution, text)
	} else {
		fmt.Println(text)
	}
	for i, opt := range resp.Options {
		marker := ""
		if !opt.IsAvailable {
			marker = " (unavailable)"
		}
		fmt.Printf("  %d. %s%s\n", i+1, strings.Join(opt.Chunks, ""), marker)
	}
	h.currentOpts = resp.Options
}

func (h *host) nextAfterContent(resp eng.Response) eng.Response {
	if len(resp.Options) == 0 {
		for {
			fmt.Print("-- press enter to continue --\n> ")
			h.readLine()
			next := h.engine.Act(0)
			if retry := h.reportIfRecoverable(next); retry {
				continue
			}
			return next
		}
	}
	for {
		fmt.Print("> choice: ")
		line := h.readLine()
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(h.currentOpts) {
			fmt.Printf("enter a number between 1 and %d\n", len(h.currentOpts))
			continue
		}
		next := h.engine.Act(n - 1)
		if retry := h.reportIfRecoverable(next); retry {
			continue
		}
		return next
	}
}

func (h *host) printQuery(resp eng.Response) {
	fmt.Printf("?? %s\n", resp.Call.Name)
}

func (h *host) nextAfterQuery(resp eng.Response) eng.Response {
	for {
		fmt.Print("> answer (true/false/int/float/string): ")
		line := h.readLine()
		v := parseAnswer(line)
		next := h.engine.Answer(&v)
		if retry := h.reportIfRecoverable(next); retry {
			continue
		}
		return next
	}
}

// reportIfRecoverable prints a recoverable error's message and reports
// true when the caller should re-prompt for the same input rather than
// propagate resp up to the main loop, which has no prior prompt to retry
// against once a response has moved on from Content/Query.
func (h *host) reportIfRecoverable(resp eng.Response) bool {
	if resp.Kind != eng.RespError || !isRecoverable(resp.Code) {
		return false
	}
	fmt.Printf("!! [%s] %s\n", resp.Code, resp.Message)
	return true
}

func (h *host) printExit(resp eng.Response) {
	if resp.HasExitArgument {
		fmt.Printf(">> exit(%s) -- press enter --\n", resp.ExitArgument.String())
	} else {
		fmt.Print(">> exit() -- press enter --\n")
	}
}

func (h *host) goModule(resp eng.Response) (eng.Response, error) {
	path, err := resolveModulePath(h.cfg.Module.SearchPaths, resp.ModulePath)
	if err != nil {
		return eng.Response{}, err
	}
	if err := h.loadModule(path); err != nil {
		return eng.Response{}, err
	}
	if resp.StartTag != "" {
		return h.engine.StartAt(resp.StartTag), nil
	}
	return h.engine.Start(), nil
}

func (h *host) loadModule(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	mod, diags := grammar.Parse(src, path)
	for _, d := range diags {
		log.Printf("%s:%d: %s", path, d.Line, d.Message)
		if d.Kind == ast.DiagWarning && h.recorder != nil {
			h.recorder.Log(trace.EventWarning, h.sessionID, fmt.Sprintf("%s:%d: %s", path, d.Line, d.Message))
		}
	}
	h.engine.Load(mod)
	return nil
}

func (h *host) logResponse(resp eng.Response) {
	if h.recorder == nil {
		return
	}
	h.recorder.Log(trace.EventResponse, h.sessionID, resp)
}

func (h *host) readLine() string {
	if !h.scanner.Scan() {
		return ""
	}
	return h.scanner.Text()
}

// resolveModulePath finds modulePath under one of searchPaths, in order.
func resolveModulePath(searchPaths []string, modulePath string) (string, error) {
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, modulePath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("module %q not found in any of %v", modulePath, searchPaths)
}

// parseAnswer mirrors the original's do_input text parsing: try bool, then
// int (more restrictive than float), then float, and fall back to a bare
// string if nothing else matches.
func parseAnswer(text string) value.Value {
	switch text {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}
	if i, err := strconv.ParseInt(text, 10, 32); err == nil {
		return value.Int(int32(i))
	}
	if f, err := strconv.ParseFloat(text, 32); err == nil {
		return value.Float(float32(f))
	}
	return value.String(text)
}

func isRecoverable(code eng.ErrorCode) bool {
	switch code {
	case eng.ErrChoiceOutOfBounds, eng.ErrChoiceUnavailable, eng.ErrExpectedAnswer, eng.ErrResolutionQueueEmpty:
		return true
	default:
		return false
	}
}
