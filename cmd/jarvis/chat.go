package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"jarvis/internal/assistant"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/schedule"
)

const goodbye = "Goodbye! Have a great day!"

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true, "goodbye": true}

const helpText = `JARVIS Commands

Special commands:
  /help    Show this help message
  /clear   Clear conversation history
  /save    Save current conversation
  /stats   Show memory and conversation statistics
  /skills  List available skills
  exit     Exit JARVIS (also quit, bye, goodbye)

Usage examples:
  Search for latest AI news
  Remember that my favorite color is blue
  Remind me to call mom at 5 PM
  Calculate 25 * 4 + 10
  What's the weather like?
  Generate an image of a sunset`

type lineReader interface {
	Readline() (string, error)
}

// syncWriter serializes writes from the REPL and the reminder job.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type repl struct {
	in        lineReader
	out       io.Writer
	assistant *assistant.Assistant
	session   *assistant.Session
	logger    *zap.Logger
	// interruptible derives the context of one turn; it is cancelled on ^C.
	interruptible func(context.Context) (context.Context, context.CancelFunc)
}

func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

func newREPL(in lineReader, out io.Writer, a *assistant.Assistant, logger *zap.Logger) *repl {
	return &repl{
		in:        in,
		out:       &syncWriter{w: out},
		assistant: a,
		session:   a.NewSession(assistant.ChannelCLI, ""),
		logger:    logging.OrNop(logger),

		interruptible: notifyInterrupt,
	}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, llm.ConversationStarter)
	for {
		line, err := r.in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				fmt.Fprintln(r.out, "Use 'exit' to quit")
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, goodbye)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if exitWords[strings.ToLower(input)] {
			fmt.Fprintln(r.out, goodbye)
			return nil
		}
		if strings.HasPrefix(input, "/") {
			r.handleCommand(ctx, input)
			continue
		}
		r.turn(ctx, input)
	}
}

// turn streams one reply to the terminal. A panic ends the turn, not the
// REPL; so does ^C, which keeps the partial reply.
func (r *repl) turn(ctx context.Context, input string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("cli turn panicked", zap.Any("panic", rec))
			fmt.Fprintln(r.out, llm.ApologyText)
		}
	}()

	turnCtx, stop := r.interruptible(ctx)
	defer stop()

	stream, finish := r.session.ProcessStream(turnCtx, input)
	defer stream.Close()

	fmt.Fprint(r.out, "JARVIS> ")
	var sb strings.Builder
	for turnCtx.Err() == nil && stream.Next() {
		sb.WriteString(stream.Text())
		fmt.Fprint(r.out, stream.Text())
	}
	fmt.Fprintln(r.out)

	if turnCtx.Err() != nil && ctx.Err() == nil {
		stream.Close()
		fmt.Fprintln(r.out, "Use 'exit' to quit")
	}

	reply := finish(sb.String())
	if reply.Skill != nil {
		r.logger.Debug("skill used",
			zap.String("skill", reply.Skill.Skill),
			zap.Bool("success", reply.Skill.Success),
		)
	}
}

func (r *repl) handleCommand(ctx context.Context, command string) {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/clear":
		r.session.Clear()
		fmt.Fprintln(r.out, "Conversation cleared")
	case "/save":
		path, err := r.session.Save()
		if err != nil {
			fmt.Fprintf(r.out, "Failed to save conversation: %v\n", err)
			return
		}
		fmt.Fprintf(r.out, "Conversation saved: %s\n", path)
	case "/stats":
		stats, err := r.assistant.MemoryStats(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Failed to read memory stats: %v\n", err)
			return
		}
		fmt.Fprintf(r.out, "Memory\n  Total memories: %d\n  By type: %v\nConversation\n  %s\n",
			stats.Total, stats.ByType, r.session.Summary())
	case "/skills":
		fmt.Fprintln(r.out, "Available Skills")
		for _, c := range r.assistant.Router().Capabilities() {
			fmt.Fprintf(r.out, "  %s: %s\n", c.Name(), c.Describe())
		}
	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", command)
		fmt.Fprintln(r.out, "Type /help for available commands")
	}
}

// notify prints a due reminder between prompts.
func (r *repl) notify(_ context.Context, rem schedule.Reminder) {
	fmt.Fprintf(r.out, "\n⏰ Reminder: %s\n", rem.Message)
}

func runChat(ctx context.Context, opts *globalOptions) error {
	a, err := loadBase(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.withAssistant(ctx); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".jarvis_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	r := newREPL(rl, rl.Stdout(), a.assistant, a.logger)

	sched := a.newScheduler()
	sched.OnDue(r.notify)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	return r.run(ctx)
}
