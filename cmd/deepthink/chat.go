package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/deepthink/internal/config"
	"github.com/ShayCichocki/deepthink/internal/orchestrator"
	"github.com/ShayCichocki/deepthink/internal/signals"
	"github.com/ShayCichocki/deepthink/internal/state"
)

var (
	chatSessionID string
	chatNoSave    bool
)

const chatHelp = `Start an interactive chat. Every question is answered by a fresh
panel of experts that sees the recent conversation as context.

Commands:
  /new             start a new session
  /resume <id>     switch to a saved session
  /sessions        list recent sessions
  /help            show this help
  /quit            exit

Ctrl+C while an answer is streaming stops it.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long:  chatHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), chatSessionID)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "Resume the session with this id or id prefix")
	chatCmd.Flags().BoolVar(&chatNoSave, "no-save", false, "Do not store the conversation")
}

// chat holds the REPL's conversation state.
type chat struct {
	cfg     *config.Config
	engine  *orchestrator.Engine
	db      *state.DB
	watcher *signals.Watcher
	out     io.Writer

	session *state.Session
	history []orchestrator.Message

	mu      sync.Mutex
	printer *streamPrinter
}

// observe forwards updates to the printer of the current question.
func (c *chat) observe(u orchestrator.Update) {
	c.mu.Lock()
	p := c.printer
	c.mu.Unlock()
	if p != nil {
		p.observe(u)
	}
}

func runChat(ctx context.Context, sessionID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	logger := orchestrator.NewDebugLoggerForDir(config.DataDir())
	defer logger.Close()
	if path := logger.Path(); path != "" {
		log.Printf("[engine] trace log: %s", path)
	}

	c := &chat{cfg: cfg, out: os.Stdout}
	c.engine = newEngine(client, cfg, logger, orchestrator.WithObserver(c.observe))
	defer c.engine.Reset()

	if !chatNoSave {
		db, err := state.OpenGlobal()
		if err != nil {
			log.Printf("[state] session store unavailable, chat will not be saved: %v", err)
		} else {
			c.db = db
			defer db.Close()
		}
	}
	if sessionID != "" {
		if err := c.resume(sessionID); err != nil {
			return err
		}
	}

	watcher, err := signals.NewWatcher(signals.Dir(config.DataDir()))
	if err != nil {
		return fmt.Errorf("watch stop signals: %w", err)
	}
	defer watcher.Close()
	c.watcher = watcher

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          color.CyanString("? "),
		HistoryFile:     filepath.Join(config.DataDir(), "chat_history"),
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("deepthink chat · %s · /help for commands\n", cfg.ResolvedModel())
	if c.session != nil {
		fmt.Printf("resumed session %s (%d messages)\n", c.session.ID[:8], len(c.history))
	}

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			quit, err := c.command(input)
			if err != nil {
				color.Red("Error: %v", err)
			}
			if quit {
				return nil
			}
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		if err := c.ask(ctx, input); err != nil {
			color.Red("Error: %v", err)
		}
	}
}

// command handles a slash command. It reports whether the REPL should exit.
func (c *chat) command(input string) (bool, error) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/new":
		c.engine.Reset()
		c.session = nil
		c.history = nil
		fmt.Fprintln(c.out, "new session")
	case "/resume":
		if len(fields) < 2 {
			return false, errors.New("usage: /resume <id>")
		}
		c.engine.Reset()
		if err := c.resume(fields[1]); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "resumed session %s (%d messages)\n", c.session.ID[:8], len(c.history))
	case "/sessions":
		if c.db == nil {
			return false, errors.New("session store unavailable")
		}
		sessions, err := c.db.ListSessions(10)
		if err != nil {
			return false, err
		}
		printSessions(c.out, sessions)
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func (c *chat) resume(id string) error {
	if c.db == nil {
		return errors.New("session store unavailable")
	}
	s, err := c.db.FindSession(id)
	if err != nil {
		return err
	}
	msgs, err := c.db.ListMessages(s.ID)
	if err != nil {
		return err
	}
	c.session = s
	c.history = state.History(msgs)
	return nil
}

// ask answers one question. Ctrl+C or 'deepthink stop' stops the run
// without leaving the REPL.
func (c *chat) ask(ctx context.Context, query string) error {
	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	c.mu.Lock()
	c.printer = newStreamPrinter(c.out)
	c.mu.Unlock()

	// A stop request left over from an earlier question must not stop this one.
	if err := c.watcher.Clear(); err != nil {
		log.Printf("[signals] clear stale stop signal: %v", err)
	}

	req := request(c.cfg, query, c.history)
	run, err := c.engine.Start(runCtx, req)
	if err != nil {
		return err
	}
	go stopOnSignal(c.watcher, c.engine, run)

	outcome, err := run.Wait(context.Background())
	if errors.Is(err, orchestrator.ErrStopped) {
		fmt.Fprintln(c.out, color.YellowString("Stopped."))
		return nil
	}
	if err != nil {
		return err
	}

	c.history = append(c.history,
		orchestrator.Message{Role: orchestrator.RoleUser, Content: query},
		orchestrator.Message{Role: orchestrator.RoleModel, Content: outcome.FinalText},
	)
	fmt.Fprintln(c.out)

	if c.db == nil {
		return nil
	}
	if c.session == nil {
		c.session = &state.Session{Model: req.Model}
		if err := c.db.CreateSession(c.session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return saveExchange(c.db, c.session.ID, query, outcome)
}
