package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/deepthink/internal/config"
	"github.com/ShayCichocki/deepthink/internal/llm"
	"github.com/ShayCichocki/deepthink/internal/orchestrator"
	"github.com/ShayCichocki/deepthink/internal/signals"
	"github.com/ShayCichocki/deepthink/internal/state"
	"github.com/ShayCichocki/deepthink/internal/tui"
)

var (
	askTUI     bool
	askNoSave  bool
	askSession string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Long: `Answer a question with a planned panel of experts and print the
synthesized answer.

The run can be stopped with Ctrl+C or, from another terminal, with
'deepthink stop'. Completed answers are saved as a session unless
--no-save is given; --session continues an existing one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askTUI, "tui", false, "Show live progress in a full-screen view")
	askCmd.Flags().BoolVar(&askNoSave, "no-save", false, "Do not store the question and answer")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Continue the session with this id or id prefix")
}

func runAsk(ctx context.Context, query string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	logger := orchestrator.NewDebugLoggerForDir(config.DataDir())
	defer logger.Close()
	if path := logger.Path(); path != "" {
		log.Printf("[engine] trace log: %s", path)
	}

	var (
		db      *state.DB
		session *state.Session
		history []orchestrator.Message
	)
	if !askNoSave || askSession != "" {
		db, err = state.OpenGlobal()
		if err != nil {
			if askSession != "" {
				return fmt.Errorf("open session store: %w", err)
			}
			log.Printf("[state] session store unavailable, answer will not be saved: %v", err)
		} else {
			defer db.Close()
		}
	}
	if db != nil && askSession != "" {
		session, err = db.FindSession(askSession)
		if err != nil {
			return err
		}
		msgs, err := db.ListMessages(session.ID)
		if err != nil {
			return err
		}
		history = state.History(msgs)
	}

	watcher, err := signals.NewWatcher(signals.Dir(config.DataDir()))
	if err != nil {
		return fmt.Errorf("watch stop signals: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Clear(); err != nil {
		log.Printf("[signals] clear stale stop signal: %v", err)
	}

	req := request(cfg, query, history)
	var outcome *orchestrator.Outcome
	if askTUI {
		outcome, err = askWithTUI(ctx, client, cfg, logger, watcher, req)
	} else {
		outcome, err = askPlain(ctx, client, cfg, logger, watcher, req)
	}
	if errors.Is(err, orchestrator.ErrStopped) {
		color.Yellow("Stopped.")
		return nil
	}
	if err != nil {
		return err
	}

	if db != nil && !askNoSave {
		if session == nil {
			session = &state.Session{Model: req.Model}
			if err := db.CreateSession(session); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
		}
		if err := saveExchange(db, session.ID, query, outcome); err != nil {
			return err
		}
		color.New(color.FgHiBlack).Printf("\nsession %s · %s\n", session.ID[:8], outcome.TotalDuration.Round(100*time.Millisecond))
	}
	return nil
}

func askPlain(ctx context.Context, client llm.Client, cfg *config.Config, logger *orchestrator.DebugLogger, watcher *signals.Watcher, req orchestrator.Request) (*orchestrator.Outcome, error) {
	p := newStreamPrinter(os.Stdout)
	engine := newEngine(client, cfg, logger, orchestrator.WithObserver(p.observe))

	run, err := engine.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	go stopOnSignal(watcher, engine, run)
	return run.Wait(context.Background())
}

func askWithTUI(ctx context.Context, client llm.Client, cfg *config.Config, logger *orchestrator.DebugLogger, watcher *signals.Watcher, req orchestrator.Request) (*orchestrator.Outcome, error) {
	emitter := orchestrator.NewEventEmitter(256)
	engine := newEngine(client, cfg, logger, orchestrator.WithObserver(emitter.Emit))

	program, _ := tui.NewRunProgram(req.Query, engine.Stop)

	run, err := engine.Start(ctx, req)
	if err != nil {
		emitter.Close()
		return nil, err
	}
	go stopOnSignal(watcher, engine, run)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		tui.Forward(ctx, emitter.Events(), program.Send, cfg.TUI.RefreshRate)
	}()
	go func() {
		outcome, err := run.Wait(context.Background())
		emitter.Close()
		<-forwarded
		if n := emitter.DroppedCount(); n > 0 {
			log.Printf("[tui] dropped %d progress updates", n)
		}
		program.Send(tui.RunDoneMsg{Outcome: outcome, Err: err})
	}()

	if _, err := program.Run(); err != nil {
		engine.Stop()
		return nil, fmt.Errorf("run tui: %w", err)
	}

	// Quitting the view stops the run; wait for it to settle.
	return run.Wait(context.Background())
}

// stopPollInterval is how often stopOnSignal checks the stop file itself,
// for when fsnotify is unavailable or missed the event.
var stopPollInterval = 500 * time.Millisecond

// stopOnSignal stops the engine when a stop file appears while run is live.
func stopOnSignal(watcher *signals.Watcher, engine *orchestrator.Engine, run *orchestrator.Run) {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	requested := watcher.StopRequested()
	for {
		select {
		case <-requested:
		case <-ticker.C:
			if !watcher.ShouldStop() {
				continue
			}
		case <-run.Done():
			return
		}

		log.Printf("[signals] stop requested")
		if engine.Current() == run {
			engine.Stop()
		}
		if err := watcher.Clear(); err != nil {
			log.Printf("[signals] clear stop signal: %v", err)
		}
		return
	}
}

// saveExchange appends the user's question and the run's answer to the
// session.
func saveExchange(db *state.DB, sessionID, query string, outcome *orchestrator.Outcome) error {
	user := &state.Message{SessionID: sessionID, Role: orchestrator.RoleUser, Content: query, CreatedAt: outcome.StartedAt}
	if err := db.AppendMessage(user); err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	answer := state.ModelMessage(outcome)
	answer.SessionID = sessionID
	if err := db.AppendMessage(answer); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}
