// Package tui provides the terminal user interface for deepthink's ask
// command.
//
// The TUI is read-only: it shows the run phase, the manager's plan, every
// task with its status and a preview of its stream, and the synthesized
// answer as it arrives. Users can stop the run with 's' and leave with 'q'
// or Ctrl+C.
//
// Usage:
//
//	program, app := tui.NewRunProgram(query, engine.Stop)
//	emitter := orchestrator.NewEventEmitter(256)
//	go tui.Forward(ctx, emitter.Events(), program.Send, 100*time.Millisecond)
//
//	// when the run resolves
//	program.Send(tui.RunDoneMsg{Outcome: outcome, Err: err})
package tui
