// Package orchestrator runs a query through a panel of model experts.
//
// A run moves through four states:
//   - analyzing: the Manager plans specialists while the Primary task
//     already streams its direct answer
//   - experts_working: the planned specialists stream concurrently
//   - synthesizing: the Synthesizer merges every task's output into the
//     final answer, streamed
//   - completed
//
// Any failure of synthesis, and any Stop, drops the run back to idle. Each
// run owns one cancellation context; every stream of the run observes it.
// Retries apply only to opening a stream or calling the manager, never to
// a stream that already produced output.
//
// Progress is published to an Observer as full snapshots, so consumers can
// drop intermediate updates freely (see EventEmitter).
//
// Example usage:
//
//	engine := orchestrator.New(client, orchestrator.WithObserver(func(u orchestrator.Update) {
//		fmt.Println(u.Kind, u.State)
//	}))
//	outcome, err := engine.Run(ctx, orchestrator.Request{
//		Query: "Why is the sky blue?",
//		Model: "gemini-3-flash-preview",
//	})
package orchestrator
