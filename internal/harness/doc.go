// Package harness sequences one scenario execution against the regtest
// driver.
//
// A Lifecycle owns a fresh agent.Registry for a single (group, scenario)
// case and dispatches the driver commands in a fixed order:
//
//	init <agent>                     for each agent
//	setconfig <agent> <key> <value>  for each agent, entries in order
//	new_block                        exactly once
//	start <agent>                    for each agent
//	<scenario>                       exactly once
//	stop <agent>                     for each agent whose start was dispatched
//
// A failure in any setup command aborts the remaining setup. The stop
// commands run on every exit path, including a timeout, a cancelled
// context or a panic raised while dispatching. Stop failures are logged
// and kept on the Outcome but never replace the primary failure.
//
// # Deterministic Testing
//
// Options.Now accepts an injected clock (testutil.StepClock) so that
// start stamps and elapsed times are reproducible. Dispatched commands
// are recorded as Outcome.Trace; AssertGolden compares the canonical JSON
// form of a trace with testdata/golden/<name>.golden.
//
// # Usage
//
//	lc, err := harness.New(group, "collaborative_close", harness.Options{
//	    Executor: shell.NewDriver(""),
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	outcome := lc.Run(ctx)
//	if !outcome.Passed() {
//	    fmt.Println(outcome.Reason())
//	}
package harness
