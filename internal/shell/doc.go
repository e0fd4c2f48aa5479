// Package shell dispatches regtest driver commands.
//
// Every lifecycle step is a single invocation of an external driver
// script:
//
//	<driver> init alice
//	<driver> setconfig bob lightning_listen localhost:9735
//	<driver> new_block
//	<driver> breach
//
// The Driver executor merges the process's stderr into stdout and hands
// each line to a LineObserver as soon as it is read, so interleaving in the
// live transcript matches real execution order. Each call is bounded by its
// own timeout; on expiry the process is killed and a *TimeoutFailure is
// returned. A nonzero exit yields a *CommandFailure carrying the exit code
// and the captured transcript.
//
// Calls are expected to be made one at a time. Nothing in this package
// runs commands concurrently.
package shell
