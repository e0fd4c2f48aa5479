// Package agent models the participants of a regtest scenario.
//
// An Agent is one simulated payment-channel node driven through the
// regtest driver. Each agent carries an ordered list of configuration
// overrides and a lifecycle state:
//
//	UNINITIALIZED -> CONFIGURED -> FUNDED -> RUNNING -> STOPPED
//
// States only move forward. STOPPED may be entered from any earlier state
// so that teardown after a partial setup is representable, but nothing
// leaves STOPPED.
//
// A Registry holds the agents of exactly one scenario execution. It is
// built from a group's declared agent set plus its configuration and
// rejects configuration that names an agent outside that set with a
// *DefinitionError before any command is dispatched.
package agent
