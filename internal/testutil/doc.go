// Package testutil holds deterministic stand-ins shared by tests: a wall
// clock, an id sequence and a recording connector.
package testutil
