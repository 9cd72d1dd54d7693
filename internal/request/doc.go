// Package request holds the validated selection tree the builder consumes
// and the YAML request documents the CLI and the scenario harness read it
// from.
package request
