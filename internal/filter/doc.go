// Package filter defines the filter tree attached to read and write
// queries.
//
// Filters are built by the graph builder from `where` arguments and from
// selectors injected along graph edges (the ids produced by a parent
// node). They are compiled to SQL by the connector; nothing in this
// package knows about storage.
package filter
