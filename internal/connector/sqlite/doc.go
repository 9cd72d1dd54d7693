// Package sqlite implements connector.Connector on SQLite through
// mattn/go-sqlite3.
//
// Every primitive read and write compiles to parameterized SQL. Values are
// always bound, never interpolated, and every read carries an ORDER BY
// ending in the primary key so results are deterministic.
//
// Writes that return a record use RETURNING. Multi-record writes return
// the affected primary keys. Relation filters compile to EXISTS
// sub-selects. Many-to-many relations go through an implicit join table
// "_<Relation>" with columns A and B.
//
// Related reads fetch the children of all parents at once, unpaginated,
// with the parent link of each row in RecordSet.ParentLinks.
package sqlite
