// Package response renders interpreter results into the nested shape a
// request asked for.
//
// The builder records a Shape next to every graph it builds. Cardinality
// comes from the Shape, never from the row count: a to-one relation with
// no related row renders as null, a to-many one as an empty list. Maps
// keep the order of the requested selection when marshalled to JSON.
package response
