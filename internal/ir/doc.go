// Package ir provides the value types shared by every layer of qgraph.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This ensures IR remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed; null is IRNull, never a nil interface, once a
//     value has been read from storage or decoded from a request
//   - Records are keyed by model field name, column names stay inside
//     the connector
//   - Record identity across queries goes through CanonicalKey so that
//     equal values always match regardless of representation
package ir
