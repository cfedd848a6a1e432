// Package queryir provides an abstract query representation for filtering
// the type summaries of a stored analysis run.
//
// ARCHITECTURE:
//
//	[CLI filter terms] → [Query IR] → [SQL Backend (querysql)]
//
// The IR names fields of the summary relation rather than SQL columns and
// carries literals as ir.IRValue, so the CLI and tests never build SQL
// strings themselves.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, which keeps type switches
// in backends exhaustive:
//
//	switch p := pred.(type) {
//	case Equals:
//	case IsNull:
//	case NodeIs:
//	case SameClass:
//	case And:
//	}
//
// SUPPORTED FRAGMENT:
//   - Select(filter, limit) over one run's type summaries
//   - Predicates: Equals, IsNull, NodeIs, SameClass, And
//
// Not supported: OR, ordering other than by node ID, aggregation.
package queryir
