// Package object holds the live record model and the schema-driven struct
// codec shared by every container format.
//
// # Records
//
// A Record is one materialized instance of a schema.RecordType: a slot per
// unique field name, parents first, created by New with every slot set to
// its declared default. Values are a small tagged set (Int, Float, Str,
// Bytes, *Flags, *Array, *Ref, *Record) so the decode path never goes
// through reflection or an untyped map.
//
// # The field walk
//
// Decode, encode, size and link fixing all share one walk over the flat
// field list. A field is on the wire only when every declared filter
// passes, checked in order:
//
//  1. the context version lies inside the field's [Ver1, Ver2] range,
//  2. the context user version equals the field's required user version,
//  3. the field's condition evaluates true against the record,
//  4. the field's version condition evaluates true against the context.
//
// Filters are evaluated lazily during the walk, so a condition on a later
// field sees the bytes a decode pass has already landed. When two
// declarations share a name, the first one that passes its filters claims
// the name and later duplicates are skipped. Abstract fields pass filters
// but never touch the cursor.
//
// # References
//
// Reference fields decode to a raw index pushed onto the container's link
// table; targets are bound by a FixLinks pass after every record body has
// been decoded, popping indices in the exact order they were read. The
// container codec supplies a Resolver that maps indices to records and
// owns the sentinel and mistype policy of its format.
//
// # Strings
//
// String fields come in several wire shapes (null terminated, one byte
// length, four byte length, fixed width, newline terminated) plus a pooled
// shape that stores an index into a file level string pool once the
// context version reaches the pool cutover. All lengths are checked
// against sanity ceilings so corrupt files fail fast instead of
// allocating gigabytes.
package object
