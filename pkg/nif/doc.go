// Package nif reads and writes block-table scene-graph containers: a text
// banner naming the version, a header whose sections appear and disappear
// across two decades of format revisions, a run of schema-typed block
// bodies, and a trailing root list.
//
// One container version covers every block. The header grows a block-type
// table at 5.0.0.1, a shared string pool at 20.1.0.3, and per-block byte
// sizes at 20.2.0.7; before 3.3.0.13 there is no block count at all and
// the stream is bracketed by sentinel strings instead. Reference indices
// are one-based with zero for null before 3.3.0.13 and zero-based with -1
// for null after. Read handles every combination; Write reproduces the
// layout for the container's version, so an unmodified graph rewrites to
// the identical bytes.
package nif
