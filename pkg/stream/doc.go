// Package stream holds the byte-level plumbing every container format
// shares: a buffered cursor pair over seekable streams with byte-order
// switching, the decode context that scopes version and vendor state, the
// link table that queues raw reference indices until resolution, and the
// warning channel that carries non-fatal integrity findings out of a read.
//
// The error taxonomy lives here too. Fatal conditions are CodecError
// sentinels wrapped with position context at the call site; dangling
// references and size mismatches are Warnings, accumulated and logged but
// never returned as errors unless strict mode promotes them.
package stream
