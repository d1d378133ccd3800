// Package toaster is the batch driver: it walks a directory tree, claims
// each file whose name a registered container format recognizes, and
// casts a spell on it. A spell is a staged visitor over one decoded
// file: an envelope gate before the full read, entry and exit hooks
// around the document, and a pruned pre-order walk over the record
// graph. Spells that mutate the document and are not read-only are
// written back through a temporary file renamed over the original.
//
// Runs are tagged with a ksuid and can record clean results in a
// pebble-backed cache keyed by path, modification time, size and spell
// name, so a resumed run skips files it has already toasted.
package toaster
