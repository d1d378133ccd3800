// Package cgf reads and writes the chunk-table container family: geometry
// and animation assets whose envelope names a vendor signature, a file
// kind, and the offset of a chunk table. Each table row carries its own
// record version, so two chunks in one file can decode under different
// layouts of the same type.
//
// Read produces a Data holding live records with references already bound;
// Write flattens the same graph back, placing the table before or after
// the bodies depending on the vendor variant.
package cgf
