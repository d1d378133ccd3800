// Package kfm reads and writes keyframe-motion manifests: a text banner
// naming the version followed by one flat schema-typed record listing the
// model file and its animation clips. There is no table, no reference
// indices and no string pool, so the package exercises the struct codec
// alone.
//
// Banner versions are spelled in hexadecimal bytes ("1.2.4b" packs to
// 0x01024B00) and the line ends with either LF or CRLF; the terminator
// style is preserved across a rewrite.
package kfm
