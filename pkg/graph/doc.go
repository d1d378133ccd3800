// Package graph assembles and traverses the object graphs a container
// decodes. It owns the two halves of reference handling that sit above
// the field codec: resolving raw wire indices into record pointers after
// a read, and flattening a pointer graph back into a deterministic table
// order before a write.
package graph
