// Package schemas carries the built-in schema documents. Each container
// package loads its document through schema.Load; deployments that patch a
// schema point the loader at an on-disk copy instead.
package schemas

import _ "embed"

//go:embed cgf.yaml
var CGF []byte

//go:embed nif.yaml
var NIF []byte

//go:embed kfm.yaml
var KFM []byte
