//go:build fuzz
// +build fuzz

package cgf

import (
	"bytes"
	"io"
	"reflect"
	"testing"

	"github.com/ssargent/niflheim/pkg/schema"
)

// FuzzInspect throws arbitrary bytes at the envelope sniffer. Inspect must
// reject garbage with an error, never panic, and leave the cursor where it
// found it on every path.
func FuzzInspect(f *testing.F) {
	reg, err := schema.Load([]byte(testSchemaDoc))
	if err != nil {
		f.Fatalf("Loading schema: %v", err)
	}
	opts := &Options{Registry: reg}

	// Seed corpus: one well-formed container and the mutations the
	// envelope checks are supposed to catch.
	f.Add(farCryScenario())
	f.Add([]byte("CryTek\x00\x00"))
	f.Add([]byte("NCAion\x00\x00\x00\x00\xff\xff\x44\x07\x00\x00\x14\x00\x00\x00"))
	f.Add([]byte("NotASig\x00"))
	f.Add([]byte{})
	truncated := farCryScenario()
	f.Add(truncated[:len(truncated)-9])

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<16 {
			t.Skip("Input too large for fuzz test")
		}

		r := bytes.NewReader(data)
		sum, err := Inspect(r, opts)

		if pos, serr := r.Seek(0, io.SeekCurrent); serr != nil || pos != 0 {
			t.Fatalf("Cursor moved to %d (seek err %v) after Inspect", pos, serr)
		}
		if err != nil {
			// Rejection is fine; panics are not.
			return
		}

		again, err := Inspect(bytes.NewReader(data), opts)
		if err != nil {
			t.Fatalf("Second Inspect of accepted input failed: %v", err)
		}
		if !reflect.DeepEqual(sum, again) {
			t.Errorf("Inspect disagrees with itself: %+v vs %+v", sum, again)
		}
	})
}
