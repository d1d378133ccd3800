//go:build fuzz
// +build fuzz

package expr

import (
	"strings"
	"testing"
)

// FuzzParse ensures the parser never panics and that anything it accepts
// can be rendered and reparsed to the same evaluation result.
func FuzzParse(f *testing.F) {
	// Seed corpus drawn from real schema condition shapes
	f.Add("num_vertices * 3")
	f.Add("(version >= 10.1.0.0) && (user_version == 11)")
	f.Add("has_normals && !is_skin")
	f.Add("#ARG# > 4")
	f.Add("flags & 0x0200")
	f.Add("num_strips == 0 || strip_lengths > 0")
	f.Add("1 +")
	f.Add("((((")
	f.Add(".....")
	f.Add("a.b.c.d")

	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 1000 {
			t.Skip("Input too large for fuzz test")
		}

		e, err := Parse(src, testVersions)
		if err != nil {
			// Rejection is fine; panics are not.
			return
		}

		rendered := e.String()
		e2, err := Parse(rendered, testVersions)
		if err != nil {
			t.Fatalf("Rendered form %q of accepted input %q failed to reparse: %v", rendered, src, err)
		}

		env := mapEnv{fields: fuzzFields(src)}
		v1, err1 := e.Eval(env)
		v2, err2 := e2.Eval(env)
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("Eval disagreement between %q and rendered %q: %v vs %v", src, rendered, err1, err2)
		}
		if err1 == nil && v1 != v2 {
			t.Errorf("Eval mismatch: %q = %d, rendered %q = %d", src, v1, rendered, v2)
		}
	})
}

// fuzzFields binds every identifier-looking run in src to a fixed value so
// field lookups resolve deterministically.
func fuzzFields(src string) map[string]int64 {
	fields := make(map[string]int64)
	var cur strings.Builder
	var path []string
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		path = append(path, cur.String())
		cur.Reset()
		fields[strings.Join(path, ".")] = 3
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case isIdentPart(c):
			cur.WriteByte(c)
		case c == '.':
			flush()
			continue
		default:
			flush()
			path = path[:0]
		}
	}
	flush()
	return fields
}
