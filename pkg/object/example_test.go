package object_test

import (
	"bytes"
	"fmt"

	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
)

const exampleSchema = `
format: examplefmt
versions:
  - {id: 10.0.1.0, value: 0x0A000100}
basics:
  - {name: u16, kind: u16}
enums:
  - name: GlossMode
    storage: u16
    options:
      - {name: GLOSS_DEFAULT, value: 0}
      - {name: GLOSS_MAP, value: 2}
bitfields:
  - name: PackedFlags
    storage: u16
    slots:
      - {name: enabled, bits: 1}
      - {name: mode, bits: 3}
      - {name: priority, bits: 4}
structs:
  - name: Shaded
    fields:
      - {name: gloss, type: GlossMode}
      - {name: flags, type: PackedFlags}
`

func ExampleState_DecodeRecord() {
	reg, err := schema.Load([]byte(exampleSchema))
	if err != nil {
		fmt.Println(err)
		return
	}
	rt, err := reg.Resolve("Shaded")
	if err != nil {
		fmt.Println(err)
		return
	}
	rec, err := object.New(rt, reg, "")
	if err != nil {
		fmt.Println(err)
		return
	}

	s := &object.State{
		Reg:     reg,
		Ctx:     stream.NewContext(0x0A000100),
		Warn:    stream.NewWarnings(nil, false),
		Links:   &stream.LinkTable{},
		NullRef: -1,
	}
	data := []byte{0x02, 0x00, 0x2B, 0x00}
	if err := s.DecodeRecord(stream.NewReader(bytes.NewReader(data)), rec); err != nil {
		fmt.Println(err)
		return
	}

	gloss, _ := rec.GetInt("gloss")
	flagsVal, _ := rec.Get("flags")
	flags := flagsVal.(*object.Flags)
	mode, _ := flags.Get("mode")
	fmt.Printf("gloss=%d mode=%d\n", gloss, mode)
	// Output: gloss=2 mode=5
}
