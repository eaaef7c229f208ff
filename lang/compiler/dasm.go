package compiler

import (
	"bytes"
	"fmt"
)

// This file implements a human-readable dump of a compiled Proto, for
// diagnostics and golden tests. Unlike the teacher's asm.go there is no
// textual assembler half: spec §6 defines no on-disk bytecode format to
// round-trip through, so Dasm only ever goes from Proto to text.

// Dasm disassembles p and every Proto nested within it into a single
// textual dump.
func Dasm(p *Proto) ([]byte, error) {
	d := dasm{buf: new(bytes.Buffer)}
	d.function(p)
	return d.buf.Bytes(), d.err
}

type dasm struct {
	buf *bytes.Buffer
	err error
}

func (d *dasm) function(p *Proto) {
	if d.err != nil {
		return
	}

	d.writef("function: %s %d %d", p.Name, p.MaxStack, p.NumParams)
	if p.IsVariadic {
		d.write(" +varargs")
	}
	d.write("\n")

	if len(p.Upvalues) > 0 {
		d.write("\tupvalues:\n")
		for i, uv := range p.Upvalues {
			src := "upval"
			if uv.FromStack {
				src = "stack"
			}
			d.writef("\t\t%s\t%s %d\t# %03d\n", uv.Name, src, uv.Index, i)
		}
	}

	if len(p.Locals) > 0 {
		d.write("\tlocals:\n")
		for i, l := range p.Locals {
			d.writef("\t\t%s\treg %d\t# %03d\n", l.Name, l.Register, i)
		}
	}

	if len(p.Constants) > 0 {
		d.write("\tconstants:\n")
		for i, c := range p.Constants {
			switch c := c.(type) {
			case string:
				d.writef("\t\tstring\t%q\t# %03d\n", c, i)
			case int64:
				d.writef("\t\tint\t%d\t# %03d\n", c, i)
			case float64:
				d.writef("\t\tfloat\t%g\t# %03d\n", c, i)
			default:
				d.err = fmt.Errorf("unsupported constant type: %T", c)
				return
			}
		}
	}

	if len(p.Code) > 0 {
		d.write("\tcode:\n")
		for i, insn := range p.Code {
			line := int32(0)
			if i < len(p.Lines) {
				line = p.Lines[i]
			}
			d.writef("\t\t%s\t# %03d  line %d\n", insn, i, line)
		}
	}

	for i, inner := range p.Protos {
		d.write("\n")
		d.writef("\t# nested proto %d\n", i)
		d.function(inner)
	}
}

func (d *dasm) writef(s string, args ...any) {
	d.write(fmt.Sprintf(s, args...))
}

func (d *dasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}
