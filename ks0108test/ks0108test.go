// Package ks0108test implements a model of a pair of KS0108 controllers to
// test code driving them without hardware.
//
// The model follows the controller's data read pipeline: a read returns the
// output latch, then reloads the latch from RAM at the current address and
// increments the column. The first read after setting an address therefore
// returns stale data.
package ks0108test

import (
	"errors"
	"fmt"

	"periph.io/x/devices/v3/ks0108"
)

// Op is one recorded bus transfer.
type Op struct {
	Chip  ks0108.Chip
	Reg   ks0108.Register
	Dir   ks0108.Direction
	Value byte
}

func (o Op) String() string {
	kind := "cmd"
	if o.Reg == ks0108.Data {
		kind = "data"
	}
	dir := "W"
	if o.Dir == ks0108.DirRead {
		dir = "R"
	}
	return fmt.Sprintf("%s %s%s 0x%02X", o.Chip, kind, dir, o.Value)
}

type controller struct {
	ram       [8][64]byte
	on        bool
	startLine int
	col, page int
	latch     byte
}

// Display models both controllers. It implements ks0108.Bus.
type Display struct {
	// Ops records every transfer when Record is set.
	Ops    []Op
	Record bool

	// Err, when set, is returned by the next transfer.
	Err error

	chips    [2]controller
	sel      ks0108.Chip
	selected bool
	reg      ks0108.Register
	dir      ks0108.Direction
}

// New returns a Display with cleared RAM, recording transfers.
func New() *Display {
	return &Display{Record: true}
}

func (d *Display) Select(c ks0108.Chip) error {
	if c != ks0108.ChipA && c != ks0108.ChipB {
		return fmt.Errorf("ks0108test: invalid chip %d", c)
	}
	d.sel = c
	d.selected = true
	return nil
}

func (d *Display) SetMode(r ks0108.Register, dir ks0108.Direction) error {
	d.reg = r
	d.dir = dir
	return nil
}

func (d *Display) WriteByte(v byte) error {
	if err := d.check(ks0108.DirWrite); err != nil {
		return err
	}
	d.record(v)
	c := &d.chips[d.sel]
	if d.reg == ks0108.Data {
		c.ram[c.page][c.col] = v
		c.col = (c.col + 1) % 64
		return nil
	}
	switch {
	case v&0xFE == 0x3E:
		c.on = v&1 == 1
	case v&0xC0 == 0x40:
		c.col = int(v & 0x3F)
	case v&0xF8 == 0xB8:
		c.page = int(v & 0x07)
	case v&0xC0 == 0xC0:
		c.startLine = int(v & 0x3F)
	default:
		return fmt.Errorf("ks0108test: unknown instruction 0x%02X", v)
	}
	return nil
}

func (d *Display) ReadByte() (byte, error) {
	if err := d.check(ks0108.DirRead); err != nil {
		return 0, err
	}
	c := &d.chips[d.sel]
	var v byte
	if d.reg == ks0108.Instruction {
		// Status: never busy, never in reset.
		if !c.on {
			v = 0x20
		}
	} else {
		v = c.latch
		c.latch = c.ram[c.page][c.col]
		c.col = (c.col + 1) % 64
	}
	d.record(v)
	return v, nil
}

func (d *Display) check(dir ks0108.Direction) error {
	if d.Err != nil {
		err := d.Err
		d.Err = nil
		return err
	}
	if !d.selected {
		return errors.New("ks0108test: no chip selected")
	}
	if d.dir != dir {
		return errors.New("ks0108test: transfer does not match R/W line")
	}
	return nil
}

func (d *Display) record(v byte) {
	if d.Record {
		d.Ops = append(d.Ops, Op{Chip: d.sel, Reg: d.reg, Dir: d.dir, Value: v})
	}
}

// Reset forgets the recorded transfers.
func (d *Display) Reset() {
	d.Ops = d.Ops[:0]
}

// Count returns the number of recorded transfers of the given kind.
func (d *Display) Count(r ks0108.Register, dir ks0108.Direction) int {
	n := 0
	for _, o := range d.Ops {
		if o.Reg == r && o.Dir == dir {
			n++
		}
	}
	return n
}

// Byte returns the RAM byte at virtual column x (0-127) in page p.
func (d *Display) Byte(x, p int) byte {
	return d.chips[x/64].ram[p][x%64]
}

// SetByte changes the RAM byte at virtual column x in page p without a bus
// transfer.
func (d *Display) SetByte(x, p int, v byte) {
	d.chips[x/64].ram[p][x%64] = v
}

// Pixel reports whether the pixel at (x, y) is lit.
func (d *Display) Pixel(x, y int) bool {
	return d.Byte(x, y/8)&(1<<(y%8)) != 0
}

// Column returns the column address register of c.
func (d *Display) Column(c ks0108.Chip) int {
	return d.chips[c].col
}

// Page returns the page address register of c.
func (d *Display) Page(c ks0108.Chip) int {
	return d.chips[c].page
}

// On reports whether c has been switched on.
func (d *Display) On(c ks0108.Chip) bool {
	return d.chips[c].on
}

// StartLine returns the display start line of c.
func (d *Display) StartLine(c ks0108.Chip) int {
	return d.chips[c].startLine
}

// Frame returns the RAM of both controllers in the layout of ks0108.Dev.Write.
func (d *Display) Frame() []byte {
	out := make([]byte, 0, ks0108.Width*ks0108.Pages)
	for p := 0; p < ks0108.Pages; p++ {
		out = append(out, d.chips[0].ram[p][:]...)
		out = append(out, d.chips[1].ram[p][:]...)
	}
	return out
}

var _ ks0108.Bus = (*Display)(nil)
