package ks0108

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Chip identifies one of the two controllers. ChipA drives columns 0-63 and
// ChipB drives columns 64-127.
type Chip uint8

const (
	ChipA Chip = iota
	ChipB
)

func (c Chip) String() string {
	switch c {
	case ChipA:
		return "A"
	case ChipB:
		return "B"
	}
	return fmt.Sprintf("Chip(%d)", uint8(c))
}

// Register selects the controller register addressed by a transfer (the D/I
// line).
type Register uint8

const (
	Instruction Register = iota // commands on write, status on read
	Data                        // display RAM
)

// Direction is the level of the R/W line.
type Direction uint8

const (
	DirWrite Direction = iota
	DirRead
)

// Bus performs single strobed byte transfers to the controllers.
//
// WriteByte places the byte on the data lines and pulses the enable line.
// ReadByte raises the enable line, samples the data lines and lowers it again.
// Both honour the timing of the implementation; the driver never polls the
// busy flag.
type Bus interface {
	Select(c Chip) error
	SetMode(r Register, dir Direction) error
	WriteByte(b byte) error
	ReadByte() (byte, error)
}

// Timing holds the bus delays. They replace the busy flag poll, so they must
// be long enough for the slowest controller at the host clock speed.
type Timing struct {
	Enable time.Duration // minimum high width of the enable pulse
	Settle time.Duration // delay after the enable line falls
	Reset  time.Duration // low width of the reset pulse and recovery time
}

// DefaultTiming matches the datasheet minimums with some margin.
var DefaultTiming = Timing{
	Enable: 450 * time.Nanosecond,
	Settle: time.Microsecond,
	Reset:  10 * time.Millisecond,
}

// Pins is the wiring of the parallel interface.
type Pins struct {
	D  [8]gpio.PinIO // D0..D7
	DI gpio.PinOut   // Low: instruction, High: data
	RW gpio.PinOut   // Low: write, High: read
	EN gpio.PinOut

	CS1, CS2    gpio.PinOut
	CSActiveLow bool // some modules invert the chip select lines
}

// Parallel is a Bus implemented by bit-banging GPIO pins.
type Parallel struct {
	p   Pins
	t   Timing
	dir Direction
}

// NewParallelBus returns a Bus driving the given pins.
//
// t can be nil to use DefaultTiming.
func NewParallelBus(p *Pins, t *Timing) (*Parallel, error) {
	if p == nil {
		return nil, errors.New("ks0108: pins are required")
	}
	for i, d := range p.D {
		if d == nil {
			return nil, fmt.Errorf("ks0108: data pin D%d is required", i)
		}
	}
	if p.DI == nil || p.RW == nil || p.EN == nil {
		return nil, errors.New("ks0108: DI, RW and EN pins are required")
	}
	if p.CS1 == nil || p.CS2 == nil {
		return nil, errors.New("ks0108: CS1 and CS2 pins are required")
	}
	if t == nil {
		t = &DefaultTiming
	}
	if t.Enable < 0 || t.Settle < 0 || t.Reset < 0 {
		return nil, errors.New("ks0108: timing must not be negative")
	}
	b := &Parallel{p: *p, t: *t}
	if err := b.p.EN.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("ks0108: failed to pull EN low: %w", err)
	}
	return b, nil
}

// Select enables the chip select line of c and disables the other one.
func (b *Parallel) Select(c Chip) error {
	on, off := gpio.High, gpio.Low
	if b.p.CSActiveLow {
		on, off = off, on
	}
	sel, other := b.p.CS1, b.p.CS2
	if c == ChipB {
		sel, other = other, sel
	}
	// Deselect first so both chips are never enabled together.
	if err := other.Out(off); err != nil {
		return err
	}
	return sel.Out(on)
}

// SetMode drives the D/I and R/W lines. In read mode the data lines are
// released.
func (b *Parallel) SetMode(r Register, dir Direction) error {
	if err := b.p.DI.Out(gpio.Level(r == Data)); err != nil {
		return err
	}
	if err := b.p.RW.Out(gpio.Level(dir == DirRead)); err != nil {
		return err
	}
	if dir == DirRead {
		for _, d := range b.p.D {
			if err := d.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
				return err
			}
		}
	}
	b.dir = dir
	return nil
}

// WriteByte puts v on D0..D7 and latches it with an enable pulse.
func (b *Parallel) WriteByte(v byte) error {
	if b.dir != DirWrite {
		return errors.New("ks0108: bus is not in write mode")
	}
	for i, d := range b.p.D {
		if err := d.Out(gpio.Level(v&(1<<i) != 0)); err != nil {
			return err
		}
	}
	if err := b.p.EN.Out(gpio.High); err != nil {
		return err
	}
	wait(b.t.Enable)
	if err := b.p.EN.Out(gpio.Low); err != nil {
		return err
	}
	wait(b.t.Settle)
	return nil
}

// ReadByte samples D0..D7 while the enable line is high.
func (b *Parallel) ReadByte() (byte, error) {
	if b.dir != DirRead {
		return 0, errors.New("ks0108: bus is not in read mode")
	}
	if err := b.p.EN.Out(gpio.High); err != nil {
		return 0, err
	}
	wait(b.t.Enable)
	var v byte
	for i, d := range b.p.D {
		if d.Read() == gpio.High {
			v |= 1 << i
		}
	}
	if err := b.p.EN.Out(gpio.Low); err != nil {
		return 0, err
	}
	wait(b.t.Settle)
	return v, nil
}

// Halt deselects both chips and leaves the enable line low.
func (b *Parallel) Halt() error {
	off := gpio.Low
	if b.p.CSActiveLow {
		off = gpio.High
	}
	if err := b.p.EN.Out(gpio.Low); err != nil {
		return err
	}
	if err := b.p.CS1.Out(off); err != nil {
		return err
	}
	return b.p.CS2.Out(off)
}

func (b *Parallel) String() string {
	return fmt.Sprintf("ks0108.Parallel{EN: %s, CS1: %s, CS2: %s}", b.p.EN, b.p.CS1, b.p.CS2)
}

// wait busy-loops for short delays; time.Sleep cannot resolve sub-microsecond
// intervals on most hosts.
func wait(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	for start := time.Now(); time.Since(start) < d; {
	}
}
