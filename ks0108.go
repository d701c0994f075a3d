// Package ks0108 controls a 128x64 monochrome LCD built from two KS0108
// controllers over their 8-bit parallel interface.
//
// See the examples for how to use this package.
package ks0108

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/devices/v3/ks0108/image1bit"
)

// Geometry of the combined surface.
const (
	Width     = 128
	Height    = 64
	Pages     = Height / 8
	chipWidth = 64
)

// Controller instructions.
const (
	cmdDisplayOff = 0x3E
	cmdDisplayOn  = 0x3F
	cmdSetAddress = 0x40 // | column 0-63
	cmdSetPage    = 0xB8 // | page 0-7
	cmdStartLine  = 0xC0 // | line 0-63
)

var errHalted = errors.New("ks0108: halted")

var _ display.Drawer = (*Dev)(nil)

// RangePolicy decides what MoveTo does with a coordinate outside the display.
type RangePolicy uint8

const (
	// ResetToOrigin replaces an out of range coordinate with 0. This is what
	// existing KS0108 firmware does and what callers writing past the right
	// edge rely on to wrap text back to column 0.
	ResetToOrigin RangePolicy = iota
	// ClampToEdge replaces an out of range coordinate with the nearest valid
	// one.
	ClampToEdge
)

// Opts is the configuration for the display.
type Opts struct {
	Range     RangePolicy
	StartLine int // initial display start line (0-63)

	// Timing is used by NewParallel; nil means DefaultTiming.
	Timing *Timing

	// Optional hardware reset pin, active low.
	RST gpio.PinOut
}

// Cursor is the drawing position. X can reach Width after a write to the last
// column; further writes are dropped until the cursor is moved.
type Cursor struct {
	X, Y int
}

// Page returns the 8-row band containing Y.
func (c Cursor) Page() int {
	return c.Y / 8
}

// Font is a bitmap font in controller layout.
//
// Glyph returns the bitmap of c: Width()*ceil(Height()/8) bytes, column by
// column, each column holding its page bands top to bottom. It returns false
// when the font has no glyph for c.
type Font interface {
	Width() int
	Height() int
	Glyph(c byte) ([]byte, bool)
}

// Dev is a handle to the display.
//
// Every drawing call is sent to the controllers immediately; there is no
// frame buffer. Partial updates read the display RAM back. Dev is not safe for
// concurrent use: a read-modify-write spans several bus transfers.
type Dev struct {
	bus    Bus
	rst    gpio.PinOut
	reset  time.Duration
	policy RangePolicy
	rect   image.Rectangle

	x, y int

	halted bool
}

// New returns a Dev talking over bus and initializes the display: both
// controllers are switched on, the RAM is cleared and the cursor is at the
// origin.
//
// opts can be nil to use defaults.
func New(bus Bus, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, errors.New("ks0108: bus is required")
	}
	if opts == nil {
		opts = &Opts{}
	}
	if opts.StartLine < 0 || opts.StartLine >= Height {
		return nil, errors.New("ks0108: start line must be between 0 and 63")
	}
	if opts.Range != ResetToOrigin && opts.Range != ClampToEdge {
		return nil, fmt.Errorf("ks0108: unknown range policy %d", opts.Range)
	}
	t := DefaultTiming
	if opts.Timing != nil {
		t = *opts.Timing
	}
	d := &Dev{
		bus:    bus,
		rst:    opts.RST,
		reset:  t.Reset,
		policy: opts.Range,
		rect:   image.Rect(0, 0, Width, Height),
	}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// NewParallel returns a Dev driving the controllers through GPIO pins.
func NewParallel(p *Pins, opts *Opts) (*Dev, error) {
	var t *Timing
	if opts != nil {
		t = opts.Timing
	}
	b, err := NewParallelBus(p, t)
	if err != nil {
		return nil, err
	}
	return New(b, opts)
}

func (d *Dev) init(opts *Opts) error {
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("ks0108: failed to pull RST low: %w", err)
		}
		time.Sleep(d.reset)
		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("ks0108: failed to pull RST high: %w", err)
		}
		time.Sleep(d.reset)
	}
	for _, c := range []Chip{ChipA, ChipB} {
		if err := d.writeCommand(cmdDisplayOn, c); err != nil {
			return err
		}
		if err := d.writeCommand(cmdStartLine|byte(opts.StartLine), c); err != nil {
			return err
		}
	}
	if err := d.fill(0); err != nil {
		return err
	}
	return d.moveTo(0, 0)
}

// chipFor maps a virtual column to its controller and local column.
func chipFor(x int) (Chip, int) {
	if x >= chipWidth {
		return ChipB, x - chipWidth
	}
	return ChipA, x
}

func (d *Dev) writeCommand(cmd byte, c Chip) error {
	if err := d.bus.Select(c); err != nil {
		return err
	}
	if err := d.bus.SetMode(Instruction, DirWrite); err != nil {
		return err
	}
	return d.bus.WriteByte(cmd)
}

// normalize applies the range policy.
func (d *Dev) normalize(x, y int) (int, int) {
	if x < 0 || x >= Width {
		if d.policy == ClampToEdge {
			x = min(max(x, 0), Width-1)
		} else {
			x = 0
		}
	}
	if y < 0 || y >= Height {
		if d.policy == ClampToEdge {
			y = min(max(y, 0), Height-1)
		} else {
			y = 0
		}
	}
	return x, y
}

// Cursor returns the current drawing position.
func (d *Dev) Cursor() Cursor {
	return Cursor{X: d.x, Y: d.y}
}

// MoveTo sets the cursor. Coordinates outside the display are handled as
// configured by Opts.Range; no error is reported for them.
func (d *Dev) MoveTo(x, y int) error {
	if d.halted {
		return errHalted
	}
	return d.moveTo(x, y)
}

func (d *Dev) moveTo(x, y int) error {
	x, y = d.normalize(x, y)
	d.x, d.y = x, y

	c, col := chipFor(x)
	if err := d.writeCommand(cmdSetAddress|byte(col), c); err != nil {
		return err
	}
	// The page register is shared state for reads on either half.
	page := cmdSetPage | byte(y/8)
	if err := d.writeCommand(page, ChipA); err != nil {
		return err
	}
	return d.writeCommand(page, ChipB)
}

// readData reads the data register of the controller owning the cursor. With
// advance the cursor follows the controller's auto-increment, otherwise the
// address is set again.
func (d *Dev) readData(advance bool) (byte, error) {
	c, _ := chipFor(d.x)
	if err := d.bus.Select(c); err != nil {
		return 0, err
	}
	if err := d.bus.SetMode(Data, DirRead); err != nil {
		return 0, err
	}
	v, err := d.bus.ReadByte()
	if err != nil {
		return 0, err
	}
	if advance {
		d.x++
		return v, nil
	}
	return v, d.moveTo(d.x, d.y)
}

// readCell returns the RAM byte at the cursor. The first read after an
// address change returns the controller's previous output latch, so it is
// discarded.
func (d *Dev) readCell() (byte, error) {
	if _, err := d.readData(false); err != nil {
		return 0, err
	}
	return d.readData(false)
}

// writeCell writes v to the page containing the cursor and advances one
// column.
func (d *Dev) writeCell(v byte) error {
	if d.x >= Width {
		return nil
	}
	c, _ := chipFor(d.x)
	if d.x == chipWidth {
		// Chip B's column is not touched while writing chip A.
		if err := d.writeCommand(cmdSetAddress, ChipB); err != nil {
			return err
		}
	}
	if err := d.bus.Select(c); err != nil {
		return err
	}
	if err := d.bus.SetMode(Data, DirWrite); err != nil {
		return err
	}
	if err := d.bus.WriteByte(v); err != nil {
		return err
	}
	d.x++
	return nil
}

// ReadData returns the RAM byte holding the pixels (x, y&^7) to (x, y|7).
// The cursor is left at (x, y).
func (d *Dev) ReadData(x, y int) (byte, error) {
	if d.halted {
		return 0, errHalted
	}
	if err := d.moveTo(x, y); err != nil {
		return 0, err
	}
	return d.readCell()
}

// Read reads the whole display RAM back in the layout used by Write. The
// cursor is restored afterwards.
func (d *Dev) Read(pixels []byte) (int, error) {
	if d.halted {
		return 0, errHalted
	}
	if len(pixels) != Width*Pages {
		return 0, errors.New("ks0108: invalid buffer size")
	}
	cur := d.Cursor()
	for p := 0; p < Pages; p++ {
		for start := 0; start < Width; start += chipWidth {
			if err := d.moveTo(start, p*8); err != nil {
				return 0, err
			}
			off := p*Width + start
			if err := d.readRun(pixels[off : off+chipWidth]); err != nil {
				return 0, err
			}
		}
	}
	return len(pixels), d.moveTo(cur.X, cur.Y)
}

// readRun streams consecutive bytes of one controller starting at the
// cursor. While streaming, the controller's column runs one ahead of the
// cursor, which tracks the byte being returned.
func (d *Dev) readRun(buf []byte) error {
	x := d.x
	if _, err := d.readData(true); err != nil {
		return err
	}
	d.x = x
	for i := range buf {
		v, err := d.readData(true)
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}

// WriteData writes a column of 8 pixels at the cursor, bit 0 on top, and
// advances one column. Writes past the last column are dropped.
//
// When the cursor row is not a multiple of 8 the column spans two pages and
// v is ORed into both bytes; existing pixels are not cleared. Bits that fall
// below the last page are clipped.
func (d *Dev) WriteData(v byte) error {
	if d.halted {
		return errHalted
	}
	return d.writeData(v)
}

func (d *Dev) writeData(v byte) error {
	if d.x >= Width {
		return nil
	}
	off := d.y % 8
	if off == 0 {
		return d.writeCell(v)
	}

	x, y := d.x, d.y
	if x == chipWidth {
		if err := d.writeCommand(cmdSetAddress, ChipB); err != nil {
			return err
		}
	}
	// Low bits go to the current page.
	cur, err := d.readCell()
	if err != nil {
		return err
	}
	if err := d.writeCell(cur | v<<off); err != nil {
		return err
	}
	// High bits go to the next page.
	if y+8 < Height {
		if err := d.moveTo(x, y+8); err != nil {
			return err
		}
		next, err := d.readCell()
		if err != nil {
			return err
		}
		if err := d.writeCell(next | v>>(8-off)); err != nil {
			return err
		}
	}
	if x+1 >= Width {
		d.x, d.y = x+1, y
		return nil
	}
	return d.moveTo(x+1, y)
}

// SetPixel turns on the pixel at (x, y).
func (d *Dev) SetPixel(x, y int) error {
	return d.editPixel(x, y, true)
}

// ClearPixel turns off the pixel at (x, y).
func (d *Dev) ClearPixel(x, y int) error {
	return d.editPixel(x, y, false)
}

func (d *Dev) editPixel(x, y int, on bool) error {
	if d.halted {
		return errHalted
	}
	if err := d.moveTo(x, y); err != nil {
		return err
	}
	v, err := d.readCell()
	if err != nil {
		return err
	}
	bit := byte(1) << (d.y % 8)
	if on {
		v |= bit
	} else {
		v &^= bit
	}
	// The edited byte is the page-aligned one, never split.
	return d.writeCell(v)
}

// Fill writes v to every column of every page.
func (d *Dev) Fill(v byte) error {
	if d.halted {
		return errHalted
	}
	return d.fill(v)
}

func (d *Dev) fill(v byte) error {
	for p := 0; p < Pages; p++ {
		if err := d.fillPage(p, v); err != nil {
			return err
		}
	}
	return nil
}

// ClearLine clears the 8-row band line (0-7). An out of range line is
// handled by the range policy like any other row.
func (d *Dev) ClearLine(line int) error {
	if d.halted {
		return errHalted
	}
	return d.fillPage(line, 0)
}

func (d *Dev) fillPage(p int, v byte) error {
	if err := d.moveTo(0, p*8); err != nil {
		return err
	}
	for i := 0; i < Width; i++ {
		if err := d.writeData(v); err != nil {
			return err
		}
	}
	return nil
}

// PutChar draws c with its top left corner at the cursor and moves the
// cursor to the top of the next glyph cell. '\n' moves to the next text line
// at column 0; other characters without a glyph are ignored.
func (d *Dev) PutChar(c byte, f Font) error {
	if d.halted {
		return errHalted
	}
	return d.putChar(c, f)
}

func (d *Dev) putChar(c byte, f Font) error {
	if c == '\n' {
		return d.newLine(f.Height(), 0)
	}
	w, pages := f.Width(), (f.Height()+7)/8
	g, ok := f.Glyph(c)
	if !ok || len(g) < w*pages {
		return nil
	}

	x0, y0 := d.x, d.y
	for p := 0; p < pages; p++ {
		for i := p; i < w*pages; i += pages {
			if err := d.writeData(g[i]); err != nil {
				return err
			}
		}
		if err := d.moveTo(x0, d.y+8); err != nil {
			return err
		}
	}
	return d.moveTo(x0+w, y0)
}

// NewLine moves the cursor fontHeight rows down to column margin, or back to
// the first row when the next line would not fit. Nothing scrolls.
func (d *Dev) NewLine(fontHeight, margin int) error {
	if d.halted {
		return errHalted
	}
	return d.newLine(fontHeight, margin)
}

func (d *Dev) newLine(fontHeight, margin int) error {
	if d.y+fontHeight < Height {
		return d.moveTo(margin, d.y+fontHeight)
	}
	return d.moveTo(margin, 0)
}

// PutString draws s starting at the cursor. '\n' continues on the next line
// at the column where the string started. A NUL byte ends the string.
func (d *Dev) PutString(s string, f Font) error {
	if d.halted {
		return errHalted
	}
	margin := d.x
	for i := 0; i < len(s); i++ {
		if err := d.putStringByte(s[i], f, margin); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// PutStringFrom is PutString for text held outside the program, such as a
// ROM image or a file. It stops at a NUL byte or at io.EOF.
func (d *Dev) PutStringFrom(r io.ByteReader, f Font) error {
	if d.halted {
		return errHalted
	}
	margin := d.x
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ks0108: reading string: %w", err)
		}
		if err := d.putStringByte(c, f, margin); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// putStringByte returns io.EOF on the terminator.
func (d *Dev) putStringByte(c byte, f Font, margin int) error {
	switch c {
	case 0:
		return io.EOF
	case '\n':
		return d.newLine(f.Height(), margin)
	}
	return d.putChar(c, f)
}

// DrawBitmap writes a w x h bitmap with its top left corner at (x, y). data
// holds ceil(h/8) bands of w bytes, bit 0 of each byte on top. When y is not
// a multiple of 8 the bitmap is ORed over the existing pixels. The cursor
// ends at (x+w, y).
func (d *Dev) DrawBitmap(x, y, w, h int, data []byte) error {
	if d.halted {
		return errHalted
	}
	if w < 0 || h < 0 {
		return errors.New("ks0108: bitmap size must not be negative")
	}
	pages := (h + 7) / 8
	if len(data) < w*pages {
		return fmt.Errorf("ks0108: bitmap needs %d bytes, got %d", w*pages, len(data))
	}
	for p := 0; p < pages && y+p*8 < Height; p++ {
		if err := d.moveTo(x, y+p*8); err != nil {
			return err
		}
		for _, v := range data[p*w : (p+1)*w] {
			if err := d.writeData(v); err != nil {
				return err
			}
		}
	}
	return d.moveTo(x+w, y)
}

// Show switches both controllers on or off. The RAM content is kept.
func (d *Dev) Show(on bool) error {
	if d.halted {
		return errHalted
	}
	return d.show(on)
}

func (d *Dev) show(on bool) error {
	cmd := byte(cmdDisplayOff)
	if on {
		cmd = cmdDisplayOn
	}
	if err := d.writeCommand(cmd, ChipA); err != nil {
		return err
	}
	return d.writeCommand(cmd, ChipB)
}

// SetStartLine sets the RAM row shown at the top of the display on both
// controllers, scrolling the image vertically.
func (d *Dev) SetStartLine(line int) error {
	if d.halted {
		return errHalted
	}
	if line < 0 || line >= Height {
		return errors.New("ks0108: start line out of range")
	}
	if err := d.writeCommand(cmdStartLine|byte(line), ChipA); err != nil {
		return err
	}
	return d.writeCommand(cmdStartLine|byte(line), ChipB)
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Write writes a whole frame in controller layout: 8 pages of 128 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, errHalted
	}
	if len(pixels) != Width*Pages {
		return 0, errors.New("ks0108: invalid buffer size")
	}
	if err := d.writeFrame(pixels); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

func (d *Dev) writeFrame(pix []byte) error {
	for p := 0; p < Pages; p++ {
		if err := d.moveTo(0, p*8); err != nil {
			return err
		}
		for _, v := range pix[p*Width : (p+1)*Width] {
			if err := d.writeCell(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Draw draws src onto the display. Pages fully covered by dst are written
// directly; pages only partly covered are read back and merged so the pixels
// outside dst are kept.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errHalted
	}
	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	if img, ok := src.(*image1bit.VerticalLSB); ok {
		if dst == d.rect && sp == (image.Point{}) && img.Rect == d.rect {
			return d.writeFrame(img.Pix)
		}
	}

	for top := dst.Min.Y &^ 7; top < dst.Max.Y; top += 8 {
		var mask byte
		for y := max(top, dst.Min.Y); y < min(top+8, dst.Max.Y); y++ {
			mask |= 1 << (y - top)
		}
		if err := d.moveTo(dst.Min.X, top); err != nil {
			return err
		}
		for x := dst.Min.X; x < dst.Max.X; x++ {
			bits := column(src, x+sp.X-dst.Min.X, top+sp.Y-dst.Min.Y, mask)
			if mask == 0xFF {
				if err := d.writeCell(bits); err != nil {
					return err
				}
				continue
			}
			if err := d.moveTo(x, top); err != nil {
				return err
			}
			old, err := d.readCell()
			if err != nil {
				return err
			}
			if err := d.writeCell(old&^mask | bits); err != nil {
				return err
			}
		}
	}
	return nil
}

// column samples the 8 pixels of src below (x, y) selected by mask.
func column(src image.Image, x, y int, mask byte) byte {
	var v byte
	for k := 0; k < 8; k++ {
		if mask&(1<<k) == 0 {
			continue
		}
		if image1bit.BitModel.Convert(src.At(x, y+k)).(image1bit.Bit) {
			v |= 1 << k
		}
	}
	return v
}

// Halt switches the display off. The device must be recreated to be used
// again.
func (d *Dev) Halt() error {
	d.halted = true
	return d.show(false)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ks0108.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
