// Package ks0108 controls a 128x64 monochrome LCD module built from two
// KS0108 (or compatible HD61202, S6B0108) controllers.
//
// Each controller drives a 64-column half of the panel. The driver presents
// them as one 128x64 surface: columns 0-63 go to chip A (CS1) and columns
// 64-127 to chip B (CS2). The display RAM is organised in 8 pages of 8 rows;
// one byte holds 8 vertically stacked pixels, bit 0 on top.
//
// # Hardware Connection
//
// The module is driven through its 8-bit parallel interface:
//
//	Module Pin → System Pin
//	D0-D7      → 8 GPIOs (bidirectional)
//	D/I (RS)   → GPIO
//	R/W        → GPIO
//	E          → GPIO
//	CS1, CS2   → GPIO each (some modules invert them, see Pins.CSActiveLow)
//	RST        → Optional: GPIO
//
// Any other transport can be used by implementing Bus.
//
// # Basic Usage
//
//	host.Init()
//	dev, _ := ks0108.NewParallel(&ks0108.Pins{
//		D:   [8]gpio.PinIO{d0, d1, d2, d3, d4, d5, d6, d7},
//		DI:  gpioreg.ByName("GPIO17"),
//		RW:  gpioreg.ByName("GPIO27"),
//		EN:  gpioreg.ByName("GPIO22"),
//		CS1: gpioreg.ByName("GPIO23"),
//		CS2: gpioreg.ByName("GPIO24"),
//	}, nil)
//	defer dev.Halt()
//
//	dev.MoveTo(0, 0)
//	dev.PutString("Hello\nworld", bitfont.System5x7)
//	dev.SetPixel(100, 40)
//
// # No Frame Buffer
//
// Every call is sent to the controllers immediately. To change part of a byte
// (a single pixel, text not aligned to a page, a Draw rectangle not aligned
// to pages) the driver reads the byte back from the display, modifies it and
// writes it again. The read needs the R/W line and bidirectional data pins to
// be wired. Text drawn at a row that is not a multiple of 8 is ORed over the
// existing pixels.
//
// # Cursor
//
// Text and WriteData draw at the cursor and move it. Coordinates outside the
// display are not reported as errors: by default they are reset to 0, which
// makes text running past the right edge continue at column 0 of the same
// row. Set Opts.Range to ClampToEdge to keep them at the nearest edge
// instead.
//
// # Timing
//
// The busy flag is never polled. Each transfer uses an enable pulse of at
// least Timing.Enable followed by Timing.Settle. Raise them for slow
// modules or fast hosts.
//
// # Concurrency
//
// A Dev must only be used from one goroutine at a time. Pixel updates span
// several bus transfers and interleaving them corrupts the display.
//
// # Compatibility with periph.io
//
// Dev implements display.Drawer from periph.io and can be used with any tool
// expecting one.
package ks0108
