// Package image1bit provides a 1-bit image format matching the display RAM of
// KS0108 controllers.
//
// The controllers store 8 vertically stacked pixels per byte. A 128x64
// display holds 8 pages of 128 bytes; bit k of the byte at column x in page p
// is the pixel (x, p*8+k).
//
// Memory layout example for the first column of a page:
//
//	Rows:   0 1 2 3 4 5 6 7
//	Pixels: 1 0 1 1 0 0 0 1
//	Byte:   0x8D
//
// This package provides:
//
// - Bit: a color type, on (true) or off (false)
// - BitModel: a color model converting standard Go colors to Bit
// - VerticalLSB: an image.Image implementation in controller layout
//
// Example usage:
//
//	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
//	img.SetBit(10, 20, image1bit.On)
//	draw.Draw(img, image.Rect(0, 0, 8, 8), image.NewUniform(image1bit.On), image.Point{}, draw.Src)
//	dev.Draw(dev.Bounds(), img, image.Point{})
package image1bit
