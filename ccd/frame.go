package ccd

import (
	"image"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/google/uuid"
	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// Frame is a completed exposure, copied out of the chip's frame buffer
type Frame struct {
	// Seq increments with every completed exposure, starting at 1
	Seq uint64 `json:"seq"`

	// ID uniquely identifies the frame across restarts
	ID uuid.UUID `json:"id"`

	// Time is when the readout completed
	Time time.Time `json:"time"`

	// Exposure is the requested exposure length in seconds
	Exposure float64 `json:"exposure"`

	// Width and Height are the frame size in pixels
	Width  int `json:"width"`
	Height int `json:"height"`

	// BPP is the number of bits per pixel
	BPP int `json:"bpp"`

	// CRC is the CRC-32 of Pix
	CRC uint32 `json:"crc"`

	// Pix is the strided pixel data, row major
	Pix []byte `json:"-"`

	// Cards are the driver's FITS header cards at readout time
	Cards []fitsio.Card `json:"-"`
}

// newFrame snapshots the chip's frame buffer
func newFrame(seq uint64, c *Chip, cards []fitsio.Card) Frame {
	n := c.ImageBytes()
	buf := c.FrameBuffer()
	if n > len(buf) {
		n = len(buf)
	}
	pix := make([]byte, n)
	copy(pix, buf[:n])
	return Frame{
		Seq:      seq,
		ID:       uuid.New(),
		Time:     time.Now(),
		Exposure: c.ExposureDuration(),
		Width:    c.SubW() / c.BinX(),
		Height:   c.SubH() / c.BinY(),
		BPP:      c.BPP(),
		CRC:      uint32(crcTable.CalculateCRC(pix)),
		Pix:      pix,
		Cards:    cards,
	}
}

// Checksum recomputes the CRC-32 of the pixels
func (f Frame) Checksum() uint32 {
	return uint32(crcTable.CalculateCRC(f.Pix))
}

// Image returns the frame as an image.  16-bit frames are big endian, as
// FITS and image.Gray16 both expect.
func (f Frame) Image() image.Image {
	r := image.Rect(0, 0, f.Width, f.Height)
	if f.BPP > 8 {
		return &image.Gray16{Pix: f.Pix, Stride: f.Width * 2, Rect: r}
	}
	return &image.Gray{Pix: f.Pix, Stride: f.Width, Rect: r}
}
