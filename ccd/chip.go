package ccd

// Chip is a sensor readout channel: its geometry, the frame buffer a driver
// reads out into, and the exposure bookkeeping shown to clients.
type Chip struct {
	xres, yres     int
	bpp            int
	pixelW, pixelH float64

	subX, subY, subW, subH int
	binX, binY             int

	buffer []byte

	exposureDuration float64
	exposureLeft     float64
}

// NewChip returns a chip with unit binning and no geometry
func NewChip() *Chip {
	return &Chip{binX: 1, binY: 1, bpp: 8}
}

// SetParams sets the resolution, bit depth and pixel size (microns), and
// resets the sub frame to the full sensor
func (c *Chip) SetParams(x, y, bpp int, pixelW, pixelH float64) {
	c.xres, c.yres = x, y
	c.bpp = bpp
	c.pixelW, c.pixelH = pixelW, pixelH
	c.subX, c.subY, c.subW, c.subH = 0, 0, x, y
}

// XRes is the horizontal resolution in pixels
func (c *Chip) XRes() int { return c.xres }

// YRes is the vertical resolution in pixels
func (c *Chip) YRes() int { return c.yres }

// BPP is the bit depth of the readout
func (c *Chip) BPP() int { return c.bpp }

// SetBPP sets the bit depth of the readout
func (c *Chip) SetBPP(bpp int) { c.bpp = bpp }

// PixelSize returns the pixel pitch in microns
func (c *Chip) PixelSize() (float64, float64) { return c.pixelW, c.pixelH }

// SubFrame returns the region of interest
func (c *Chip) SubFrame() (x, y, w, h int) { return c.subX, c.subY, c.subW, c.subH }

// SubW is the width of the region of interest
func (c *Chip) SubW() int { return c.subW }

// SubH is the height of the region of interest
func (c *Chip) SubH() int { return c.subH }

// Binning returns the binning factors
func (c *Chip) Binning() (int, int) { return c.binX, c.binY }

// SetBinning sets the binning factors
func (c *Chip) SetBinning(h, v int) { c.binX, c.binY = h, v }

// BinX is the horizontal binning factor
func (c *Chip) BinX() int { return c.binX }

// BinY is the vertical binning factor
func (c *Chip) BinY() int { return c.binY }

// SetFrameBufferSize sizes the frame buffer.  The buffer is kept when the
// size does not change, so it is reused across exposures.
func (c *Chip) SetFrameBufferSize(n int) {
	if len(c.buffer) == n {
		return
	}
	c.buffer = make([]byte, n)
}

// FrameBuffer is the buffer drivers read out into
func (c *Chip) FrameBuffer() []byte { return c.buffer }

// FrameBufferSize is the length of the frame buffer
func (c *Chip) FrameBufferSize() int { return len(c.buffer) }

// ImageBytes is the number of bytes of pixel data in one binned readout
// of the region of interest
func (c *Chip) ImageBytes() int {
	return (c.subW / c.binX) * (c.subH / c.binY) * c.bpp / 8
}

// SetExposureDuration records the requested exposure length in seconds
func (c *Chip) SetExposureDuration(s float64) { c.exposureDuration = s }

// ExposureDuration is the requested exposure length in seconds
func (c *Chip) ExposureDuration() float64 { return c.exposureDuration }

// SetExposureLeft records the time remaining in the exposure
func (c *Chip) SetExposureLeft(s float64) { c.exposureLeft = s }

// ExposureLeft is the time remaining in the exposure in seconds
func (c *Chip) ExposureLeft() float64 { return c.exposureLeft }
