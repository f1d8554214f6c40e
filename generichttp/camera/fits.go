package camera

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/labcam/chameleon/ccd"
)

// FrameCards returns the cards describing a frame, followed by the driver's
// own cards captured at readout
func FrameCards(f ccd.Frame) []fitsio.Card {
	cards := []fitsio.Card{
		{Name: "HDRVER", Value: "chameleon-1", Comment: "header version"},
		{Name: "DATE-OBS", Value: f.Time.UTC().Format(time.RFC3339Nano), Comment: "readout time, UTC"},
		{Name: "EXPTIME", Value: f.Exposure, Comment: "exposure time, seconds"},
		{Name: "FRAMENUM", Value: int(f.Seq), Comment: "frame number since start"},
		{Name: "FRAMEID", Value: f.ID.String(), Comment: "unique frame identifier"},
		{Name: "DATACRC", Value: fmt.Sprintf("%08x", f.CRC), Comment: "CRC-32 of the pixel data"},
	}
	return append(cards, f.Cards...)
}

// WriteFits streams a fits file of one or more frames of equal size to w.
// 8-bit frames are written as BITPIX 8, deeper frames as BITPIX 16 with the
// usual BZERO offset.
func WriteFits(w io.Writer, metadata []fitsio.Card, frames []ccd.Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to write")
	}
	nframes := len(frames)
	width, height, bpp := frames[0].Width, frames[0].Height, frames[0].BPP
	bitpix := 8
	if bpp > 8 {
		bitpix = 16
		metadata = append(metadata, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	dims := []int{width, height}
	if nframes > 1 {
		dims = append(dims, nframes)
	}
	im := fitsio.NewImage(bitpix, dims)
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	npix := width * height
	if bitpix == 8 {
		buf := make([]byte, 0, npix*nframes)
		for _, f := range frames {
			if len(f.Pix) != npix {
				return fmt.Errorf("frame %d has %d bytes, expected %d", f.Seq, len(f.Pix), npix)
			}
			buf = append(buf, f.Pix...)
		}
		err = im.Write(buf)
	} else {
		ints := make([]int16, npix*nframes)
		offset := 0
		for _, f := range frames {
			if len(f.Pix) != 2*npix {
				return fmt.Errorf("frame %d has %d bytes, expected %d", f.Seq, len(f.Pix), 2*npix)
			}
			for idx := 0; idx < npix; idx++ {
				u := binary.BigEndian.Uint16(f.Pix[2*idx:])
				ints[offset+idx] = int16(int32(u) - 32768)
			}
			offset += npix
		}
		err = im.Write(ints)
	}
	if err != nil {
		return err
	}
	return fits.Write(im)
}
