package orient

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// jpegtran transforms whole MCU blocks. The block is 8 DCT samples scaled by
// the frame's maximum sampling factor per axis: 16x16 for common 4:2:0
// images, 8x8 when nothing is subsampled. Anything at the trailing edges
// that doesn't fill a block cannot move losslessly.

// mcuSize reads the frame header of a JPEG file and returns its MCU width
// and height in pixels.
func mcuSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return readMCU(bufio.NewReader(f))
}

func readMCU(r *bufio.Reader) (int, int, error) {
	var soi [2]byte
	if _, err := io.ReadFull(r, soi[:]); err != nil {
		return 0, 0, err
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return 0, 0, fmt.Errorf("not a JPEG stream")
	}

	for {
		marker, err := nextMarker(r)
		if err != nil {
			return 0, 0, err
		}
		switch {
		case marker == 0xD9 || marker == 0xDA:
			return 0, 0, fmt.Errorf("no frame header before scan data")
		case isFrameMarker(marker):
			return readFrameSampling(r)
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			// Standalone markers carry no payload.
		default:
			if err := skipSegment(r); err != nil {
				return 0, 0, err
			}
		}
	}
}

// nextMarker scans to the next marker byte, tolerating fill bytes.
func nextMarker(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			continue
		}
		for b == 0xFF {
			if b, err = r.ReadByte(); err != nil {
				return 0, err
			}
		}
		if b == 0x00 {
			// Stuffed data byte, not a marker.
			continue
		}
		return b, nil
	}
}

// isFrameMarker reports whether marker is one of the SOF variants. 0xC4,
// 0xC8, and 0xCC share the range but are not frame headers.
func isFrameMarker(marker byte) bool {
	if marker < 0xC0 || marker > 0xCF {
		return false
	}
	return marker != 0xC4 && marker != 0xC8 && marker != 0xCC
}

func skipSegment(r *bufio.Reader) error {
	length, err := readUint16(r)
	if err != nil {
		return err
	}
	if length < 2 {
		return fmt.Errorf("invalid segment length %d", length)
	}
	_, err = r.Discard(int(length) - 2)
	return err
}

// readFrameSampling parses a SOF segment past its marker and derives the MCU
// dimensions from the components' maximum sampling factors.
func readFrameSampling(r *bufio.Reader) (int, int, error) {
	if _, err := readUint16(r); err != nil { // segment length
		return 0, 0, err
	}
	// precision, height, width
	if _, err := r.Discard(5); err != nil {
		return 0, 0, err
	}
	ncomp, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	if ncomp == 0 || ncomp > 4 {
		return 0, 0, fmt.Errorf("invalid component count %d", ncomp)
	}

	maxH, maxV := 1, 1
	for c := 0; c < int(ncomp); c++ {
		var comp [3]byte // id, sampling factors, quant table
		if _, err := io.ReadFull(r, comp[:]); err != nil {
			return 0, 0, err
		}
		h := int(comp[1] >> 4)
		v := int(comp[1] & 0x0F)
		if h < 1 || h > 4 || v < 1 || v > 4 {
			return 0, 0, fmt.Errorf("invalid sampling factors %dx%d", h, v)
		}
		if h > maxH {
			maxH = h
		}
		if v > maxV {
			maxV = v
		}
	}
	return 8 * maxH, 8 * maxV, nil
}

func readUint16(r *bufio.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// transformSafe reports whether the transform for an orientation value is
// lossless for a w x h image with the given MCU geometry. Each transform
// only disturbs the edges it relocates: a 90 degree rotation moves the
// bottom edge, so only the height must align; transposition moves nothing.
func transformSafe(orientation, w, h, mcuW, mcuH int) bool {
	switch orientation {
	case 2: // horizontal flip
		return w%mcuW == 0
	case 4: // vertical flip
		return h%mcuH == 0
	case 5: // transpose
		return true
	case 6: // rotate 90
		return h%mcuH == 0
	case 8: // rotate 270
		return w%mcuW == 0
	case 3, 7: // rotate 180, transverse
		return w%mcuW == 0 && h%mcuH == 0
	}
	return false
}
