package media

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when an uploaded buffer cannot be decoded.
var ErrInvalidImage = errors.New("media: invalid or undecodable image")

// Frame is a decoded in-memory raster. It owns the underlying Mat; callers
// must Close it when done. Frames are never persisted.
type Frame struct {
	Mat    gocv.Mat
	Width  int
	Height int
}

// DecodeFrame decodes an image byte buffer (JPEG/PNG) into a Frame.
func DecodeFrame(buf []byte) (*Frame, error) {
	if len(buf) == 0 {
		return nil, ErrInvalidImage
	}

	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrInvalidImage
	}

	return &Frame{
		Mat:    mat,
		Width:  mat.Cols(),
		Height: mat.Rows(),
	}, nil
}

// EncodeJPEG encodes the frame back to a compressed JPEG buffer.
func (f *Frame) EncodeJPEG() ([]byte, error) {
	if f == nil || f.Mat.Empty() {
		return nil, ErrInvalidImage
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Mat:    f.Mat.Clone(),
		Width:  f.Width,
		Height: f.Height,
	}
}

func (f *Frame) Close() {
	if f != nil && !f.Mat.Empty() {
		f.Mat.Close()
	}
}
