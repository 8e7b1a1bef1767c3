package utils

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// TakenAt extracts the EXIF capture timestamp from an image stream, as a Unix
// timestamp. Returns nil when the image has no usable EXIF date; enrollment
// photos from screenshots or exports routinely lack one, so the absence is
// not an error.
func TakenAt(r io.Reader) *int64 {
	exifData, err := exif.Decode(r)
	if err != nil {
		return nil
	}

	dt, err := exifData.DateTime()
	if err != nil {
		return nil
	}

	ts := dt.Unix()
	return &ts
}
