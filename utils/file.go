package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// maxEnrollmentDim caps stored enrollment photos; anything larger gets
// downscaled so training never chews on multi-megapixel originals.
const maxEnrollmentDim = 1600

// SaveEnrollmentImage normalizes an uploaded student photo and writes it into
// targetDir with a UUID filename: EXIF orientation is applied, oversized
// images are fit within maxEnrollmentDim, and everything is re-encoded as
// JPEG. Returns the full path where the image was saved.
func SaveEnrollmentImage(sourcePath, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create enrollment directory %s: %w", targetDir, err)
	}

	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", sourcePath, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxEnrollmentDim || bounds.Dy() > maxEnrollmentDim {
		img = imaging.Fit(img, maxEnrollmentDim, maxEnrollmentDim, imaging.Lanczos)
	}

	photoUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for enrollment photo: %w", err)
	}
	savePath := filepath.Join(targetDir, photoUUID.String()+".jpg")

	if err := imaging.Save(img, savePath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("failed to save enrollment photo to %s: %w", savePath, err)
	}

	return savePath, nil
}
