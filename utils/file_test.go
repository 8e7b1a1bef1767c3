package utils

import "testing"

func TestIsRasterImage(t *testing.T) {
	tests := []struct {
		filename string
		expected bool
	}{
		{"photo.jpg", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"scan.png", true},
		{"scan.tiff", true},
		{"clip.mp4", false},
		{"notes.txt", false},
		{"archive.zip", false},
		{"noextension", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			if got := IsRasterImage(tc.filename); got != tc.expected {
				t.Errorf("IsRasterImage(%q) = %v; want %v", tc.filename, got, tc.expected)
			}
		})
	}
}
