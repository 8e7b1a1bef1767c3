package media

// OverlapThreshold is the bounding-box IoU above which two detections from
// independent detectors are considered the same physical face.
const OverlapThreshold = 0.45

// MergeOverlapping deduplicates detections whose bounding boxes overlap with
// IoU above OverlapThreshold, keeping one detection per physical face. When
// two overlapping detections are compared the kept one is chosen by, in
// order: a matched detection beats an unmatched one, then higher confidence
// wins; ties keep the first-encountered detection. The result is
// deterministic for identical input order and every surviving bounding box
// was present in the input.
func MergeOverlapping(detections []Detection, threshold float64) []Detection {
	if len(detections) <= 1 {
		return detections
	}

	merged := make([]Detection, 0, len(detections))
	used := make([]bool, len(detections))

	for i := 0; i < len(detections); i++ {
		if used[i] {
			continue
		}

		best := detections[i]
		used[i] = true

		for j := i + 1; j < len(detections); j++ {
			if used[j] {
				continue
			}
			if best.BBox.IoU(detections[j].BBox) <= OverlapThreshold {
				continue
			}
			used[j] = true
			if prefer(detections[j], best, threshold) {
				best = detections[j]
			}
		}

		merged = append(merged, best)
	}

	return merged
}

// prefer reports whether candidate should replace current. Strictly better
// only; equal candidates keep the earlier detection stable.
func prefer(candidate, current Detection, threshold float64) bool {
	cm, bm := candidate.MatchedAt(threshold), current.MatchedAt(threshold)
	if cm != bm {
		return cm
	}
	return candidate.Confidence > current.Confidence
}
