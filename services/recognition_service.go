package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/media"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"gorm.io/gorm"
)

// SecondaryDetector is the coarse, identity-agnostic detector run alongside
// the embedding matcher.
type SecondaryDetector interface {
	Detect(f *media.Frame) []media.Detection
}

// FaceValidator filters out implausible face candidates before merging.
type FaceValidator interface {
	Validate(f *media.Frame, bbox media.BoundingBox) bool
}

// FrameAnnotator renders resolved faces onto a frame and encodes the result.
type FrameAnnotator interface {
	Annotate(f *media.Frame, faces []media.ResolvedFace) ([]byte, error)
}

// FaceResult is one recognized face in a classroom image, shaped for the
// API. Error is set when the face matched but its ledger write failed; the
// student was not recorded and the request can be retried.
type FaceResult struct {
	StudentID     *uint             `json:"student_id,omitempty"`
	StudentName   string            `json:"student_name"`
	Confidence    float64           `json:"confidence"`
	BBox          media.BoundingBox `json:"bbox"`
	Status        string            `json:"status"`
	AlreadyMarked bool              `json:"already_marked"`
	Error         string            `json:"error,omitempty"`
}

// RecognitionResult is the outcome of running the full pipeline on one image.
type RecognitionResult struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message,omitempty"`
	Faces         []FaceResult `json:"results"`
	AnnotatedJPEG []byte       `json:"-"`
}

// RecognitionService runs the face recognition pipeline: primary embedding
// match and secondary cascade scan in parallel, candidate validation, overlap
// merging, identity resolution and annotation. All collaborators are
// interfaces so the pipeline logic is exercisable without loaded models.
type RecognitionService struct {
	matcher    media.Matcher
	secondary  SecondaryDetector
	validator  FaceValidator
	annotator  FrameAnnotator
	index      media.GalleryIndex
	students   repository.StudentRepositoryInterface
	attendance repository.AttendanceRepositoryInterface

	threshold      float64
	matcherTimeout time.Duration
}

func NewRecognitionService(
	matcher media.Matcher,
	secondary SecondaryDetector,
	validator FaceValidator,
	annotator FrameAnnotator,
	index media.GalleryIndex,
	students repository.StudentRepositoryInterface,
	attendance repository.AttendanceRepositoryInterface,
	threshold float64,
	matcherTimeout time.Duration,
) *RecognitionService {
	return &RecognitionService{
		matcher:        matcher,
		secondary:      secondary,
		validator:      validator,
		annotator:      annotator,
		index:          index,
		students:       students,
		attendance:     attendance,
		threshold:      threshold,
		matcherTimeout: matcherTimeout,
	}
}

// RecognizeBytes decodes an uploaded image buffer and runs Recognize on it.
func (s *RecognitionService) RecognizeBytes(ctx context.Context, imageData []byte, subjectID uint, date string) (*RecognitionResult, error) {
	frame, err := media.DecodeFrame(imageData)
	if err != nil {
		return nil, err
	}
	defer frame.Close()
	return s.Recognize(ctx, frame, subjectID, date)
}

// Recognize runs the pipeline over a decoded frame. subjectID and date are
// optional; when both are set, faces whose student already has a record for
// that (subject, date) are flagged and drawn as already marked. The input
// frame is not modified or closed.
func (s *RecognitionService) Recognize(ctx context.Context, frame *media.Frame, subjectID uint, date string) (*RecognitionResult, error) {
	if s.index == nil || s.index.Empty() {
		return &RecognitionResult{
			Success: false,
			Message: "No trained faces in gallery. Train students first.",
			Faces:   []FaceResult{},
		}, nil
	}

	primary, secondary := s.detectConcurrently(ctx, frame)

	candidates := make([]media.Detection, 0, len(primary)+len(secondary))
	for _, det := range append(primary, secondary...) {
		if s.validator == nil || s.validator.Validate(frame, det.BBox) {
			candidates = append(candidates, det)
		}
	}

	merged := media.MergeOverlapping(candidates, s.threshold)
	if len(merged) == 0 {
		result := &RecognitionResult{
			Success: false,
			Message: "No face detected in the image.",
			Faces:   []FaceResult{},
		}
		// best-effort preview so the operator can see what the camera saw
		if preview, err := s.annotator.Annotate(frame, nil); err == nil {
			result.AnnotatedJPEG = preview
		}
		return result, nil
	}

	resolved := s.resolve(merged, subjectID, date)

	annotated, err := s.annotator.Annotate(frame, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate frame: %w", err)
	}

	result := &RecognitionResult{
		Success:       true,
		Faces:         make([]FaceResult, 0, len(resolved)),
		AnnotatedJPEG: annotated,
	}
	for _, face := range resolved {
		result.Faces = append(result.Faces, FaceResult{
			StudentID:     face.StudentID,
			StudentName:   face.DisplayName,
			Confidence:    face.Detection.Confidence,
			BBox:          face.BBox,
			Status:        face.Status.String(),
			AlreadyMarked: face.Status == media.StatusAlreadyMarked,
		})
	}
	return result, nil
}

// detectConcurrently runs both detectors in parallel. The matcher gets its
// own deadline; when it is unavailable or out of budget the pipeline degrades
// to the secondary detections alone instead of failing the request.
func (s *RecognitionService) detectConcurrently(ctx context.Context, frame *media.Frame) ([]media.Detection, []media.Detection) {
	var (
		wg        sync.WaitGroup
		primary   []media.Detection
		secondary []media.Detection
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.matcher == nil {
			return
		}
		matchCtx, cancel := context.WithTimeout(ctx, s.matcherTimeout)
		defer cancel()

		detections, err := s.matcher.Detect(matchCtx, frame, s.index)
		if err != nil {
			if errors.Is(err, media.ErrMatcherUnavailable) {
				log.Printf("recognition: matcher unavailable, continuing with secondary detections: %v", err)
			} else {
				log.Printf("recognition: matcher failed: %v", err)
			}
			return
		}
		primary = detections
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.secondary == nil {
			return
		}
		secondary = s.secondary.Detect(frame)
	}()

	wg.Wait()
	return primary, secondary
}

// resolve turns merged detections into display-ready faces. Unmatched faces
// are always labeled "UNKNOWN"; the nearest identity of a failed match must
// never leak into the label.
func (s *RecognitionService) resolve(detections []media.Detection, subjectID uint, date string) []media.ResolvedFace {
	faces := make([]media.ResolvedFace, 0, len(detections))
	for _, det := range detections {
		face := media.ResolvedFace{
			Detection:   det,
			DisplayName: "UNKNOWN",
			Status:      media.StatusUnknown,
		}

		if det.MatchedAt(s.threshold) {
			sid := *det.IdentityID
			face.StudentID = &sid
			face.Status = media.StatusMatched
			face.DisplayName = s.displayName(sid)

			if subjectID != 0 && date != "" && s.alreadyMarked(sid, subjectID, date) {
				face.Status = media.StatusAlreadyMarked
			}
		}

		faces = append(faces, face)
	}
	return faces
}

func (s *RecognitionService) displayName(studentID uint) string {
	student, err := s.students.GetByID(studentID)
	if err != nil {
		log.Printf("recognition: failed to look up student %d: %v", studentID, err)
		return fmt.Sprintf("ID %d", studentID)
	}
	return student.Name
}

func (s *RecognitionService) alreadyMarked(studentID, subjectID uint, date string) bool {
	if s.attendance == nil {
		return false
	}
	att, err := s.attendance.GetByKey(studentID, subjectID, date)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("recognition: attendance lookup failed for student %d: %v", studentID, err)
		}
		return false
	}
	return att != nil
}
