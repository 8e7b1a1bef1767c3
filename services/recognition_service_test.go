package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/media"
	"github.com/Swastik2002/Smart-Attendance-System/models"
	"gorm.io/gorm"
)

type fakeMatcher struct {
	detections []media.Detection
	err        error
	blockOnCtx bool // simulate a matcher that never returns within budget
}

func (f *fakeMatcher) Detect(ctx context.Context, _ *media.Frame, _ media.GalleryIndex) ([]media.Detection, error) {
	if f.blockOnCtx {
		<-ctx.Done()
		return nil, media.ErrMatcherUnavailable
	}
	return f.detections, f.err
}

type fakeSecondary struct {
	detections []media.Detection
}

func (f *fakeSecondary) Detect(_ *media.Frame) []media.Detection {
	return f.detections
}

type acceptAllValidator struct{}

func (acceptAllValidator) Validate(_ *media.Frame, _ media.BoundingBox) bool { return true }

type rejectAllValidator struct{}

func (rejectAllValidator) Validate(_ *media.Frame, _ media.BoundingBox) bool { return false }

// fakeAnnotator records what it was asked to draw and returns a canned buffer.
type fakeAnnotator struct {
	drawn []media.ResolvedFace
}

func (f *fakeAnnotator) Annotate(_ *media.Frame, faces []media.ResolvedFace) ([]byte, error) {
	f.drawn = faces
	return []byte("jpeg"), nil
}

type fakeIndex struct {
	empty bool
}

func (f *fakeIndex) Nearest(_ []float32) (uint, float64, bool) { return 0, 0, false }
func (f *fakeIndex) Empty() bool                               { return f.empty }

type fakeStudentRepo struct {
	students map[uint]*models.Student
	err      error
}

func (f *fakeStudentRepo) Create(*models.Student) error { return nil }
func (f *fakeStudentRepo) GetByID(id uint) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}
func (f *fakeStudentRepo) ListAll() ([]models.Student, error)           { return nil, nil }
func (f *fakeStudentRepo) ListBySubject(uint) ([]models.Student, error) { return nil, nil }

func testFrame() *media.Frame {
	return &media.Frame{Width: 1280, Height: 720}
}

func primaryDet(x, y int, id uint, distance float64) media.Detection {
	return media.Detection{
		BBox:       media.BoundingBox{X: x, Y: y, W: 120, H: 150},
		IdentityID: &id,
		Distance:   distance,
		Confidence: media.Confidence(distance),
		Source:     media.SourcePrimary,
	}
}

func newTestService(matcher media.Matcher, secondary SecondaryDetector, students *fakeStudentRepo, attendance *fakeAttendanceRepo) (*RecognitionService, *fakeAnnotator) {
	annotator := &fakeAnnotator{}
	svc := NewRecognitionService(
		matcher, secondary, acceptAllValidator{}, annotator,
		&fakeIndex{}, students, attendance,
		0.40, 100*time.Millisecond,
	)
	return svc, annotator
}

func TestRecognizeEmptyGallery(t *testing.T) {
	svc := NewRecognitionService(
		&fakeMatcher{}, &fakeSecondary{}, acceptAllValidator{}, &fakeAnnotator{},
		&fakeIndex{empty: true}, &fakeStudentRepo{}, newFakeAttendanceRepo(),
		0.40, time.Second,
	)

	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected failure with an empty gallery")
	}
	if result.Message == "" {
		t.Error("expected an explanatory message")
	}
}

func TestRecognizeNoFaces(t *testing.T) {
	svc, _ := newTestService(&fakeMatcher{}, &fakeSecondary{}, &fakeStudentRepo{}, newFakeAttendanceRepo())

	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected failure with no detections")
	}
	if result.Message != "No face detected in the image." {
		t.Errorf("unexpected message: %q", result.Message)
	}
	// the operator still gets a preview of the frame
	if len(result.AnnotatedJPEG) == 0 {
		t.Error("expected a best-effort preview on the no-face outcome")
	}
}

func TestRecognizeThresholdBoundary(t *testing.T) {
	students := &fakeStudentRepo{students: map[uint]*models.Student{
		7: {ID: 7, Name: "Asha Patel"},
	}}

	tests := []struct {
		name       string
		distance   float64
		wantStatus string
		wantName   string
	}{
		{"below threshold matches", 0.39, "matched", "Asha Patel"},
		{"at threshold is unknown", 0.40, "unknown", "UNKNOWN"},
		{"above threshold is unknown", 0.50, "unknown", "UNKNOWN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, tc.distance)}}
			svc, _ := newTestService(matcher, &fakeSecondary{}, students, newFakeAttendanceRepo())

			result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Faces) != 1 {
				t.Fatalf("expected 1 face, got %d", len(result.Faces))
			}
			face := result.Faces[0]
			if face.Status != tc.wantStatus {
				t.Errorf("status = %q; want %q", face.Status, tc.wantStatus)
			}
			if face.StudentName != tc.wantName {
				t.Errorf("name = %q; want %q", face.StudentName, tc.wantName)
			}
			if tc.wantStatus == "unknown" && face.StudentID != nil {
				t.Error("unmatched face must not carry a student ID")
			}
		})
	}
}

func TestRecognizeNeverLeaksNearestName(t *testing.T) {
	// the detection knows its nearest identity, but the distance failed the
	// threshold, so the label stays UNKNOWN
	students := &fakeStudentRepo{students: map[uint]*models.Student{
		7: {ID: 7, Name: "Asha Patel"},
	}}
	matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, 0.65)}}
	svc, annotator := newTestService(matcher, &fakeSecondary{}, students, newFakeAttendanceRepo())

	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Faces[0].StudentName != "UNKNOWN" {
		t.Errorf("nearest name leaked: %q", result.Faces[0].StudentName)
	}
	if len(annotator.drawn) != 1 || annotator.drawn[0].DisplayName != "UNKNOWN" {
		t.Error("annotation label must be UNKNOWN for an unmatched face")
	}
}

func TestRecognizeNameFallbackOnStoreError(t *testing.T) {
	students := &fakeStudentRepo{err: errors.New("database gone")}
	matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, 0.20)}}
	svc, _ := newTestService(matcher, &fakeSecondary{}, students, newFakeAttendanceRepo())

	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	face := result.Faces[0]
	if face.Status != "matched" {
		t.Errorf("lookup failure must not demote the match, got %q", face.Status)
	}
	if face.StudentName != "ID 7" {
		t.Errorf("expected identifier fallback, got %q", face.StudentName)
	}
}

func TestRecognizeMatcherTimeoutDegrades(t *testing.T) {
	secondary := &fakeSecondary{detections: []media.Detection{
		{BBox: media.BoundingBox{X: 200, Y: 200, W: 100, H: 120}, Distance: 1.0, Source: media.SourceSecondary},
	}}
	svc, _ := newTestService(&fakeMatcher{blockOnCtx: true}, secondary, &fakeStudentRepo{}, newFakeAttendanceRepo())

	start := time.Now()
	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("expected degraded success, got error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("recognition did not respect the matcher budget: took %v", elapsed)
	}
	if len(result.Faces) != 1 {
		t.Fatalf("expected the secondary detection to survive, got %d faces", len(result.Faces))
	}
	if result.Faces[0].Status != "unknown" {
		t.Errorf("secondary-only detection must be unknown, got %q", result.Faces[0].Status)
	}
}

func TestRecognizeMergesAcrossDetectors(t *testing.T) {
	students := &fakeStudentRepo{students: map[uint]*models.Student{
		7: {ID: 7, Name: "Asha Patel"},
	}}
	matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, 0.20)}}
	secondary := &fakeSecondary{detections: []media.Detection{
		// overlaps the primary detection; must merge into one face
		{BBox: media.BoundingBox{X: 105, Y: 105, W: 120, H: 150}, Distance: 1.0, Source: media.SourceSecondary},
		// distinct face elsewhere
		{BBox: media.BoundingBox{X: 600, Y: 300, W: 100, H: 120}, Distance: 1.0, Source: media.SourceSecondary},
	}}
	svc, _ := newTestService(matcher, secondary, students, newFakeAttendanceRepo())

	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Faces) != 2 {
		t.Fatalf("expected 2 faces after merging, got %d", len(result.Faces))
	}

	matched, unknown := 0, 0
	for _, face := range result.Faces {
		switch face.Status {
		case "matched":
			matched++
			if face.StudentName != "Asha Patel" {
				t.Errorf("matched face has wrong name: %q", face.StudentName)
			}
		case "unknown":
			unknown++
		}
	}
	if matched != 1 || unknown != 1 {
		t.Errorf("expected 1 matched + 1 unknown, got %d/%d", matched, unknown)
	}
}

func TestRecognizeValidatorFiltersCandidates(t *testing.T) {
	matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, 0.20)}}
	annotator := &fakeAnnotator{}
	svc := NewRecognitionService(
		matcher, &fakeSecondary{}, rejectAllValidator{}, annotator,
		&fakeIndex{}, &fakeStudentRepo{}, newFakeAttendanceRepo(),
		0.40, time.Second,
	)

	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected no-face outcome when the validator rejects everything")
	}
}

func TestRecognizeFlagsAlreadyMarked(t *testing.T) {
	students := &fakeStudentRepo{students: map[uint]*models.Student{
		7: {ID: 7, Name: "Asha Patel"},
	}}
	attendance := newFakeAttendanceRepo()
	if err := attendance.Create(&models.Attendance{
		StudentID: 7, SubjectID: 2, Date: "2026-08-30",
		Status: models.AttendancePresent, Time: "09:00:00",
	}); err != nil {
		t.Fatal(err)
	}

	matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, 0.20)}}
	svc, annotator := newTestService(matcher, &fakeSecondary{}, students, attendance)

	result, err := svc.Recognize(context.Background(), testFrame(), 2, "2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	face := result.Faces[0]
	if face.Status != "already_marked" || !face.AlreadyMarked {
		t.Errorf("expected already_marked, got %+v", face)
	}
	if face.StudentName != "Asha Patel" {
		t.Errorf("already-marked face keeps its name, got %q", face.StudentName)
	}
	if annotator.drawn[0].Status != media.StatusAlreadyMarked {
		t.Error("annotation must use the already-marked style")
	}
}

func TestRecognizeSkipsLedgerWithoutSubject(t *testing.T) {
	students := &fakeStudentRepo{students: map[uint]*models.Student{
		7: {ID: 7, Name: "Asha Patel"},
	}}
	attendance := newFakeAttendanceRepo()
	if err := attendance.Create(&models.Attendance{
		StudentID: 7, SubjectID: 2, Date: "2026-08-30",
		Status: models.AttendancePresent, Time: "09:00:00",
	}); err != nil {
		t.Fatal(err)
	}

	matcher := &fakeMatcher{detections: []media.Detection{primaryDet(100, 100, 7, 0.20)}}
	svc, _ := newTestService(matcher, &fakeSecondary{}, students, attendance)

	// preview mode: no subject, no date, so no already-marked flagging
	result, err := svc.Recognize(context.Background(), testFrame(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Faces[0].Status != "matched" {
		t.Errorf("expected plain matched without ledger context, got %q", result.Faces[0].Status)
	}
}
