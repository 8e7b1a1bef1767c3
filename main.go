package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/config"
	"github.com/Swastik2002/Smart-Attendance-System/database"
	"github.com/Swastik2002/Smart-Attendance-System/gallery"
	"github.com/Swastik2002/Smart-Attendance-System/handlers"
	"github.com/Swastik2002/Smart-Attendance-System/media"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"github.com/Swastik2002/Smart-Attendance-System/services"
	"github.com/Swastik2002/Smart-Attendance-System/workers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.UploadsPath, cfg.PreviewsPath, cfg.ExportsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeEnrollment: filepath.Base(cfg.UploadsPath),
		media.AssetTypePreview:    filepath.Base(cfg.PreviewsPath),
		media.AssetTypeExport:     filepath.Base(cfg.ExportsPath),
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}

	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	galleryRepo := repository.NewGalleryRepository(db)

	faceGallery := gallery.New()
	stored, err := galleryRepo.ListAll()
	if err != nil {
		log.Fatalf("FATAL: Failed to load gallery embeddings: %v", err)
	}
	entries := make([]gallery.Entry, 0, len(stored))
	for _, row := range stored {
		entries = append(entries, gallery.Entry{
			StudentID:  row.StudentID,
			Embedding:  row.GetEmbedding(),
			SourceHash: row.SourceHash,
		})
	}
	faceGallery.Load(entries)

	faceDetector := media.NewDNNFaceDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath)
	defer faceDetector.Close()
	embedder := media.NewEmbeddingModel(cfg.EmbeddingModelPath, cfg.EmbeddingModelName)
	defer embedder.Close()
	cascadeDetector := media.NewCascadeFaceDetector(cfg.FaceCascadePath)
	defer cascadeDetector.Close()
	eyeDetector := media.NewCascadeEyeDetector(cfg.EyeCascadePath)
	defer eyeDetector.Close()

	matcher := media.NewDNNMatcher(faceDetector, embedder)
	validator := media.NewValidator(eyeDetector)
	annotator := media.NewAnnotator()

	attendanceService := services.NewAttendanceService(attendanceRepo)
	recognitionService := services.NewRecognitionService(
		matcher, cascadeDetector, validator, annotator, faceGallery,
		studentRepo, attendanceRepo,
		cfg.MatchThreshold, cfg.MatcherTimeout,
	)
	trainingService := services.NewTrainingService(
		studentRepo, galleryRepo, faceGallery,
		faceDetector, embedder, cfg.UploadsPath,
	)

	log.Printf("Initializing training worker pool (Workers: %d, Queue Size: %d)...", cfg.NumTrainWorkers, cfg.TrainQueueSize)
	trainingProcessor := workers.NewTrainingProcessor(trainingService, cfg.TrainQueueSize, cfg.NumTrainWorkers)
	defer trainingProcessor.Stop()

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing enrollment photos in: %s", cfg.UploadsPath)
	log.Printf("Match threshold (cosine distance): %.2f", cfg.MatchThreshold)
	log.Printf("Gallery loaded: %d embedding(s), %d identit(ies)", faceGallery.Size(), faceGallery.Identities())

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	studentHandler := &handlers.StudentHandler{
		Students:      studentRepo,
		Enrollments:   enrollmentRepo,
		Trainer:       trainingService,
		TrainingQueue: trainingProcessor,
		MaxUploadSize: cfg.MaxUploadSize,
	}
	subjectHandler := &handlers.SubjectHandler{Subjects: subjectRepo}
	attendanceHandler := &handlers.AttendanceHandler{
		Attendance:    attendanceService,
		Recognition:   recognitionService,
		Subjects:      subjectRepo,
		Enrollments:   enrollmentRepo,
		Store:         mediaStore,
		MaxUploadSize: cfg.MaxUploadSize,
	}
	faceHandler := &handlers.FaceHandler{
		Students:      studentRepo,
		GalleryRepo:   galleryRepo,
		Gallery:       faceGallery,
		TrainingQueue: trainingProcessor,
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Post("/", studentHandler.CreateStudent)
			r.Get("/", studentHandler.ListStudents)
			r.Route("/{student_id}", func(r chi.Router) {
				r.Get("/", studentHandler.GetStudent)
				r.Get("/attendance", attendanceHandler.StudentSummary)
				r.Post("/train", faceHandler.TrainStudent)
			})
		})

		r.Route("/subjects", func(r chi.Router) {
			r.Post("/", subjectHandler.CreateSubject)
			r.Get("/", subjectHandler.ListSubjects)
			r.Route("/{subject_id}", func(r chi.Router) {
				r.Get("/students", studentHandler.ListStudentsBySubject)
				r.Get("/attendance/dates", attendanceHandler.ListDates)
				r.Get("/attendance", attendanceHandler.ListForDate)
				r.Get("/attendance/export", attendanceHandler.ExportCSV)
			})
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/mark", attendanceHandler.Mark)
			r.Post("/mark_from_face", attendanceHandler.MarkFromFace)
			r.Post("/submit", attendanceHandler.Submit)
			// query-param variants: ?subject_id= (+ ?date= for the listing)
			r.Get("/", attendanceHandler.ListForDate)
			r.Get("/dates", attendanceHandler.ListDates)
			r.Get("/export", attendanceHandler.ExportCSV)
			r.Get("/summary", attendanceHandler.StudentSummary)
			r.Put("/{attendance_id}", attendanceHandler.Update)
		})

		r.Route("/faces", func(r chi.Router) {
			r.Post("/train/{student_id}", faceHandler.TrainStudent)
			r.Post("/train_all", faceHandler.TrainAll)
			r.Get("/gallery", faceHandler.GalleryStatus)
			r.Post("/recognize", faceHandler.Recognize(recognitionService, cfg.MaxUploadSize))
		})

		previewSubDir := filepath.Base(cfg.PreviewsPath)
		r.Get(fmt.Sprintf("/%s/*", previewSubDir), handlers.AssetServer(cfg.MediaStoragePath, previewSubDir))
		log.Printf("Registered preview server at /api/%s/*", previewSubDir)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
