package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultUploadsSubDir  = "students"
	DefaultPreviewsSubDir = "previews"
	DefaultExportsSubDir  = "exports"
)

const (
	defaultMatchThreshold   = 0.40
	defaultMatcherTimeoutMS = 15000
	defaultTrainQueueSize   = 100
	defaultNumTrainWorkers  = 2
	defaultMaxUploadSize    = 16 << 20
)

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // primary root for stored assets (uploads, previews, exports)
	UploadsPath      string // full-calculated path for enrollment photos
	PreviewsPath     string // full-calculated path for annotated previews
	ExportsPath      string // full-calculated path for CSV exports

	// recognition settings
	MatchThreshold float64       // cosine distance below which a face counts as matched
	MatcherTimeout time.Duration // budget for the embedding matcher per image
	MaxUploadSize  int64

	// face detection / embedding model paths (DNN)
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	EmbeddingModelPath   string
	EmbeddingModelName   string
	FaceCascadePath      string
	EyeCascadePath       string

	// training worker settings
	TrainQueueSize  int
	NumTrainWorkers int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "attendance.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "face_data"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	absUploadsPath := filepath.Join(absMediaStorage, uploadsSubDir)

	previewsSubDir := getEnvOrDefault("PREVIEWS_SUBDIR", DefaultPreviewsSubDir)
	absPreviewsPath := filepath.Join(absMediaStorage, previewsSubDir)

	exportsSubDir := getEnvOrDefault("EXPORTS_SUBDIR", DefaultExportsSubDir)
	absExportsPath := filepath.Join(absMediaStorage, exportsSubDir)

	threshold := getEnvFloatOrDefault("MATCH_THRESHOLD", defaultMatchThreshold)
	matcherTimeoutMS := getEnvIntOrDefault("MATCHER_TIMEOUT_MS", defaultMatcherTimeoutMS)
	maxUpload := getEnvIntOrDefault("MAX_UPLOAD_SIZE", defaultMaxUploadSize)

	faceDNNConfig := getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt")
	faceDNNModel := getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel")
	embeddingModel := getEnvOrDefault("EMBEDDING_MODEL_PATH", "./models/arcface.onnx")
	embeddingName := getEnvOrDefault("EMBEDDING_MODEL_NAME", "arcface")
	faceCascade := getEnvOrDefault("FACE_CASCADE_PATH", "./models/haarcascade_frontalface_default.xml")
	eyeCascade := getEnvOrDefault("EYE_CASCADE_PATH", "./models/haarcascade_eye.xml")

	queueSize := getEnvIntOrDefault("TRAIN_QUEUE_SIZE", defaultTrainQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_TRAIN_WORKERS", defaultNumTrainWorkers)

	cfg := Config{
		DatabasePath:         dbPath,
		MediaStoragePath:     absMediaStorage,
		UploadsPath:          absUploadsPath,
		PreviewsPath:         absPreviewsPath,
		ExportsPath:          absExportsPath,
		MatchThreshold:       threshold,
		MatcherTimeout:       time.Duration(matcherTimeoutMS) * time.Millisecond,
		MaxUploadSize:        int64(maxUpload),
		FaceDNNNetConfigPath: faceDNNConfig,
		FaceDNNNetModelPath:  faceDNNModel,
		EmbeddingModelPath:   embeddingModel,
		EmbeddingModelName:   embeddingName,
		FaceCascadePath:      faceCascade,
		EyeCascadePath:       eyeCascade,
		TrainQueueSize:       queueSize,
		NumTrainWorkers:      numWorkers,
	}

	return cfg, nil
}
