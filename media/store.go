package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AssetType names a class of stored blobs.
type AssetType string

const (
	AssetTypeEnrollment AssetType = "enrollment" // uploaded student photos
	AssetTypePreview    AssetType = "preview"    // annotated recognition previews
	AssetTypeExport     AssetType = "export"     // generated CSV exports
)

// Store is the blob store for uploaded images and generated assets
type Store interface {
	// Save stores data from reader; an empty filenameHint generates a UUID
	// name with the given extension. Returns the relative path used.
	Save(assetType AssetType, relativeDirHint, filenameHint string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes an asset
	Delete(relativePath string) error
	// GetFullPath returns the absolute filesystem path for a relative asset path
	GetFullPath(relativePath string) (string, error)
	// EnsureDir makes sure a specific asset type directory exists
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string
	resolvedPathMap map[AssetType]string
}

// NewLocalStorage creates a new local filesystem store rooted at basePath,
// with one subdirectory per asset type.
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !strings.HasPrefix(filepath.Clean(fullPath), absBasePath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
	}, nil
}

func (ls *LocalStorage) assetTypeDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		dirPath = filepath.Join(ls.basePath, string(assetType))
		if !strings.HasPrefix(filepath.Clean(dirPath), ls.basePath) {
			return "", fmt.Errorf("asset type '%s' resolves outside base path", assetType)
		}
		ls.resolvedPathMap[assetType] = dirPath
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.assetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// Save data to the store. relativeDirHint allows further structure within the
// asset type's directory (e.g. a student ID).
func (ls *LocalStorage) Save(assetType AssetType, relativeDirHint, filenameHint string, data io.Reader) (string, error) {
	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}

	targetDir := baseAssetDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseAssetDir, relativeDirHint)
		if !strings.HasPrefix(filepath.Clean(targetDir), baseAssetDir) {
			return "", fmt.Errorf("invalid relative directory hint '%s'", relativeDirHint)
		}
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create sub-directory '%s': %w", targetDir, err)
		}
	}

	finalFilename := filenameHint
	if finalFilename == "" {
		finalFilename = uuid.NewString() + ".jpg"
	}

	fullSavePath := filepath.Join(targetDir, finalFilename)

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relPath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path for '%s': %w", fullSavePath, err)
	}
	return filepath.ToSlash(relPath), nil
}

// Get retrieves a reader for an asset
func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	return f, info, nil
}

// Delete removes an asset
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	return nil
}

// GetFullPath returns the absolute filesystem path for a relative asset path
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relativePath))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid relative asset path '%s'", relativePath)
	}
	return filepath.Join(ls.basePath, cleaned), nil
}
