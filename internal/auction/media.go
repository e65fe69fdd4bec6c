package auction

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nishant/auction-app/backend/internal/apperrors"
)

const (
	maxFileSize = 50 << 20 // 50 MiB per file
	maxImages   = 5
)

// allowedTypes are the declared media types accepted for uploads. STL files
// are often sent as application/sla or a generic octet-stream, so the .stl
// filename suffix is accepted regardless of the declared type.
var allowedTypes = map[string]bool{
	"image/png":                true,
	"image/jpeg":               true,
	"image/jpg":                true,
	"image/webp":               true,
	"model/stl":                true,
	"model/amf":                true,
	"application/sla":          true,
	"application/octet-stream": true,
}

// FileStore defines the interface for media object storage.
type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
}

// Intake validates and stores uploaded auction media.
type Intake struct {
	files FileStore
}

func NewIntake(files FileStore) *Intake {
	return &Intake{files: files}
}

// StoreUploads validates every file part before storing any of them, so a
// single bad file aborts the whole request with nothing persisted. It
// returns the stored object keys: images in upload order, plus the 3D model
// key if one was sent.
func (i *Intake) StoreUploads(ctx context.Context, form *multipart.Form) (images []string, model3D string, err error) {
	imageParts := form.File["images"]
	modelParts := form.File["model3D"]

	if len(imageParts) > maxImages {
		return nil, "", fmt.Errorf("%w: at most %d images allowed", apperrors.ErrValidation, maxImages)
	}
	if len(modelParts) > 1 {
		return nil, "", fmt.Errorf("%w: at most one 3D model allowed", apperrors.ErrValidation)
	}

	all := append(append([]*multipart.FileHeader{}, imageParts...), modelParts...)
	for _, fh := range all {
		if err := validateFile(fh); err != nil {
			return nil, "", err
		}
	}

	var stored []string
	for _, fh := range all {
		key, err := i.store(ctx, fh)
		if err != nil {
			// Roll back anything already written.
			for _, k := range stored {
				i.files.Remove(ctx, k)
			}
			return nil, "", err
		}
		stored = append(stored, key)
	}

	images = stored[:len(imageParts)]
	if len(modelParts) > 0 {
		model3D = stored[len(stored)-1]
	}
	return images, model3D, nil
}

func (i *Intake) store(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	key := objectKey(fh.Filename)
	if err := i.files.Upload(ctx, key, f, fh.Size, contentTypeFor(fh)); err != nil {
		return "", fmt.Errorf("store upload %s: %w", fh.Filename, err)
	}
	return key, nil
}

func validateFile(fh *multipart.FileHeader) error {
	if fh.Size > maxFileSize {
		return fmt.Errorf("%w: %s exceeds the 50MB limit", apperrors.ErrPayloadTooLarge, fh.Filename)
	}
	if !allowedFile(fh.Header.Get("Content-Type"), fh.Filename) {
		return fmt.Errorf("%w: only images and 3D model files are allowed", apperrors.ErrUnsupportedMedia)
	}
	return nil
}

// allowedFile accepts a file if its declared type is on the allow list or
// its name ends in .stl.
func allowedFile(contentType, filename string) bool {
	if mt := strings.TrimSpace(strings.Split(contentType, ";")[0]); allowedTypes[mt] {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".stl")
}

func contentTypeFor(fh *multipart.FileHeader) string {
	if strings.HasSuffix(strings.ToLower(fh.Filename), ".stl") {
		return "model/stl"
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// objectKey names stored files by upload time plus a short random suffix,
// keeping the original extension.
func objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}
