package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/service"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

const (
	// imagesField is the multipart field uploaded product images arrive under.
	imagesField = "images"

	maxJSONBody = 1 << 20

	// maxFieldBytes caps a single non-file multipart field.
	maxFieldBytes = 1 << 20
)

// UploadConfig controls where multipart uploads are staged before they are
// moved into the image store.
type UploadConfig struct {
	TempDir  string
	MaxBytes int64
}

// readProductInput decodes a create or update payload from either a JSON body
// or a multipart form. Files staged while reading are returned even when an
// error occurs so the caller can discard them.
func readProductInput(w http.ResponseWriter, r *http.Request, cfg UploadConfig) (*service.ProductInput, []domain.UploadedFile, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxBytes)
		return readMultipart(r, cfg.TempDir)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, err
		}
		return nil, nil, apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return &in, nil, nil
}

// readMultipart streams the form parts of r. Every file under imagesField is
// written to tempDir under a random storage name in request order; other
// file parts are ignored.
func readMultipart(r *http.Request, tempDir string) (*service.ProductInput, []domain.UploadedFile, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, apperrors.InvalidInput("invalid multipart form: " + err.Error())
	}

	var (
		files  []domain.UploadedFile
		fields = make(map[string]string)
	)

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, files, multipartError(err)
		}

		name := part.FormName()
		switch {
		case part.FileName() != "":
			if name != imagesField {
				part.Close()
				continue
			}
			file, err := stageFile(part, tempDir)
			part.Close()
			if file.TempPath != "" {
				files = append(files, file)
			}
			if err != nil {
				return nil, files, err
			}
		case name != "":
			value, err := readField(part)
			part.Close()
			if err != nil {
				return nil, files, err
			}
			fields[name] = value
		default:
			part.Close()
		}
	}

	in, err := formInput(fields)
	if err != nil {
		return nil, files, err
	}
	in.Files = files
	return in, files, nil
}

// stageFile copies an uploaded part into tempDir. The returned file carries
// its temp path as soon as the file has been created.
func stageFile(part *multipart.Part, tempDir string) (domain.UploadedFile, error) {
	file := domain.UploadedFile{
		OriginalName: filepath.Base(part.FileName()),
		StorageName:  strings.ReplaceAll(uuid.NewString(), "-", ""),
	}

	dst, err := os.OpenFile(filepath.Join(tempDir, file.StorageName), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("create upload file: %w", err)
	}
	file.TempPath = dst.Name()

	if _, err := io.Copy(dst, part); err != nil {
		dst.Close()
		return file, multipartError(err)
	}
	if err := dst.Close(); err != nil {
		return file, fmt.Errorf("close upload file: %w", err)
	}
	return file, nil
}

// formInput converts multipart text fields into a ProductInput. Colors and
// sizes are passed through as raw text and decoded by the service.
func formInput(fields map[string]string) (*service.ProductInput, error) {
	in := &service.ProductInput{
		Name:        optional(fields, "name"),
		Description: optional(fields, "description"),
		Category:    optional(fields, "category"),
		Brands:      optional(fields, "brands"),
		Color:       optional(fields, "color"),
		Image:       optional(fields, "image"),
		Size:        optional(fields, "size"),
	}

	if v, ok := fields["price"]; ok && v != "" {
		price, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("price must be a valid integer")
		}
		in.Price = &price
	}
	if v, ok := fields["stock"]; ok && v != "" {
		stock, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, apperrors.InvalidInput("stock must be a valid integer")
		}
		in.Stock = &stock
	}
	if v, ok := fields["attributes"]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &in.Attributes); err != nil {
			return nil, apperrors.InvalidInput("invalid attributes format")
		}
	}
	if v, ok := fields["colors"]; ok {
		in.Colors = json.RawMessage(v)
	}
	if v, ok := fields["sizes"]; ok {
		in.Sizes = json.RawMessage(v)
	}

	return in, nil
}

func optional(fields map[string]string, key string) *string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	return &v
}

// readField reads a text part, rejecting values longer than maxFieldBytes.
func readField(part *multipart.Part) (string, error) {
	value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", multipartError(err)
	}
	if len(value) > maxFieldBytes {
		return "", apperrors.InvalidInput(fmt.Sprintf("field %q exceeds %d bytes", part.FormName(), maxFieldBytes))
	}
	return string(value), nil
}

func multipartError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return apperrors.InvalidInput("invalid multipart form: " + err.Error())
}

// discardUploads removes staged files the image store did not take over.
func discardUploads(l *slog.Logger, r *http.Request, files []domain.UploadedFile) {
	for _, f := range files {
		if err := os.Remove(f.TempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.WarnContext(r.Context(), "failed to remove staged upload",
				slog.String("path", f.TempPath),
				slog.String("error", err.Error()),
			)
		}
	}
}
