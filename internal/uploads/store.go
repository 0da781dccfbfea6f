package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Errors returned when an uploaded file is rejected.
var (
	ErrTooLarge        = errors.New("uploaded file exceeds the size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// allowedTypes maps accepted image content types to the extension the stored
// file gets. Detection is done on file content, not the client-supplied name.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store keeps uploaded repair photos on the local filesystem. Files get
// random names so an upload can never clobber another user's photo, and are
// served back under the configured public path.
type Store struct {
	dir        string
	publicPath string
	maxSize    int64
}

// NewStore creates an upload store rooted at dir. Files are addressed
// publicly under publicPath (e.g. "/uploads"). maxSizeMB caps a single
// upload.
func NewStore(dir, publicPath string, maxSizeMB int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	return &Store{
		dir:        dir,
		publicPath: strings.TrimSuffix(publicPath, "/"),
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
	}, nil
}

// Save validates and stores an uploaded photo, returning its public URL path.
func (s *Store) Save(header *multipart.FileHeader) (string, error) {
	if header.Size > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, header.Size)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	// Sniff the real content type from the first bytes.
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	contentType := http.DetectContentType(head[:n])

	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	filename := uuid.NewString() + ext

	// Write through a temp file in the same directory so a crash mid-copy
	// never leaves a half-written photo behind.
	tmp, err := os.CreateTemp(s.dir, "upload_tmp_")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.CopyN(tmp, file, s.maxSize+1); err != nil && err != io.EOF {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if info, err := tmp.Stat(); err == nil && info.Size() > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, filename)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	return s.publicPath + "/" + filename, nil
}

// Remove deletes a stored photo by its public URL path. Unknown paths are
// ignored so deleting a repair without a photo is a no-op.
func (s *Store) Remove(publicURL string) error {
	if publicURL == "" || !strings.HasPrefix(publicURL, s.publicPath+"/") {
		return nil
	}

	// Only the final path element is trusted; this keeps traversal
	// sequences in a stored URL from escaping the uploads directory.
	name := path.Base(publicURL)
	if name == "." || name == "/" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dir returns the directory uploads are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// PublicPath returns the URL prefix uploads are served under.
func (s *Store) PublicPath() string {
	return s.publicPath
}
