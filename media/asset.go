package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxFileSize caps a single image read into memory.
const MaxFileSize = 20 << 20

var (
	ErrEmptyFile = errors.New("file is empty")
	ErrNotImage  = errors.New("file is not an image")
	ErrTooLarge  = errors.New("file exceeds size limit")
)

// Asset is an image attached to the current draft.
type Asset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	// Payload is the standard base64 encoding of the image bytes.
	Payload string `json:"base64"`
	// URL is the renderable reference substituted into generated markup.
	URL  string `json:"previewUrl"`
	Size int64  `json:"size"`
}

// Bytes decodes the payload back into the raw image.
func (a Asset) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Payload)
}

// File is a user-selected file waiting to be decoded.
type File struct {
	Name     string
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// FromBytes wraps in-memory content as a File.
func FromBytes(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath wraps a file on disk. The media type is taken from the extension
// and confirmed by sniffing during decode.
func FromPath(path string) File {
	return File{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// DecodeFailure records a file that could not become an asset.
type DecodeFailure struct {
	Index int
	Name  string
	Err   error
}

func (f DecodeFailure) Error() string {
	return fmt.Sprintf("decode %s: %v", f.Name, f.Err)
}

func (f DecodeFailure) Unwrap() error { return f.Err }

// Decode reads f and builds an Asset with a fresh ID.
func Decode(f File) (Asset, error) {
	if f.Open == nil {
		return Asset{}, errors.New("file has no content source")
	}
	rc, err := f.Open()
	if err != nil {
		return Asset{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return Asset{}, err
	}
	if len(data) == 0 {
		return Asset{}, ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return Asset{}, ErrTooLarge
	}

	mimeType := detectType(f.MIMEType, data)
	if !strings.HasPrefix(mimeType, "image/") {
		return Asset{}, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}

	payload := base64.StdEncoding.EncodeToString(data)
	return Asset{
		ID:       uuid.NewString(),
		Name:     f.Name,
		MIMEType: mimeType,
		Payload:  payload,
		URL:      DataURI(mimeType, payload),
		Size:     int64(len(data)),
	}, nil
}

// DataURI builds a data: URL for a base64 payload.
func DataURI(mimeType, payload string) string {
	return "data:" + mimeType + ";base64," + payload
}

// detectType prefers the sniffed type; the declared type only wins when
// sniffing is inconclusive (e.g. SVG is reported as text/xml).
func detectType(declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	declared = strings.TrimSpace(strings.ToLower(declared))
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return sniffed
}
