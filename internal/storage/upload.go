package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jo-hoe/ocrmd/internal/common"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// sniffLen is how many leading bytes are used for content detection.
const sniffLen = 3072

// Uploader handles storing temporary uploads on disk.
type Uploader struct {
	baseDir string
}

// NewUploader creates an uploader that stores to baseDir/uploads.
func NewUploader(baseDir string) *Uploader {
	return &Uploader{baseDir: filepath.Join(baseDir, common.UploadsDirName)}
}

// SaveMultipart stores an uploaded file of any type to disk.
// It returns the file path, a cleanup function that deletes the file, and the sniffed mime type.
// The caller should always invoke the cleanup function when the file is no longer needed.
func (u *Uploader) SaveMultipart(fileHeader *multipart.FileHeader, maxBytes int64) (string, func() error, string, error) {
	if fileHeader == nil {
		return "", nil, "", fmt.Errorf("no file provided")
	}
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return "", nil, "", ErrTooLarge
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", nil, "", fmt.Errorf("open uploaded file: %w", err)
	}
	defer func() { _ = src.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	mimeType := sniffedType(detected, fileHeader)

	if err := os.MkdirAll(u.baseDir, 0o750); err != nil {
		return "", nil, "", fmt.Errorf("ensure uploads dir: %w", err)
	}
	ext := pickExtension(fileHeader.Filename, detected)
	dstPath := filepath.Join(u.baseDir, randomHex(16)+ext)

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", nil, "", fmt.Errorf("create tmp file: %w", err)
	}
	cleanup := func() error {
		return os.Remove(dstPath)
	}

	body := io.MultiReader(bytes.NewReader(head), src)
	limit := maxBytes
	if limit <= 0 {
		limit = 1<<63 - 1
	} else {
		limit++ // one extra byte tells us the limit was exceeded
	}
	written, copyErr := io.Copy(dst, io.LimitReader(body, limit))
	closeErr := dst.Close()
	switch {
	case copyErr != nil:
		_ = cleanup()
		return "", nil, "", fmt.Errorf("copy upload: %w", copyErr)
	case closeErr != nil:
		_ = cleanup()
		return "", nil, "", fmt.Errorf("close tmp file: %w", closeErr)
	case maxBytes > 0 && written > maxBytes:
		_ = cleanup()
		return "", nil, "", ErrTooLarge
	}
	return dstPath, cleanup, mimeType, nil
}

// sniffedType prefers content detection and falls back to the client header, then the file extension.
func sniffedType(detected *mimetype.MIME, fh *multipart.FileHeader) string {
	mt := detected.String()
	if !detected.Is("application/octet-stream") {
		return stripParams(mt)
	}
	if h := stripParams(fh.Header.Get("Content-Type")); h != "" && !strings.EqualFold(h, "application/octet-stream") {
		return strings.ToLower(h)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
		return stripParams(byExt)
	}
	return "application/octet-stream"
}

func stripParams(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

func pickExtension(original string, detected *mimetype.MIME) string {
	if ext := strings.ToLower(filepath.Ext(original)); ext != "" && len(ext) <= 8 {
		return ext
	}
	if ext := detected.Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
