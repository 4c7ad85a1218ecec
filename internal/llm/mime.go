package llm

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const mimeOctetStream = "application/octet-stream"

// DetectMIME returns the media type of data without parameters (no charset).
func DetectMIME(name string, data []byte) string {
	mt := stripParams(mimetype.Detect(data).String())
	if mt != "" && mt != mimeOctetStream {
		return mt
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if byExt := stripParams(mime.TypeByExtension(ext)); byExt != "" {
			return byExt
		}
	}
	return mimeOctetStream
}

func stripParams(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// DataURL encodes the attachment as a base64 data URL, the form chat completion
// APIs accept for inline images.
func (a Attachment) DataURL() string {
	mt := strings.TrimSpace(a.MIME)
	if mt == "" {
		mt = mimeOctetStream
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}
