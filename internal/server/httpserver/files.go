package httpserver

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/gabriel-vasile/mimetype"
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// sniffLen is how much of the object is read to detect an unknown type.
const sniffLen = 3072

// inlineTypes are the only content types served inline.
var inlineTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// writeFile streams obj to w. The content type comes from the file extension,
// or is detected from the first bytes when the extension is not an image one.
// Anything that is not a raster image is sent as an octet-stream attachment.
func writeFile(w http.ResponseWriter, name string, obj *storage.Object) error {
	body := io.Reader(obj.Body)

	ctype, ok := imageTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(obj.Body, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		head = head[:n]
		ctype = mimetype.Detect(head).String()
		body = io.MultiReader(bytes.NewReader(head), obj.Body)
	}

	disposition := "inline"
	if !inlineTypes[ctype] {
		ctype = "application/octet-stream"
		disposition = "attachment"
	}

	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Content-Disposition", disposition)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "public, max-age=3600")
	if obj.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	_, err := io.Copy(w, body)
	return err
}
