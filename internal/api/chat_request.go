package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	pkgapi "chat-backend/pkg/api"

	"github.com/gorilla/schema"
)

var chatFormDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// parseChatRequest normalizes the two encodings of a chat request. Browser
// clients with attachments send multipart/form-data; everything else sends
// JSON.
func parseChatRequest(r *http.Request, maxMemory int64) (pkgapi.ChatRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return parseMultipartChatRequest(r, maxMemory)
	}
	return ParseRequest[pkgapi.ChatRequest](r)
}

func parseMultipartChatRequest(r *http.Request, maxMemory int64) (pkgapi.ChatRequest, error) {
	var req pkgapi.ChatRequest

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return req, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}

	if err := chatFormDecoder.Decode(&req, r.MultipartForm.Value); err != nil {
		return req, CodedErrorf(http.StatusBadRequest, "unable to parse form fields: %v", err)
	}

	// The file part may arrive under either field name depending on the
	// client; only the first populated one is used.
	for _, field := range []string{"file", "image"} {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 || headers[0].Filename == "" {
			continue
		}
		header := headers[0]

		part, err := header.Open()
		if err != nil {
			return req, CodedErrorf(http.StatusBadRequest, "unable to open uploaded file: %v", err)
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return req, CodedErrorf(http.StatusBadRequest, "unable to read uploaded file: %v", err)
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
		}

		req.File = &pkgapi.InlineFile{
			Name:     filepath.Base(header.Filename),
			MimeType: mimeType,
			Data:     data,
		}
		break
	}

	return req, nil
}
