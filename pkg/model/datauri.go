package model

import (
	"encoding/base64"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const defaultImageMIME = "image/png"

var supportedImageMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
}

// FormatDataURI builds an inline image data URI from a MIME type and raw
// bytes. An empty MIME type falls back to image/png.
func FormatDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits an inline image data URI into its MIME type and
// decoded payload. Unsupported or undetectable MIME types fall back to
// image/png. A string without a data: prefix is treated as a bare base64
// payload.
func ParseDataURI(uri string) (string, []byte, error) {
	mimeType := defaultImageMIME
	payload := uri

	if strings.HasPrefix(uri, "data:") {
		comma := strings.IndexByte(uri, ',')
		if comma < 0 {
			return "", nil, goerr.New("data URI has no payload")
		}
		header := uri[len("data:"):comma]
		payload = uri[comma+1:]

		if semi := strings.IndexByte(header, ';'); semi >= 0 {
			header = header[:semi]
		}
		if supportedImageMIMEs[header] {
			mimeType = header
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to decode image payload")
	}

	return mimeType, data, nil
}
