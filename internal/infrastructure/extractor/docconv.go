package extractor

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv"
)

var docconvMimeTypes = map[string]string{
	".odt":  "application/vnd.oasis.opendocument.text",
	".html": "text/html",
	".htm":  "text/html",
	// RTF conversion shells out to unrtf, which must be on PATH.
	".rtf": "application/rtf",
}

func extractWithDocconv(data []byte, ext string) (string, error) {
	mimeType, ok := docconvMimeTypes[ext]
	if !ok {
		return "", fmt.Errorf("no converter for %q", ext)
	}
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", ext, err)
	}
	return res.Body, nil
}
