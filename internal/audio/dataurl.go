package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DataURL is a decoded RFC 2397 data URI.
type DataURL struct {
	MediaType string
	Data      []byte
}

// IsDataURL reports whether source is an inline data URI rather than a link.
func IsDataURL(source string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(source)), "data:")
}

// ParseDataURL decodes "data:[<mediatype>][;base64],<data>".
func ParseDataURL(source string) (DataURL, error) {
	source = strings.TrimSpace(source)
	if !IsDataURL(source) {
		return DataURL{}, errors.New("not a data URL")
	}

	meta, payload, ok := strings.Cut(source[len("data:"):], ",")
	if !ok {
		return DataURL{}, errors.New("data URL has no payload separator")
	}

	isBase64 := false
	params := strings.Split(meta, ";")
	mediaType := strings.TrimSpace(params[0])
	for _, param := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(param), "base64") {
			isBase64 = true
		}
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop the padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return DataURL{}, fmt.Errorf("invalid base64 data URL payload: %w", err)
			}
		}
		return DataURL{MediaType: mediaType, Data: data}, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return DataURL{}, fmt.Errorf("invalid data URL payload: %w", err)
	}
	return DataURL{MediaType: mediaType, Data: []byte(unescaped)}, nil
}
