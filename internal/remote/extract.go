package remote

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// URLFields lists the object fields searched for a media URL, in priority order.
var URLFields = []string{
	"url",
	"video_url",
	"videoUrl",
	"output",
	"result",
	"image_url",
	"imageUrl",
	"image",
	"video",
}

// maxDepth bounds the recursion into nested response values.
const maxDepth = 8

// ExtractURL locates the media URL in a provider response. Shapes are tried
// in a fixed order: binary payload (returned as a base64 data URL), raw or
// JSON string, JSON array, then JSON object fields in URLFields order.
func ExtractURL(body []byte, contentType string) (string, error) {
	if isBinary(contentType) {
		if len(body) == 0 {
			return "", fmt.Errorf("%w: empty %s payload", ErrResponseShape, contentType)
		}
		return DataURL(contentType, body), nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrResponseShape)
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		// Plain-text bodies carrying a bare URL.
		if s := string(trimmed); isURL(s) {
			return s, nil
		}
		return "", fmt.Errorf("%w: body is neither JSON nor a URL", ErrResponseShape)
	}

	return URLFromValue(v)
}

// URLFromValue locates a media URL in an already decoded JSON value.
func URLFromValue(v any) (string, error) {
	if u, ok := findURL(v, 0); ok {
		return u, nil
	}
	return "", fmt.Errorf("%w: no URL in %s", ErrResponseShape, describe(v))
}

func findURL(v any, depth int) (string, bool) {
	if depth > maxDepth {
		return "", false
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, isURL(s)
	case []any:
		for _, item := range t {
			if u, ok := findURL(item, depth+1); ok {
				return u, true
			}
		}
	case map[string]any:
		for _, field := range URLFields {
			if item, ok := t[field]; ok {
				if u, ok := findURL(item, depth+1); ok {
					return u, true
				}
			}
		}
	}
	return "", false
}

// DataURL encodes data as a base64 data URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func isBinary(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") ||
		strings.HasPrefix(contentType, "video/") ||
		contentType == "application/octet-stream"
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "data:")
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
