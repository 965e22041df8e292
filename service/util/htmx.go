package util

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// SetToast attaches an HX-Trigger header so htmx front-ends can show the toast
// without parsing the response body.
func SetToast(w http.ResponseWriter, title, message, toastType string) {
	trigger := map[string]interface{}{
		"showToast": map[string]string{
			"title":   title,
			"message": message,
			"type":    toastType,
		},
	}
	if data, err := json.Marshal(trigger); err == nil {
		w.Header().Set("HX-Trigger", asciiJSON(data))
	}
}

// asciiJSON escapes every non-ASCII rune of a JSON document as \uXXXX.
// Browsers read header values as Latin-1, so raw UTF-8 would arrive garbled.
func asciiJSON(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, r := range string(data) {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		for _, u := range utf16.Encode([]rune{r}) {
			fmt.Fprintf(&b, `\u%04x`, u)
		}
	}
	return b.String()
}
