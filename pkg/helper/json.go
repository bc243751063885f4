package helper

import (
	"bytes"
	"encoding/json"
	"io"
)

func WriteJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// MarshalJSON marshal data in single line without trailing newline
func MarshalJSON(data interface{}) string {
	if data == nil {
		return ""
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		return ""
	}

	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
