package helper

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

func WriteYAML(w io.Writer, data interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	return enc.Encode(data)
}

func MarshalYAML(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func ReadYAMLFile(name string, data interface{}) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	return ReadYAML(f, data)
}

func ReadYAML(r io.Reader, data interface{}) error { return yaml.NewDecoder(r).Decode(data) }
