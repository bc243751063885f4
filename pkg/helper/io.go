package helper

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
)

// ReadFile read data from file or stdin
func ReadFile(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}

	log.Debugf("read file %s", name)
	return os.ReadFile(name)
}

// WriteFile write data to file or stdout
func WriteFile(name string, data []byte, perm os.FileMode) error {
	if name == "" || name == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	log.Debugf("write file %s", name)
	return os.WriteFile(name, data, perm)
}

// WriteFileAtomic write data to temporary file in the same directory and rename it to name.
// readers never see partially written file.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "fail to create directory %s", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return errors.Wrap(err, "fail to create temporary file")
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "fail to write %s", tmp)
	}

	if err := f.Chmod(perm); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, name)
}
