package ioutil

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CreateTemp exclusively creates a new file in dir whose name starts with
// prefix. The file is opened write-only with mode 0600.
func CreateTemp(fsys afero.Fs, dir, prefix string) (afero.File, string, error) {
	const attempts = 10
	for range attempts {
		suffix, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		path := filepath.Join(dir, prefix+suffix)
		f, err := fsys.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
