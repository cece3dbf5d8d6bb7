package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
)

// HashFS streams path from fsys and returns its short content hash. The
// digest matches parser.HashContent for the same bytes.
func HashFS(fsys fs.FS, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
