package library

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// ComputeHash returns the hex sha256 of a file's contents.
func ComputeHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
