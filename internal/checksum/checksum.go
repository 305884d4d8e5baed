// Package checksum computes content digests in the form the archive records them.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
)

// Sum returns the hex-encoded MD5 digest of data.
func Sum(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

// Reader streams r and returns its hex-encoded MD5 digest.
func Reader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("checksum: read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
