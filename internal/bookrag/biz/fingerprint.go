package biz

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
)

// fingerprintSample is how many bytes to hash from each end of the
// file. Hashing the head, tail, and size instead of the whole file
// keeps startup cheap for large documents while still catching
// replaced or truncated files.
const fingerprintSample = 64 * 1024

// Fingerprint returns a stable hex digest identifying the file's
// content. It hashes the first 64 KiB, the decimal file size, and for
// files larger than 64 KiB, the last 64 KiB.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat document: %w", err)
	}
	size := info.Size()

	h := md5.New()
	if _, err := io.CopyN(h, f, fingerprintSample); err != nil && err != io.EOF {
		return "", fmt.Errorf("read document head: %w", err)
	}
	h.Write([]byte(strconv.FormatInt(size, 10)))

	if size > fingerprintSample {
		if _, err := f.Seek(-fingerprintSample, io.SeekEnd); err != nil {
			return "", fmt.Errorf("seek document tail: %w", err)
		}
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("read document tail: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
