// Package storage keeps uploaded element images on local disk.
package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrNotJPEG       = errors.New("image is not a jpeg")
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// ImageStore writes images as <dir>/<id>.jpg.
type ImageStore struct {
	dir      string
	maxBytes int
}

// NewImageStore creates the directory if needed.
func NewImageStore(dir string, maxBytes int) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &ImageStore{dir: dir, maxBytes: maxBytes}, nil
}

// SaveBase64 decodes a base64 JPEG (optionally a data URL) and stores it under a new id.
func (s *ImageStore) SaveBase64(encoded string) (string, error) {
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > s.maxBytes+2 {
		return "", ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return s.Save(data)
}

// Save stores raw JPEG bytes and returns the generated image id.
func (s *ImageStore) Save(data []byte) (string, error) {
	if len(data) > s.maxBytes {
		return "", ErrImageTooLarge
	}
	if !bytes.HasPrefix(data, jpegMagic) {
		return "", ErrNotJPEG
	}

	id := uuid.NewString()
	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return id, nil
}

// Open returns the stored image. The caller closes it.
func (s *ImageStore) Open(imageID string) (io.ReadSeekCloser, error) {
	if _, err := uuid.Parse(imageID); err != nil {
		return nil, ErrImageNotFound
	}
	f, err := os.Open(s.path(imageID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrImageNotFound
	}
	return f, err
}

// Delete removes a stored image. Missing images are not an error.
func (s *ImageStore) Delete(imageID string) error {
	if _, err := uuid.Parse(imageID); err != nil {
		return nil
	}
	err := os.Remove(s.path(imageID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *ImageStore) path(imageID string) string {
	return filepath.Join(s.dir, imageID+".jpg")
}
