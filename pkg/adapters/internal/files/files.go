// Package files holds file helpers shared by tracker adapters.
package files

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/yolotrain/pkg/domain"
)

// Entry describes one file of a logged artifact.
type Entry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest is the stored form of an artifact.
type Manifest struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Files []Entry `json:"files"`
}

// Digest returns the size and hex sha256 of the file at path.
func Digest(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Describe builds the manifest of an artifact, failing on the first file
// that cannot be read.
func Describe(a *domain.Artifact) (*Manifest, error) {
	m := &Manifest{Name: a.Name, Type: a.Type}
	for _, p := range a.Files {
		size, sum, err := Digest(p)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		m.Files = append(m.Files, Entry{Path: p, Size: size, SHA256: sum})
	}
	return m, nil
}

// Copy copies src to dst, creating parent directories.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ImageRecord is how a logged domain.Image is stored.
type ImageRecord struct {
	Type    string `json:"_type"`
	Path    string `json:"path"`
	Caption string `json:"caption,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
}

// ImageType tags stored image values.
const ImageType = "image-file"
