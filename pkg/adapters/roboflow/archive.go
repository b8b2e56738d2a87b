package roboflow

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// extract unpacks a zip archive into dest, rejecting entries that would land
// outside it.
func extract(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	clean := filepath.Clean(dest)
	root := clean + string(os.PathSeparator)

	for _, f := range zr.File {
		target := filepath.Join(dest, f.Name)
		if target != clean && !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes %s", f.Name, dest)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// splitKeys are the data.yaml entries holding image directories.
var splitKeys = []string{"train", "val", "test"}

// rewriteDataFile points the split entries of data.yaml at dest. Exports
// ship them relative to a parent directory ("../train/images"), which only
// resolves when training runs from inside the dataset.
func rewriteDataFile(path, dest string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", DataFile, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", DataFile, err)
	}
	if doc == nil {
		return nil
	}

	for _, key := range splitKeys {
		v, ok := doc[key].(string)
		if !ok || v == "" || filepath.IsAbs(v) {
			continue
		}
		rel := strings.TrimLeft(filepath.ToSlash(v), "./")
		doc[key] = filepath.Join(dest, filepath.FromSlash(rel))
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
