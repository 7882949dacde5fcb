package utils

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes data next to path under a unique temporary name
// and renames it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir parents: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// CopyFileAtomic copies src to dst through WriteFileAtomic semantics.
func CopyFileAtomic(src, dst string) error {
	sf, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer sf.Close()

	data, err := io.ReadAll(sf)
	if err != nil {
		return fmt.Errorf("read src: %w", err)
	}
	return WriteFileAtomic(dst, data, 0o644)
}

// ExtractNatives unpacks every file of the jar at srcJar into destDir,
// skipping entries whose name starts with one of the exclude prefixes.
// Entries already present with the same size and CRC-32 are left alone.
// It returns the number of files written.
func ExtractNatives(srcJar, destDir string, exclude []string) (int, error) {
	r, err := zip.OpenReader(srcJar)
	if err != nil {
		return 0, fmt.Errorf("open native jar: %w", err)
	}
	defer r.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, file := range r.File {
		if file.FileInfo().IsDir() || excluded(file.Name, exclude) {
			continue
		}

		destPath := filepath.Join(absDest, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(destPath, absDest+string(os.PathSeparator)) {
			return count, fmt.Errorf("illegal entry path %q in %s", file.Name, srcJar)
		}

		if sameZipEntry(file, destPath) {
			continue
		}
		if err := extractEntry(file, destPath); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func extractEntry(file *zip.File, destPath string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s in zip: %w", file.Name, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read %s in zip: %w", file.Name, err)
	}
	return WriteFileAtomic(destPath, data, 0o755)
}

func sameZipEntry(file *zip.File, destPath string) bool {
	f, err := os.Open(destPath)
	if err != nil {
		return false
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || uint64(st.Size()) != file.UncompressedSize64 {
		return false
	}
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return h.Sum32() == file.CRC32
}

func excluded(name string, exclude []string) bool {
	for _, prefix := range exclude {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
