package utils

import (
	"archive/tar"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
)

// secure-delete overwrite passes before unlink
const overwritePasses = 2

// SecureDeleteFile overwrites a file's contents with random bytes
// before removing it. Genotype data must not survive in freed blocks
// on conventional storage.
func SecureDeleteFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	buf := make([]byte, 256*1024)
	for pass := 0; pass < overwritePasses; pass++ {
		if _, err = f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return err
		}
		remaining := info.Size()
		for remaining > 0 {
			chunk := buf
			if remaining < int64(len(buf)) {
				chunk = buf[:remaining]
			}
			if _, err = rand.Read(chunk); err != nil {
				f.Close()
				return err
			}
			if _, err = f.Write(chunk); err != nil {
				f.Close()
				return err
			}
			remaining -= int64(len(chunk))
		}
		if err = f.Sync(); err != nil {
			f.Close()
			return err
		}
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// SecureDeleteDir secure-deletes every regular file under dir, then
// removes the tree.
func SecureDeleteDir(dir string) error {
	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.Mode().IsRegular() {
			return SecureDeleteFile(path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.RemoveAll(dir)
}

// PackageDirectory writes every regular file under dir into a
// tar + parallel-gzip archive at destination.
func PackageDirectory(dir string, destination string) error {
	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	gz := pgzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		relative, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		header, headerErr := tar.FileInfoHeader(info, "")
		if headerErr != nil {
			return headerErr
		}
		header.Name = relative
		if writeErr := tw.WriteHeader(header); writeErr != nil {
			return writeErr
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		_, copyErr := io.Copy(tw, f)
		return copyErr
	})
	if err != nil {
		tw.Close()
		gz.Close()
		out.Close()
		return err
	}

	if err = tw.Close(); err != nil {
		return err
	}
	if err = gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

// ConcatenateFiles appends each source in order onto destination.
func ConcatenateFiles(destination string, sources []string) (int64, error) {
	out, err := os.Create(destination)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, src := range sources {
		in, openErr := os.Open(src)
		if openErr != nil {
			out.Close()
			return total, openErr
		}
		n, copyErr := io.Copy(out, in)
		in.Close()
		total += n
		if copyErr != nil {
			out.Close()
			return total, copyErr
		}
	}
	return total, out.Close()
}
