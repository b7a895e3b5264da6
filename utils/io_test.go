package utils

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureDeleteFileRemovesTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genome.txt")
	require.NoError(t, os.WriteFile(path, []byte("rs1\t7\t100\tAA\n"), 0o600))

	require.NoError(t, SecureDeleteFile(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSecureDeleteFileToleratesMissingTarget(t *testing.T) {
	assert.NoError(t, SecureDeleteFile(filepath.Join(t.TempDir(), "absent")))
}

func TestSecureDeleteDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.txt"), []byte("aaa"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bbb"), 0o600))

	require.NoError(t, SecureDeleteDir(dir))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestPackageDirectoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.db"), []byte("sqlite"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "merged.vcf.gz"), []byte("vcf"), 0o600))

	archive := filepath.Join(t.TempDir(), "results.tar.gz")
	require.NoError(t, PackageDirectory(dir, archive))

	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	found := map[string]string{}
	for {
		header, nextErr := tr.Next()
		if nextErr == io.EOF {
			break
		}
		require.NoError(t, nextErr)
		contents, readErr := io.ReadAll(tr)
		require.NoError(t, readErr)
		found[header.Name] = string(contents)
	}
	assert.Equal(t, map[string]string{"results.db": "sqlite", "merged.vcf.gz": "vcf"}, found)
}

func TestConcatenateFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "part_0000")
	b := filepath.Join(dir, "part_0001")
	require.NoError(t, os.WriteFile(a, []byte("hello "), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("world"), 0o600))

	dest := filepath.Join(dir, "whole")
	total, err := ConcatenateFiles(dest, []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)

	contents, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(contents))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	digest, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", digest)
}
