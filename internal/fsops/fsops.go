// Package fsops wraps the filesystem operations used while assembling a bundle.
// Every operation either completes or returns an error; callers treat errors as fatal.
package fsops

import (
	"io"
	"os"

	renameio "github.com/google/renameio/v2"
	errors "github.com/pkg/errors"
)

// Exists reports whether path exists, failing only when it cannot be stat'ed
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "Unable to check '%s'", path)
}

// EnsureDir creates path (and parents) when absent
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrapf(err, "Unable to create folder '%s'", path)
	}
	return nil
}

// CopyFile copies src over dst, keeping the source permissions
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "Unable to read '%s'", src)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "Unable to read '%s'", src)
	}
	if info.IsDir() {
		return errors.Errorf("Unable to copy '%s': it is a folder", src)
	}
	out, err := renameio.NewPendingFile(dst, renameio.WithPermissions(info.Mode().Perm()))
	if err != nil {
		return errors.Wrapf(err, "Unable to write '%s'", dst)
	}
	defer out.Cleanup()
	if _, err = io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "Unable to copy '%s' to '%s'", src, dst)
	}
	if err = out.CloseAtomicallyReplace(); err != nil {
		return errors.Wrapf(err, "Unable to write '%s'", dst)
	}
	return nil
}

// WriteFile replaces dst with content
func WriteFile(content, dst string, perm os.FileMode) error {
	if err := renameio.WriteFile(dst, []byte(content), perm); err != nil {
		return errors.Wrapf(err, "Unable to write '%s'", dst)
	}
	return nil
}

// RemoveDirRecursive deletes path and its contents; absent path is not an error
func RemoveDirRecursive(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "Unable to remove folder '%s'", path)
	}
	return nil
}

// RemoveFile deletes a single file; absent file is not an error
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "Unable to remove '%s'", path)
	}
	return nil
}
