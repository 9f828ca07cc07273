// Copyright © 2020 Jose Riguera <jriguera@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package tar

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "partnerbundle/internal/log"

	renameio "github.com/google/renameio/v2"
	gzip "github.com/klauspost/compress/gzip"
)

// Tar writes a tar stream, optionally gzipped, to one or more outputs
type Tar struct {
	BasePath string
	dstPath  string
	srcPath  string
	file     *renameio.PendingFile
	ctx      context.Context
	gz       *gzip.Writer
	tw       *tar.Writer
	mu       sync.Mutex
	log      log.Logger
}

func NewTar(basepath string, l log.Logger, outputs ...io.Writer) *Tar {
	var mw io.Writer = io.Discard
	if len(outputs) > 0 {
		mw = io.MultiWriter(outputs...)
	}
	t := Tar{
		BasePath: basepath,
		ctx:      context.Background(),
		tw:       tar.NewWriter(mw),
		log:      l,
	}
	return &t
}

// NewTarGz returns a Tar compressing its stream with gzip
func NewTarGz(basepath string, l log.Logger, outputs ...io.Writer) *Tar {
	var mw io.Writer = io.Discard
	if len(outputs) > 0 {
		mw = io.MultiWriter(outputs...)
	}
	gz, _ := gzip.NewWriterLevel(mw, gzip.BestCompression)
	t := Tar{
		BasePath: basepath,
		ctx:      context.Background(),
		gz:       gz,
		tw:       tar.NewWriter(gz),
		log:      l,
	}
	return &t
}

// NewTarGzFile writes a .tar.gz which only replaces tarfile once Close succeeds
func NewTarGzFile(tarfile string, l log.Logger) (*Tar, error) {
	target, err := renameio.NewPendingFile(tarfile, renameio.WithPermissions(0644))
	if err != nil {
		return nil, fmt.Errorf("Unable to create '%s': %s", tarfile, err.Error())
	}
	t := NewTarGz(".", l, target)
	t.file = target
	return t, nil
}

// Close flushes the streams and, for files, moves the result into place
func (t *Tar) Close() error {
	err := t.tw.Close()
	if t.gz != nil {
		if errGz := t.gz.Close(); err == nil {
			err = errGz
		}
	}
	if t.file != nil {
		if err != nil {
			t.file.Cleanup()
			return err
		}
		err = t.file.CloseAtomicallyReplace()
	}
	return err
}

// Abort drops a pending file without replacing the target
func (t *Tar) Abort() {
	t.tw.Close()
	if t.file != nil {
		t.file.Cleanup()
	}
}

// Add walks src and stores its contents under dstpath
func (t *Tar) Add(ctx context.Context, src, dstpath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctx = ctx
	t.srcPath = filepath.Clean(src)
	t.dstPath = "."
	if dstpath != "" {
		t.dstPath = dstpath
	}
	if _, err := os.Stat(src); err != nil {
		return err
	}
	return filepath.Walk(t.srcPath, t.scan)
}

func (t *Tar) scan(p string, i os.FileInfo, err error) error {
	if err != nil {
		return fmt.Errorf("Cannot scan path for tar, %s", err.Error())
	}
	if !i.IsDir() && !i.Mode().IsRegular() && i.Mode()&os.ModeSymlink == 0 {
		t.log.Debugf("Skipping non regular file: %s", p)
		return nil
	}
	select {
	case <-t.ctx.Done():
		return fmt.Errorf("Cancelled by context")
	default:
		return t.tarFile(p, i)
	}
}

func (t *Tar) tarFile(path string, i os.FileInfo) error {
	link := ""
	if i.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("Cannot read link '%s': %s", path, err.Error())
		}
		link = target
	}
	header, err := tar.FileInfoHeader(i, link)
	if err != nil {
		return fmt.Errorf("Cannot get tar header for file '%s': %s", path, err.Error())
	}
	// Remove relative paths
	name := strings.TrimPrefix(strings.TrimPrefix(path, t.srcPath), string(filepath.Separator))
	header.Name = filepath.ToSlash(filepath.Join(t.BasePath, t.dstPath, name))
	if i.IsDir() {
		header.Name += "/"
	}
	if err := t.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("Cannot store tar header for file '%s': %s", path, err.Error())
	}
	if !i.Mode().IsRegular() {
		t.log.Debugf("Adding '%s'", header.Name)
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("Cannot open file '%s': %s", path, err.Error())
	}
	defer file.Close()
	bytes, err := io.Copy(t.tw, file)
	if err != nil {
		return fmt.Errorf("Cannot tar file '%s': %s", path, err.Error())
	}
	t.log.Debugf("Tar file '%s': %d bytes", path, bytes)
	return nil
}

// UnTar extracts a plain tar stream under BasePath
func (t *Tar) UnTar(ctx context.Context, reader io.Reader) error {
	tarReader := tar.NewReader(reader)
	base := filepath.Clean(t.BasePath)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("Cancelled by context")
		default:
		}
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("Cannot untar: %s", err.Error())
		}
		path := filepath.Join(base, filepath.FromSlash(header.Name))
		if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
			return fmt.Errorf("Invalid path in tar '%s'", header.Name)
		}
		info := header.FileInfo()
		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(path, info.Mode().Perm()|0700); err != nil {
				return fmt.Errorf("Cannot create directory '%s' with mode '%s': %s", path, info.Mode().String(), err.Error())
			}
			t.log.Debugf("Created folder '%s' with mode '%s'", path, info.Mode().String())
		case tar.TypeReg:
			if err = extractFile(path, info.Mode().Perm(), tarReader); err != nil {
				return err
			}
			t.log.Debugf("Extracted file '%s': %d bytes", path, header.Size)
		default:
			t.log.Debugf("Skipping tar entry '%s' of type %c", header.Name, header.Typeflag)
		}
	}
}

func extractFile(path string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("Cannot create directory '%s': %s", filepath.Dir(path), err.Error())
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("Cannot open '%s' for writing: %s", path, err.Error())
	}
	defer file.Close()
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("Cannot write to '%s': %s", path, err.Error())
	}
	return nil
}

// Entry describes one member of an archive
type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// List returns the members of a plain tar stream
func List(ctx context.Context, reader io.Reader) ([]Entry, error) {
	entries := []Entry{}
	tarReader := tar.NewReader(reader)
	for {
		select {
		case <-ctx.Done():
			return entries, fmt.Errorf("Cancelled by context")
		default:
		}
		header, err := tarReader.Next()
		if err == io.EOF {
			return entries, nil
		} else if err != nil {
			return entries, fmt.Errorf("Cannot read tar: %s", err.Error())
		}
		entries = append(entries, Entry{
			Name: header.Name,
			Size: header.Size,
			Dir:  header.Typeflag == tar.TypeDir,
		})
	}
}

// TarGzDir compresses srcpath into tarball, stored as the folder dstname
func TarGzDir(ctx context.Context, srcpath, dstname, tarball string, l log.Logger) error {
	t, err := NewTarGzFile(tarball, l)
	if err != nil {
		return err
	}
	if err = t.Add(ctx, srcpath, dstname); err != nil {
		t.Abort()
		return err
	}
	return t.Close()
}

// ListTarGzFile returns the members of a .tar.gz file
func ListTarGzFile(ctx context.Context, tarball string) ([]Entry, error) {
	f, err := os.Open(tarball)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("Cannot read gzip '%s': %s", tarball, err.Error())
	}
	defer gz.Close()
	return List(ctx, gz)
}

// UnTarGzFile extracts a .tar.gz file into dstpath
func UnTarGzFile(ctx context.Context, tarball, dstpath string) error {
	reader, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer reader.Close()
	gz, err := gzip.NewReader(reader)
	if err != nil {
		return fmt.Errorf("Cannot read gzip '%s': %s", tarball, err.Error())
	}
	defer gz.Close()
	t := NewTar(dstpath, log.StandardLogger())
	return t.UnTar(ctx, gz)
}
