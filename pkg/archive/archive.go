// Package archive extracts tar and gzip-compressed tar streams, such as OCI
// image layers, onto disk.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ExtractTar unpacks the tar stream r into dest. Entries are written in
// stream order, so later entries overwrite earlier ones at the same path.
func ExtractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		path := filepath.Join(dest, hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeReg:
			_, err := os.Stat(filepath.Dir(path))
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					return err
				}
			}

			fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode())
			if err != nil {
				return err
			}

			if _, err := io.Copy(fh, tr); err != nil { //nolint:gosec
				fh.Close()
				return err
			}

			fh.Close()
		case tar.TypeSymlink:
			if err := os.RemoveAll(path); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown file type in tar %d", hdr.Typeflag)
		}
	}
}

// ExtractTarGZ unpacks the gzip-compressed tar stream r into dest.
func ExtractTarGZ(r io.Reader, dest string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "creating gzip reader")
	}
	defer gzr.Close()
	return ExtractTar(gzr, dest)
}
