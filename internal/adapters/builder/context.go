package builder

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/pkg/archive"
)

// Context packs dir into a tar build context, skipping excludes, and appends
// the generated Dockerfile under name.
func Context(dir string, excludes []string, name string, dockerfile []byte) (io.ReadCloser, error) {
	src, err := archive.TarWithOptions(dir, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer src.Close()
		pw.CloseWithError(appendFile(pw, src, name, dockerfile))
	}()
	return pr, nil
}

// appendFile copies the tar stream src to w, dropping any entry called name,
// then writes name with content.
func appendFile(w io.Writer, src io.Reader, name string, content []byte) error {
	tr := tar.NewReader(src)
	tw := tar.NewWriter(w)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read build context: %w", err)
		}
		if hdr.Name == name {
			continue
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0),
		Typeflag: tar.TypeReg,
	}); err != nil {
		return err
	}
	if _, err := tw.Write(content); err != nil {
		return err
	}
	return tw.Close()
}
