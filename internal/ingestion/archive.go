package ingestion

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Open returns a line-readable stream for an archive file, picking the
// decompressor from the extension (.lz4, .xz, or plain).
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".lz4"):
		return &wrappedReader{Reader: lz4.NewReader(f), closer: f}, nil
	case strings.HasSuffix(path, ".xz"):
		r, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		return &wrappedReader{Reader: r, closer: f}, nil
	default:
		return f, nil
	}
}

type wrappedReader struct {
	io.Reader
	closer io.Closer
}

func (w *wrappedReader) Close() error {
	return w.closer.Close()
}

// AssembleParts concatenates split archive parts ("<name>.part-*",
// sorted lexically) into destPath. Returns destPath unchanged if it
// already exists.
func AssembleParts(dir, name, destPath string) (string, error) {
	if _, err := os.Stat(destPath); err == nil {
		return destPath, nil
	}

	parts, err := filepath.Glob(filepath.Join(dir, name+".part-*"))
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no parts found for %s in %s", name, dir)
	}
	sort.Strings(parts)

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create assembled archive: %w", err)
	}
	defer out.Close()

	for _, part := range parts {
		in, err := os.Open(part)
		if err != nil {
			return "", fmt.Errorf("open part %s: %w", part, err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return "", fmt.Errorf("copy part %s: %w", part, err)
		}
	}

	return destPath, nil
}

// ExtractTarXz unpacks a .tar.xz archive into destDir. Paths escaping
// destDir are rejected.
func ExtractTarXz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}

	tr := tar.NewReader(xzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("tar entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			out.Close()
		}
	}
}
