package dataset

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"genomedesigner/internal/blob"
	"genomedesigner/pkg/domain"
)

// Format names a compression format recognised by file extension.
type Format string

const (
	FormatNone  Format = ""
	FormatGzip  Format = "gzip"
	FormatBzip2 Format = "bzip2"
	FormatZip   Format = "zip"
)

var extensions = map[string]Format{
	".gz":  FormatGzip,
	".bz2": FormatBzip2,
	".zip": FormatZip,
}

// ErrUnsupportedCompression is returned when asked to create a format other than gzip.
var ErrUnsupportedCompression = errors.New("unsupported compression suffix")

// CompressionOf reports the compression format of a dataset by its location's extension.
func CompressionOf(ds domain.Dataset) Format {
	loc := strings.ToLower(ds.FilesystemLocation)
	for ext, format := range extensions {
		if strings.HasSuffix(loc, ext) {
			return format
		}
	}
	return FormatNone
}

// IsCompressed reports whether the dataset file is compressed.
func IsCompressed(ds domain.Dataset) bool {
	return CompressionOf(ds) != FormatNone
}

// Locator resolves a blob key to an address external tools can read.
type Locator interface {
	Location(key string) string
	Driver() blob.Driver
}

// WrapIfCompressed returns a bash fragment that yields the uncompressed
// contents of ds, suitable for command lines such as "head <fragment> | wc -l".
// Uncompressed datasets on local disk return the plain path.
func WrapIfCompressed(ds domain.Dataset, locator Locator) string {
	loc := shellQuote(locator.Location(ds.FilesystemLocation))
	source := loc
	remote := locator.Driver() == blob.DriverS3
	if remote {
		source = "aws s3 cp " + loc + " -"
	}
	var decompress string
	switch CompressionOf(ds) {
	case FormatGzip:
		decompress = "gzip -dc"
	case FormatBzip2:
		decompress = "bzip2 -dc"
	case FormatZip:
		if remote {
			return "<(" + source + " | funzip)"
		}
		return "<(unzip -p " + loc + ")"
	default:
		if remote {
			return "<(" + source + ")"
		}
		return loc
	}
	if remote {
		return "<(" + source + " | " + decompress + ")"
	}
	return "<(" + decompress + " " + loc + ")"
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// OpenDecompressed streams the uncompressed contents of ds from store.
func OpenDecompressed(ctx context.Context, store blob.Store, ds domain.Dataset) (io.ReadCloser, error) {
	_, rc, err := store.Get(ctx, ds.FilesystemLocation)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", ds.ID, err)
	}
	switch CompressionOf(ds) {
	case FormatGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("gzip dataset %s: %w", ds.ID, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case FormatBzip2:
		return &stackedCloser{Reader: bzip2.NewReader(rc), closers: []io.Closer{rc}}, nil
	case FormatZip:
		defer func() { _ = rc.Close() }()
		return openFirstZipEntry(rc)
	default:
		return rc, nil
	}
}

// openFirstZipEntry buffers the archive since zip needs random access.
func openFirstZipEntry(r io.Reader) (io.ReadCloser, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip archive: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		return f.Open()
	}
	return nil, fmt.Errorf("zip archive has no files")
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// CountLines counts newline-terminated lines in r; a trailing partial line counts as one.
func CountLines(r io.Reader) (int, error) {
	buf := make([]byte, 32*1024)
	count := 0
	var last byte = '\n'
	for {
		n, err := r.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

// Compress gzips the blob at srcKey into dstKey. The compressed stream is
// produced through a pipe so neither copy is held in memory.
func Compress(ctx context.Context, store blob.Store, srcKey, dstKey string) (blob.Info, error) {
	_, src, err := store.Get(ctx, srcKey)
	if err != nil {
		return blob.Info{}, fmt.Errorf("open %s: %w", srcKey, err)
	}
	pr, pw := io.Pipe()
	go func() {
		zw := gzip.NewWriter(pw)
		_, err := io.Copy(zw, src)
		pw.CloseWithError(errors.Join(err, zw.Close(), src.Close()))
	}()
	info, err := store.Put(ctx, dstKey, pr, blob.PutOptions{ContentType: "application/gzip"})
	_ = pr.CloseWithError(err)
	if err != nil {
		return blob.Info{}, fmt.Errorf("write %s: %w", dstKey, err)
	}
	return info, nil
}

// CompressedSuffix validates a make-compressed suffix. Only gzip can be created.
func CompressedSuffix(suffix string) (string, error) {
	if suffix == "" {
		suffix = ".gz"
	}
	if extensions[strings.ToLower(suffix)] != FormatGzip {
		return "", fmt.Errorf("%q: %w", suffix, ErrUnsupportedCompression)
	}
	return suffix, nil
}
