package transform

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

// Archive formats reported in DecompressedData.Format.
const (
	FormatGzip    = "gzip"
	FormatTarGzip = "tar+gzip"
	FormatZstd    = "zstd"
	FormatLZ4     = "lz4"
	FormatZip     = "zip"
	FormatTar     = "tar"
)

const defaultMaxSize = 256 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	zipMagic  = []byte("PK\x03\x04")
	zipEmpty  = []byte("PK\x05\x06")
	tarMagic  = []byte("ustar")
)

// ErrTooLarge is returned when decompressed output exceeds the configured
// limit.
var ErrTooLarge = errors.New("decompressed size limit exceeded")

// Decompressor expands gzip, zstd, lz4, zip and tar buffers, sniffing the
// format from magic numbers. A gzip stream that wraps a tar archive is
// expanded into the tar members.
type Decompressor struct {
	// MaxSize caps the total decompressed size. Zero means 256 MiB.
	MaxSize int64
}

func (d Decompressor) Decompress(ctx context.Context, data []byte) (pipeline.DecompressedData, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.DecompressedData{}, err
	}
	limit := d.MaxSize
	if limit <= 0 {
		limit = defaultMaxSize
	}

	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return decompressGzip(data, limit)
	case bytes.HasPrefix(data, zstdMagic):
		out, err := decompressZstd(data, limit)
		if err != nil {
			return pipeline.DecompressedData{}, fmt.Errorf("zstd decompress: %w", err)
		}
		return single(FormatZstd, "", out), nil
	case bytes.HasPrefix(data, lz4Magic):
		out, err := readLimited(lz4.NewReader(bytes.NewReader(data)), limit)
		if err != nil {
			return pipeline.DecompressedData{}, fmt.Errorf("lz4 decompress: %w", err)
		}
		return single(FormatLZ4, "", out), nil
	case bytes.HasPrefix(data, zipMagic), bytes.HasPrefix(data, zipEmpty):
		return decompressZip(data, limit)
	case isTar(data):
		entries, err := readTar(bytes.NewReader(data), limit)
		if err != nil {
			return pipeline.DecompressedData{}, err
		}
		return pipeline.DecompressedData{Format: FormatTar, Entries: entries}, nil
	default:
		return pipeline.DecompressedData{}, fmt.Errorf("archive: %w", ErrUnknownFormat)
	}
}

func single(format, name string, data []byte) pipeline.DecompressedData {
	return pipeline.DecompressedData{Format: format, Entries: []pipeline.ArchiveEntry{{Name: name, Data: data}}}
}

// decompressZstd streams the frame so output never grows past limit. The
// decoder's own window and size checks are reported as ErrTooLarge.
func decompressZstd(data []byte, limit int64) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(limit)+1))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := readLimited(zr, limit)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("%w: %w", ErrTooLarge, err)
	}
	return out, err
}

func decompressGzip(data []byte, limit int64) (pipeline.DecompressedData, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return pipeline.DecompressedData{}, fmt.Errorf("gzip header: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := readLimited(zr, limit)
	if err != nil {
		return pipeline.DecompressedData{}, fmt.Errorf("gzip decompress: %w", err)
	}
	if isTar(out) {
		entries, err := readTar(bytes.NewReader(out), limit)
		if err != nil {
			return pipeline.DecompressedData{}, err
		}
		return pipeline.DecompressedData{Format: FormatTarGzip, Entries: entries}, nil
	}
	return single(FormatGzip, zr.Name, out), nil
}

func decompressZip(data []byte, limit int64) (pipeline.DecompressedData, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return pipeline.DecompressedData{}, fmt.Errorf("zip open: %w", err)
	}
	res := pipeline.DecompressedData{Format: FormatZip}
	var total int64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return pipeline.DecompressedData{}, fmt.Errorf("zip entry %q: %w", f.Name, err)
		}
		body, err := readLimited(rc, limit-total)
		_ = rc.Close()
		if err != nil {
			return pipeline.DecompressedData{}, fmt.Errorf("zip entry %q: %w", f.Name, err)
		}
		total += int64(len(body))
		res.Entries = append(res.Entries, pipeline.ArchiveEntry{Name: f.Name, Data: body})
	}
	return res, nil
}

func isTar(data []byte) bool {
	const off = 257
	return len(data) >= off+len(tarMagic) && bytes.Equal(data[off:off+len(tarMagic)], tarMagic)
}

func readTar(r io.Reader, limit int64) ([]pipeline.ArchiveEntry, error) {
	tr := tar.NewReader(r)
	var entries []pipeline.ArchiveEntry
	var total int64
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		body, err := readLimited(tr, limit-total)
		if err != nil {
			return nil, fmt.Errorf("tar entry %q: %w", hdr.Name, err)
		}
		total += int64(len(body))
		entries = append(entries, pipeline.ArchiveEntry{Name: hdr.Name, Data: body})
	}
}

// readLimited reads r to EOF, failing with ErrTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit < 0 {
		limit = 0
	}
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}
