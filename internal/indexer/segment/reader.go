package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
)

func corrupt(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrCorruptSnapshot, http.StatusInternalServerError, format, args...)
}

// Info reads and validates only the header of a snapshot file.
func Info(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Header{}, corrupt("reading header of %s: %v", path, err)
	}
	header := decodeHeader(buf)
	if err := checkHeader(header); err != nil {
		return Header{}, err
	}
	return header, nil
}

// Load reads the snapshot at path and rebuilds the index it describes.
func Load(path string) (*index.Index, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, Header{}, corrupt("file %s is %d bytes, too short", path, len(data))
	}
	header := decodeHeader(data[:HeaderSize])
	if err := checkHeader(header); err != nil {
		return nil, Header{}, err
	}
	if int64(len(data)) != int64(HeaderSize)+header.PayloadSize+int64(FooterSize) {
		return nil, Header{}, corrupt("payload size %d does not match file size %d", header.PayloadSize, len(data))
	}
	payload := data[HeaderSize : HeaderSize+int(header.PayloadSize)]
	footer := data[HeaderSize+int(header.PayloadSize):]

	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(payload) {
		return nil, Header{}, corrupt("checksum mismatch in %s", path)
	}
	if docs := binary.LittleEndian.Uint32(footer[4:8]); docs != header.DocCount {
		return nil, Header{}, corrupt("footer doc count %d, header %d", docs, header.DocCount)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, Header{}, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, Header{}, corrupt("decompressing payload: %v", err)
	}
	var records []index.DocumentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, Header{}, corrupt("parsing document records: %v", err)
	}
	if len(records) != int(header.DocCount) {
		return nil, Header{}, corrupt("header promises %d documents, payload has %d", header.DocCount, len(records))
	}
	idx, err := index.Restore(records)
	if err != nil {
		return nil, Header{}, fmt.Errorf("restoring index: %w", err)
	}
	return idx, header, nil
}

func checkHeader(h Header) error {
	if h.Magic != MagicBytes {
		return corrupt("bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return corrupt("unsupported format version %d", h.Version)
	}
	if h.PayloadSize < 0 {
		return corrupt("negative payload size %d", h.PayloadSize)
	}
	return nil
}
