// Package segment stores index snapshots on disk. A snapshot file is a fixed
// header, a zstd-compressed JSON payload of document records, and a footer
// carrying a CRC32 of the payload.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
)

// MagicBytes identifies a snapshot file. It is stored big-endian so every
// file starts with "WQIX".
const (
	MagicBytes    uint32 = 0x57514958
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// Header is the 64-byte header written at the start of every snapshot.
type Header struct {
	Magic       uint32    `json:"-"`
	Version     uint32    `json:"version"`
	DocCount    uint32    `json:"doc_count"`
	TermCount   uint32    `json:"term_count"`
	CreatedAt   time.Time `json:"created_at"`
	PayloadSize int64     `json:"payload_size"`
	Generation  uint64    `json:"generation"`
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.DocCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.TermCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt.Unix()))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.PayloadSize))
	binary.LittleEndian.PutUint64(buf[32:40], h.Generation)
	return buf
}

func decodeHeader(buf []byte) Header {
	return Header{
		Magic:       binary.BigEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint32(buf[4:8]),
		DocCount:    binary.LittleEndian.Uint32(buf[8:12]),
		TermCount:   binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:   time.Unix(int64(binary.LittleEndian.Uint64(buf[16:24])), 0).UTC(),
		PayloadSize: int64(binary.LittleEndian.Uint64(buf[24:32])),
		Generation:  binary.LittleEndian.Uint64(buf[32:40]),
	}
}

// Save writes a snapshot of idx to path. It writes to a .tmp file first and
// renames on success, so a failed save leaves any previous snapshot intact.
func Save(path string, idx *index.Index) (Header, error) {
	stats := idx.Stats()
	records := idx.Snapshot()

	raw, err := json.Marshal(records)
	if err != nil {
		return Header{}, fmt.Errorf("marshaling document records: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return Header{}, fmt.Errorf("creating zstd encoder: %w", err)
	}
	payload := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return Header{}, fmt.Errorf("closing zstd encoder: %w", err)
	}

	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		DocCount:    uint32(len(records)),
		TermCount:   uint32(stats.Terms),
		CreatedAt:   time.Now().UTC(),
		PayloadSize: int64(len(payload)),
		Generation:  stats.Generation,
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.PayloadSize))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Header{}, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Header{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	for _, part := range [][]byte{header.encode(), payload, footer} {
		if _, err := f.Write(part); err != nil {
			os.Remove(tmpPath)
			return Header{}, fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return Header{}, fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return Header{}, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return header, nil
}
