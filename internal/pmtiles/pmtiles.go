// Package pmtiles writes PMTiles v3 archives of gzipped vector tiles.
//
// The header and directory encoding follow github.com/protomaps/go-pmtiles
// (BSD-3-Clause), reduced to the gzip-only case.
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Compression is the compression algorithm applied to tiles and directories.
type Compression uint8

const (
	NoCompression Compression = 1
	Gzip          Compression = 2
)

// TileType is the format of individual tile contents.
type TileType uint8

const Mvt TileType = 1

// HeaderLen is the size of the fixed binary header.
const HeaderLen = 127

// MaxRootLen is the room left for the root directory in the first 16 KiB.
const MaxRootLen = 16384 - HeaderLen

// Header is the PMTiles v3 header.
type Header struct {
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// Entry is one directory entry.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// TileID converts z/x/y to the Hilbert tile id.
func TileID(t maptile.Tile) uint64 {
	z, x, y := uint8(t.Z), t.X, t.Y
	acc := (uint64(1)<<(z*2) - 1) / 3
	n := uint32(z) - 1
	for s := uint32(1) << n; s > 0 && z > 0; s >>= 1 {
		rx := s & x
		ry := s & y
		acc += uint64((3*rx)^ry) << n
		x, y = rotate(s, x, y, rx, ry)
		n--
	}
	return acc
}

func rotate(n, x, y, rx, ry uint32) (uint32, uint32) {
	if ry == 0 {
		if rx != 0 {
			x = n - 1 - x
			y = n - 1 - y
		}
		return y, x
	}
	return x, y
}

// Metadata is the JSON metadata block.
type Metadata struct {
	Name         string        `json:"name"`
	Format       string        `json:"format"`
	MinZoom      int           `json:"minzoom"`
	MaxZoom      int           `json:"maxzoom"`
	VectorLayers []VectorLayer `json:"vector_layers"`
}

// VectorLayer describes one MVT layer.
type VectorLayer struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Build encodes gzipped MVT tiles into a clustered archive. Bounds may be nil.
func Build(tiles map[maptile.Tile][]byte, meta Metadata, bounds *orb.Bound) ([]byte, error) {
	if len(tiles) == 0 {
		return nil, errors.New("no tiles to write")
	}

	type tileEntry struct {
		id   uint64
		data []byte
	}
	sorted := make([]tileEntry, 0, len(tiles))
	for t, data := range tiles {
		sorted = append(sorted, tileEntry{id: TileID(t), data: data})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	entries := make([]Entry, 0, len(sorted))
	var tileData bytes.Buffer
	for _, te := range sorted {
		entries = append(entries, Entry{
			TileID:    te.id,
			Offset:    uint64(tileData.Len()),
			Length:    uint32(len(te.data)),
			RunLength: 1,
		})
		tileData.Write(te.data)
	}

	metaBytes, err := gzipJSON(meta)
	if err != nil {
		return nil, fmt.Errorf("serializing metadata: %w", err)
	}
	root, leaves, err := buildDirectories(entries, MaxRootLen)
	if err != nil {
		return nil, fmt.Errorf("serializing directory: %w", err)
	}

	h := Header{
		RootOffset:          HeaderLen,
		RootLength:          uint64(len(root)),
		MetadataOffset:      HeaderLen + uint64(len(root)),
		MetadataLength:      uint64(len(metaBytes)),
		TileDataLength:      uint64(tileData.Len()),
		AddressedTilesCount: uint64(len(entries)),
		TileEntriesCount:    uint64(len(entries)),
		TileContentsCount:   uint64(len(entries)),
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     Gzip,
		TileType:            Mvt,
		MinZoom:             uint8(meta.MinZoom),
		MaxZoom:             uint8(meta.MaxZoom),
		CenterZoom:          uint8(meta.MinZoom),
	}
	h.LeafDirectoryOffset = h.MetadataOffset + h.MetadataLength
	h.LeafDirectoryLength = uint64(len(leaves))
	h.TileDataOffset = h.LeafDirectoryOffset + h.LeafDirectoryLength
	if bounds != nil {
		h.MinLonE7, h.MinLatE7 = e7(bounds.Min)
		h.MaxLonE7, h.MaxLatE7 = e7(bounds.Max)
		h.CenterLonE7, h.CenterLatE7 = e7(bounds.Center())
	}

	var out bytes.Buffer
	out.Grow(int(h.TileDataOffset + h.TileDataLength))
	out.Write(SerializeHeader(h))
	out.Write(root)
	out.Write(metaBytes)
	out.Write(leaves)
	out.Write(tileData.Bytes())
	return out.Bytes(), nil
}

// buildDirectories returns the root directory and, when the entries do not
// fit in maxRoot bytes, the concatenated leaf directories it points to.
// Leaf entries carry RunLength 0 and offsets relative to the leaf section.
func buildDirectories(entries []Entry, maxRoot int) (root, leaves []byte, err error) {
	root, err = SerializeEntries(entries)
	if err != nil || len(root) <= maxRoot {
		return root, nil, err
	}

	for leafSize := 4096; ; leafSize *= 2 {
		var (
			buf   bytes.Buffer
			index []Entry
		)
		for start := 0; start < len(entries); start += leafSize {
			end := min(start+leafSize, len(entries))
			leaf, err := SerializeEntries(entries[start:end])
			if err != nil {
				return nil, nil, err
			}
			index = append(index, Entry{
				TileID: entries[start].TileID,
				Offset: uint64(buf.Len()),
				Length: uint32(len(leaf)),
			})
			buf.Write(leaf)
		}
		if root, err = SerializeEntries(index); err != nil {
			return nil, nil, err
		}
		if len(root) <= maxRoot || len(index) == 1 {
			return root, buf.Bytes(), nil
		}
	}
}

func e7(p orb.Point) (lon, lat int32) {
	return int32(math.Round(p[0] * 1e7)), int32(math.Round(p[1] * 1e7))
}

func gzipJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// SerializeHeader converts a header to its 127-byte form.
func SerializeHeader(h Header) []byte {
	b := make([]byte, HeaderLen)
	copy(b[0:7], "PMTiles")
	b[7] = 3
	le := binary.LittleEndian
	le.PutUint64(b[8:], h.RootOffset)
	le.PutUint64(b[16:], h.RootLength)
	le.PutUint64(b[24:], h.MetadataOffset)
	le.PutUint64(b[32:], h.MetadataLength)
	le.PutUint64(b[40:], h.LeafDirectoryOffset)
	le.PutUint64(b[48:], h.LeafDirectoryLength)
	le.PutUint64(b[56:], h.TileDataOffset)
	le.PutUint64(b[64:], h.TileDataLength)
	le.PutUint64(b[72:], h.AddressedTilesCount)
	le.PutUint64(b[80:], h.TileEntriesCount)
	le.PutUint64(b[88:], h.TileContentsCount)
	if h.Clustered {
		b[96] = 0x1
	}
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	le.PutUint32(b[102:], uint32(h.MinLonE7))
	le.PutUint32(b[106:], uint32(h.MinLatE7))
	le.PutUint32(b[110:], uint32(h.MaxLonE7))
	le.PutUint32(b[114:], uint32(h.MaxLatE7))
	b[118] = h.CenterZoom
	le.PutUint32(b[119:], uint32(h.CenterLonE7))
	le.PutUint32(b[123:], uint32(h.CenterLatE7))
	return b
}

// DeserializeHeader parses a binary header.
func DeserializeHeader(d []byte) (Header, error) {
	var h Header
	if len(d) < HeaderLen {
		return h, errors.New("buffer too small for header")
	}
	if string(d[0:7]) != "PMTiles" {
		return h, errors.New("magic number not detected")
	}
	if d[7] != 3 {
		return h, fmt.Errorf("unsupported version %d", d[7])
	}
	le := binary.LittleEndian
	h.RootOffset = le.Uint64(d[8:])
	h.RootLength = le.Uint64(d[16:])
	h.MetadataOffset = le.Uint64(d[24:])
	h.MetadataLength = le.Uint64(d[32:])
	h.LeafDirectoryOffset = le.Uint64(d[40:])
	h.LeafDirectoryLength = le.Uint64(d[48:])
	h.TileDataOffset = le.Uint64(d[56:])
	h.TileDataLength = le.Uint64(d[64:])
	h.AddressedTilesCount = le.Uint64(d[72:])
	h.TileEntriesCount = le.Uint64(d[80:])
	h.TileContentsCount = le.Uint64(d[88:])
	h.Clustered = d[96] == 0x1
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(le.Uint32(d[102:]))
	h.MinLatE7 = int32(le.Uint32(d[106:]))
	h.MaxLonE7 = int32(le.Uint32(d[110:]))
	h.MaxLatE7 = int32(le.Uint32(d[114:]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(le.Uint32(d[119:]))
	h.CenterLatE7 = int32(le.Uint32(d[123:]))
	return h, nil
}

// SerializeEntries encodes a gzipped root directory.
func SerializeEntries(entries []Entry) ([]byte, error) {
	var b bytes.Buffer
	w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	tmp := make([]byte, binary.MaxVarintLen64)
	put := func(v uint64) {
		n := binary.PutUvarint(tmp, v)
		w.Write(tmp[:n])
	}

	put(uint64(len(entries)))
	lastID := uint64(0)
	for _, e := range entries {
		put(e.TileID - lastID)
		lastID = e.TileID
	}
	for _, e := range entries {
		put(uint64(e.RunLength))
	}
	for _, e := range entries {
		put(uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			put(0)
		} else {
			put(e.Offset + 1)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DeserializeEntries decodes a gzipped directory.
func DeserializeEntries(data []byte) ([]Entry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	r := bufio.NewReader(zr)

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}
	entries := make([]Entry, n)
	read := func(field string, set func(e *Entry, i int, v uint64)) error {
		for i := range entries {
			v, err := binary.ReadUvarint(r)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return fmt.Errorf("%s %d: %w", field, i, err)
			}
			set(&entries[i], i, v)
		}
		return nil
	}

	lastID := uint64(0)
	steps := []struct {
		field string
		set   func(e *Entry, i int, v uint64)
	}{
		{"tile id", func(e *Entry, _ int, v uint64) { lastID += v; e.TileID = lastID }},
		{"run length", func(e *Entry, _ int, v uint64) { e.RunLength = uint32(v) }},
		{"length", func(e *Entry, _ int, v uint64) { e.Length = uint32(v) }},
		{"offset", func(e *Entry, i int, v uint64) {
			if v == 0 && i > 0 {
				e.Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
			} else {
				e.Offset = v - 1
			}
		}},
	}
	for _, step := range steps {
		if err := read(step.field, step.set); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
