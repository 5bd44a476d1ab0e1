package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileID(t *testing.T) {
	tests := []struct {
		tile maptile.Tile
		want uint64
	}{
		{maptile.New(0, 0, 0), 0},
		{maptile.New(0, 0, 1), 1},
		{maptile.New(0, 1, 1), 2},
		{maptile.New(1, 1, 1), 3},
		{maptile.New(1, 0, 1), 4},
		{maptile.New(0, 0, 2), 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TileID(tt.tile), "%v", tt.tile)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		RootOffset:          127,
		RootLength:          20,
		MetadataOffset:      147,
		MetadataLength:      40,
		LeafDirectoryOffset: 187,
		LeafDirectoryLength: 0,
		TileDataOffset:      187,
		TileDataLength:      300,
		AddressedTilesCount: 3,
		TileEntriesCount:    3,
		TileContentsCount:   3,
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     Gzip,
		TileType:            Mvt,
		MaxZoom:             4,
		MinLonE7:            -1800000000,
		MaxLatE7:            850000000,
	}
	b := SerializeHeader(h)
	require.Len(t, b, HeaderLen)
	got, err := DeserializeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = DeserializeHeader(b[:10])
	assert.Error(t, err)
	b[0] = 'X'
	_, err = DeserializeHeader(b)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	tiles := map[maptile.Tile][]byte{
		maptile.New(0, 0, 0): []byte("root"),
		maptile.New(1, 0, 1): []byte("east"),
		maptile.New(0, 0, 1): []byte("west"),
	}
	bounds := orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}}
	data, err := Build(tiles, Metadata{Name: "test", Format: "pbf", MaxZoom: 1}, &bounds)
	require.NoError(t, err)

	h, err := DeserializeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h.TileEntriesCount)
	assert.Zero(t, h.LeafDirectoryLength, "small archives keep every entry in the root")

	root, err := DeserializeEntries(data[h.RootOffset : h.RootOffset+h.RootLength])
	require.NoError(t, err)
	require.Len(t, root, 3)
	assert.Equal(t, []uint64{0, 1, 4}, []uint64{root[0].TileID, root[1].TileID, root[2].TileID})
	assert.Equal(t, int32(-100000000), h.MinLonE7)
	assert.Equal(t, int32(50000000), h.MaxLatE7)

	// Tiles are stored in Hilbert order: 0/0/0, 1/0/0, 1/1/0.
	tileData := data[h.TileDataOffset:]
	assert.Equal(t, "rootwesteast", string(tileData))

	zr, err := gzip.NewReader(bytes.NewReader(data[h.MetadataOffset : h.MetadataOffset+h.MetadataLength]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	var meta Metadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "test", meta.Name)

	_, err = Build(nil, Metadata{}, nil)
	assert.Error(t, err)
}

func sequentialEntries(n int) []Entry {
	entries := make([]Entry, n)
	offset := uint64(0)
	for i := range entries {
		entries[i] = Entry{TileID: uint64(i * 3), Offset: offset, Length: uint32(100 + i%17), RunLength: 1}
		offset += uint64(entries[i].Length)
	}
	return entries
}

func TestDirectoryRoundTrip(t *testing.T) {
	entries := sequentialEntries(50)
	entries[10].Offset = 0 // a non-contiguous entry
	data, err := SerializeEntries(entries)
	require.NoError(t, err)

	got, err := DeserializeEntries(data)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	_, err = DeserializeEntries([]byte("not gzip"))
	assert.Error(t, err)
}

func TestBuildDirectoriesSplitsLeaves(t *testing.T) {
	entries := sequentialEntries(10000)

	root, leaves, err := buildDirectories(entries, 64)
	require.NoError(t, err)
	require.NotEmpty(t, leaves)

	index, err := DeserializeEntries(root)
	require.NoError(t, err)
	require.NotEmpty(t, index)

	var all []Entry
	for _, e := range index {
		assert.Zero(t, e.RunLength, "root entries point at leaves")
		leaf, err := DeserializeEntries(leaves[e.Offset : e.Offset+uint64(e.Length)])
		require.NoError(t, err)
		assert.Equal(t, e.TileID, leaf[0].TileID)
		all = append(all, leaf...)
	}
	assert.Equal(t, entries, all)

	root, leaves, err = buildDirectories(entries[:5], MaxRootLen)
	require.NoError(t, err)
	assert.Nil(t, leaves)
	assert.NotEmpty(t, root)
}
