package bpb_test

import (
	"testing"

	"github.com/mdraven/fat32fs/bpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putU16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// buildSector builds a sector matching the literal geometry given in
// spec.md §8's end-to-end scenarios table: bytesPerSector=512,
// sectorsPerCluster=1, numFats=2, fatSize32=1008, rootCluster=2,
// dataStartSector=2048.
func buildSector() []byte {
	sector := make([]byte, 512)
	putU16LE(sector[11:13], 512) // BytesPerSector
	sector[13] = 1               // SectorsPerCluster
	putU16LE(sector[14:16], 32)  // ReservedSectorCount: 2048 - 2*1008
	sector[16] = 2               // NumFATs
	putU32LE(sector[36:40], 1008) // FATSize32
	putU32LE(sector[44:48], 2)    // RootCluster
	putU16LE(sector[48:50], 1)    // FSInfoSector
	return sector
}

func TestParse_DerivesGeometryFromLiteralTestImage(t *testing.T) {
	sector := buildSector()

	b, err := bpb.Parse(sector)
	require.NoError(t, err)

	assert.EqualValues(t, 512, b.BytesPerSector)
	assert.EqualValues(t, 1, b.SectorsPerCluster)
	assert.EqualValues(t, 2, b.NumFATs)
	assert.EqualValues(t, 1008, b.FATSize)
	assert.EqualValues(t, 2, b.RootCluster)
	assert.EqualValues(t, 2048, b.DataStartSector)
	assert.EqualValues(t, 512, b.BytesPerCluster)
	assert.EqualValues(t, 32*512, b.FATTableByteOffset())
	assert.EqualValues(t, 2048*512, b.DataSectorBytesOffset())
}

func TestParse_ClusterByteOffset(t *testing.T) {
	sector := buildSector()
	b, err := bpb.Parse(sector)
	require.NoError(t, err)

	// Cluster 2 is the first data cluster, at the data region's start.
	assert.EqualValues(t, 2048*512, b.ClusterByteOffset(2))
	assert.EqualValues(t, 2048*512+512, b.ClusterByteOffset(3))
}

func TestParse_BytesPerSectorZero_IsMalformed(t *testing.T) {
	sector := buildSector()
	putU16LE(sector[11:13], 0)

	_, err := bpb.Parse(sector)
	require.Error(t, err)
}

func TestParse_SectorsPerClusterZero_IsMalformed(t *testing.T) {
	sector := buildSector()
	sector[13] = 0

	_, err := bpb.Parse(sector)
	require.Error(t, err)
}

func TestParse_SecondFATCopyOffset(t *testing.T) {
	sector := buildSector()
	b, err := bpb.Parse(sector)
	require.NoError(t, err)

	assert.EqualValues(t, 32*512, b.FATCopyByteOffset(0))
	assert.EqualValues(t, (32+1008)*512, b.FATCopyByteOffset(1))
}
