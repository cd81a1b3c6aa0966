package clusterstream_test

import (
	"io"
	"testing"

	"github.com/mdraven/fat32fs/blockio"
	"github.com/mdraven/fat32fs/bpb"
	"github.com/mdraven/fat32fs/clusterstream"
	"github.com/mdraven/fat32fs/fat32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDevice struct {
	blocks map[uint32]blockio.Block
}

func newMemDevice(numBlocks uint32) *memDevice {
	d := &memDevice{blocks: make(map[uint32]blockio.Block)}
	for i := uint32(0); i < numBlocks; i++ {
		d.blocks[i] = blockio.Block{}
	}
	return d
}

func (d *memDevice) ReadBlock(index uint32) (blockio.Block, error) {
	return d.blocks[index], nil
}

func (d *memDevice) WriteBlock(index uint32, data blockio.Block) error {
	d.blocks[index] = data
	return nil
}

func testBPB() *bpb.BiosParameterBlock {
	return &bpb.BiosParameterBlock{
		BytesPerSector:    blockio.BlockSize,
		SectorsPerCluster: 1,
		NumFATs:           1,
		FATSize:           1,
		FATStartSector:    1,
		DataStartSector:   2,
		BytesPerCluster:   blockio.BlockSize,
	}
}

func writeClusterContent(t *testing.T, dev *memDevice, bpbInfo *bpb.BiosParameterBlock, cluster uint32, content []byte) {
	t.Helper()
	sector := bpbInfo.DataStartSector + (cluster-2)*(bpbInfo.BytesPerCluster/bpbInfo.BytesPerSector)
	var block blockio.Block
	copy(block[:], content)
	require.NoError(t, dev.WriteBlock(sector, block))
}

func TestClusterStream_ReadsSingleClusterFileTruncatedToSize(t *testing.T) {
	dev := newMemDevice(10)
	bio := blockio.New(dev, dev)
	bpbInfo := testBPB()
	table := fat32.New(bio, bpbInfo, 0)
	require.NoError(t, table.WriteFatEntry(2, fat32.EOCWrite))

	content := append([]byte("hello"), make([]byte, blockio.BlockSize-5)...)
	writeClusterContent(t, dev, bpbInfo, 2, content)

	stream := clusterstream.New(bio, bpbInfo, table, 0, 2, 5)
	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClusterStream_FollowsChainAcrossMultipleClusters(t *testing.T) {
	dev := newMemDevice(10)
	bio := blockio.New(dev, dev)
	bpbInfo := testBPB()
	table := fat32.New(bio, bpbInfo, 0)
	require.NoError(t, table.WriteFatEntry(2, 3))
	require.NoError(t, table.WriteFatEntry(3, fat32.EOCWrite))

	first := make([]byte, blockio.BlockSize)
	copy(first, []byte("AAAA"))
	second := append([]byte("BB"), make([]byte, blockio.BlockSize-2)...)
	writeClusterContent(t, dev, bpbInfo, 2, first)
	writeClusterContent(t, dev, bpbInfo, 3, second)

	fileSize := int64(blockio.BlockSize + 2)
	stream := clusterstream.New(bio, bpbInfo, table, 0, 2, fileSize)

	chunk1, err := stream.Next()
	require.NoError(t, err)
	assert.Len(t, chunk1, blockio.BlockSize)
	assert.Equal(t, "AAAA", string(chunk1[:4]))

	chunk2, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "BB", string(chunk2))

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClusterStream_ZeroLengthFileIsImmediatelyDone(t *testing.T) {
	dev := newMemDevice(10)
	bio := blockio.New(dev, dev)
	bpbInfo := testBPB()
	table := fat32.New(bio, bpbInfo, 0)

	stream := clusterstream.New(bio, bpbInfo, table, 0, 0, 0)
	_, err := stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}
