package blockio_test

import (
	"testing"

	"github.com/mdraven/fat32fs/blockio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	blocks    map[uint32]blockio.Block
	readonly  bool
	failRead  bool
	failWrite bool
}

func newFakeDevice(totalBlocks int) *fakeDevice {
	return &fakeDevice{blocks: make(map[uint32]blockio.Block, totalBlocks)}
}

func (d *fakeDevice) ReadBlock(index uint32) (blockio.Block, error) {
	if d.failRead {
		return blockio.Block{}, assert.AnError
	}
	return d.blocks[index], nil
}

func (d *fakeDevice) WriteBlock(index uint32, data blockio.Block) error {
	if d.failWrite {
		return assert.AnError
	}
	d.blocks[index] = data
	return nil
}

func TestBlockIO_ReadBlockAt_FloorsOffsetToBlockIndex(t *testing.T) {
	dev := newFakeDevice(4)
	var want blockio.Block
	copy(want[:], "hello world")
	dev.blocks[2] = want

	bio := blockio.New(dev, dev)

	got, err := bio.ReadBlockAt(2*blockio.BlockSize + 37)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.EqualValues(t, 1, bio.Reads)
}

func TestBlockIO_WriteBlockAt_IncrementsCounterAndPersists(t *testing.T) {
	dev := newFakeDevice(4)
	bio := blockio.New(dev, dev)

	var data blockio.Block
	copy(data[:], "payload")

	require.NoError(t, bio.WriteBlockAt(3*blockio.BlockSize, data))
	assert.EqualValues(t, 1, bio.Writes)

	got, err := bio.ReadBlockAt(3 * blockio.BlockSize)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestBlockIO_ReadOnlyMode_RejectsWriteBeforeAnyIO(t *testing.T) {
	dev := newFakeDevice(4)
	dev.failWrite = true

	bio := blockio.New(dev, nil)
	assert.True(t, bio.ReadOnly())

	err := bio.WriteBlockAt(0, blockio.Block{})
	require.Error(t, err)
	assert.EqualValues(t, 0, bio.Writes)
}

func TestBlockIO_ReadFailurePropagatesAsIOFailure(t *testing.T) {
	dev := newFakeDevice(1)
	dev.failRead = true
	bio := blockio.New(dev, dev)

	_, err := bio.ReadBlockAt(0)
	require.Error(t, err)
}
