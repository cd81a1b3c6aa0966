package fat32test_test

import (
	"io"
	"testing"

	"github.com/mdraven/fat32fs/disk"
	"github.com/mdraven/fat32fs/fat32test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func name11(base string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:8], base)
	return out
}

// smallGeometry trims DefaultGeometry's FAT/total-sector sizes down so
// tests that don't care about the literal scenario values aren't forced to
// allocate a multi-megabyte backing buffer.
func smallGeometry() fat32test.Geometry {
	g := fat32test.DefaultGeometry()
	g.ReservedSectors = 4
	g.FATSize32 = 1
	g.TotalSectors = 64
	return g
}

func TestImage_BuildsADiskThatInitializesAndListsFiles(t *testing.T) {
	img := fat32test.New(smallGeometry())
	img.WriteRootEntry(0, name11("LOG-1"), 0x20, 21, 11)
	img.WriteClusterData(21, []byte("log line 1\n"))
	img.MarkEndOfChain(21)

	reader, writer := img.BlockDevice()
	d := disk.New(reader, writer)
	require.NoError(t, d.Init())

	it, err := d.ListRootFiles()
	require.NoError(t, err)

	batch, err := it.Next()
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "LOG-1", batch[0].Name)
	assert.EqualValues(t, 21, batch[0].StartCluster())

	stream, err := d.ReadFileInChunks(batch[0])
	require.NoError(t, err)
	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "log line 1\n", string(chunk))
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestImage_ChainedClustersLinkCorrectly(t *testing.T) {
	img := fat32test.New(smallGeometry())
	img.WriteRootEntry(0, name11("BIG"), 0x20, 30, 600)
	img.WriteClusterData(30, []byte("first cluster payload..."))
	img.LinkCluster(30, 31)
	img.WriteClusterData(31, []byte("tail"))
	img.MarkEndOfChain(31)

	reader, writer := img.BlockDevice()
	d := disk.New(reader, writer)
	require.NoError(t, d.Init())

	it, err := d.ListRootFiles()
	require.NoError(t, err)
	batch, err := it.Next()
	require.NoError(t, err)
	require.Len(t, batch, 1)

	stream, err := d.ReadFileInChunks(batch[0])
	require.NoError(t, err)

	var total int
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		total += len(chunk)
	}
	assert.Equal(t, 600, total)
}
