package dirent_test

import (
	"testing"
	"time"

	"github.com/mdraven/fat32fs/dirent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildEntry writes one 32-byte raw directory entry into buffer at the given
// offset, using the same field layout dirent.go decodes.
func buildEntry(buffer []byte, offset int, name [11]byte, attr byte, firstCluster uint32, size uint32) {
	entry := buffer[offset : offset+32]
	copy(entry[0:11], name[:])
	entry[11] = attr
	putU16(entry[20:22], uint16(firstCluster>>16))
	putU16(entry[26:28], uint16(firstCluster&0xFFFF))
	putU32(entry[28:32], size)
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func name11(base, ext string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[0:8], base)
	copy(out[8:11], ext)
	return out
}

// TestParseDirectoryEntries_S2S3 mirrors spec.md §8's literal scenario
// values: a directory entry "DRIVE" with attr 0x28 and an empty (cluster 0,
// size 0) start, followed by "LOG-1" at startCluster=21, size=11.
func TestParseDirectoryEntries_S2S3(t *testing.T) {
	buffer := make([]byte, 64)
	buildEntry(buffer, 0, name11("DRIVE", ""), 0x28, 0, 0)
	buildEntry(buffer, 32, name11("LOG-1", ""), 0x20, 21, 11)

	files, hitEnd, err := dirent.ParseDirectoryEntries(buffer, 0)
	require.NoError(t, err)
	assert.False(t, hitEnd)
	require.Len(t, files, 2)

	assert.Equal(t, "DRIVE", files[0].Name)
	assert.Equal(t, dirent.Attr(0x28), files[0].Attr)
	assert.EqualValues(t, 0, files[0].StartCluster())
	assert.EqualValues(t, 0, files[0].FileSize)

	assert.Equal(t, "LOG-1", files[1].Name)
	assert.EqualValues(t, 21, files[1].StartCluster())
	assert.EqualValues(t, 11, files[1].FileSize)
}

func TestParseDirectoryEntries_HaltsAtFreeMarker(t *testing.T) {
	buffer := make([]byte, 96)
	buildEntry(buffer, 0, name11("LOG-1", ""), 0x20, 21, 11)
	// buffer[32] left as all-zero: first byte 0x00 terminates.
	buildEntry(buffer, 64, name11("GHOST", ""), 0x20, 99, 1)

	files, hitEnd, err := dirent.ParseDirectoryEntries(buffer, 0)
	require.NoError(t, err)
	assert.True(t, hitEnd)
	require.Len(t, files, 1)
	assert.Equal(t, "LOG-1", files[0].Name)
}

func TestParseDirectoryEntries_SkipsDeletedEntries(t *testing.T) {
	buffer := make([]byte, 64)
	buildEntry(buffer, 0, name11("LOG-1", ""), 0x20, 21, 11)
	buildEntry(buffer, 32, name11("OLDONE", ""), 0x20, 5, 3)
	buffer[32] = 0xE5 // mark second entry deleted

	files, hitEnd, err := dirent.ParseDirectoryEntries(buffer, 0)
	require.NoError(t, err)
	assert.False(t, hitEnd)
	require.Len(t, files, 1)
	assert.Equal(t, "LOG-1", files[0].Name)
}

func TestParseDirectoryEntries_ClassifiesLFNFragments(t *testing.T) {
	buffer := make([]byte, 32)
	buildEntry(buffer, 0, name11("LFNFRAG", ""), byte(dirent.AttrLongName), 0, 0)

	files, _, err := dirent.ParseDirectoryEntries(buffer, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].IsLFN)
}

// TestEncodeDecodeRoundTrip covers spec.md §8's P4: encoding and re-decoding
// a directory entry preserves every field a writer cares about.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := dirent.File{
		Name:       "LOG-1",
		Attr:       dirent.AttrArchive,
		CreatedAt:  time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC),
		ModifiedAt: time.Date(2023, time.June, 16, 11, 0, 0, 0, time.UTC),
		FileSize:   11,
	}
	original.SetStartCluster(21)

	raw, err := dirent.EncodeDirectoryEntry(original)
	require.NoError(t, err)

	decoded, hitEnd, err := dirent.ParseDirectoryEntries(raw[:], 0)
	require.NoError(t, err)
	assert.False(t, hitEnd)
	require.Len(t, decoded, 1)

	assert.Equal(t, "LOG-1", decoded[0].Name)
	assert.Equal(t, dirent.AttrArchive, decoded[0].Attr)
	assert.EqualValues(t, 21, decoded[0].StartCluster())
	assert.EqualValues(t, 11, decoded[0].FileSize)
	assert.Equal(t, original.CreatedAt, decoded[0].CreatedAt)
	assert.Equal(t, original.ModifiedAt, decoded[0].ModifiedAt)
}

func TestEncodeDirectoryEntry_NameTooLong(t *testing.T) {
	_, err := dirent.EncodeDirectoryEntry(dirent.File{Name: "WAYTOOLONGNAME"})
	require.Error(t, err)
}

func TestNormalize83_UppercasesName(t *testing.T) {
	normalized, err := dirent.Normalize83("new")
	require.NoError(t, err)
	assert.Equal(t, "NEW", normalized)

	normalized, err = dirent.Normalize83("log-1.txt")
	require.NoError(t, err)
	assert.Equal(t, "LOG-1.TXT", normalized)
}

func TestEncodeDirectoryEntry_TimestampBeforeEpochPacksToZero(t *testing.T) {
	f := dirent.File{Name: "OLD", CreatedAt: time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)}
	raw, err := dirent.EncodeDirectoryEntry(f)
	require.NoError(t, err)

	decoded, _, err := dirent.ParseDirectoryEntries(raw[:], 0)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.True(t, decoded[0].CreatedAt.IsZero())
}
