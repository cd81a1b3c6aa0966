// Package blockio adapts a caller-supplied block device into byte-offset
// reads and writes, the way the teacher lineage's blockcache package adapts
// fetch/flush callbacks into a byte-addressable view.
package blockio

import (
	"io"

	"github.com/mdraven/fat32fs/errors"
)

// BlockSize is the fixed size of a single logical block, in bytes. The
// design only ever operates on 512-byte sectors.
const BlockSize = 512

// Block is the fixed-size unit of I/O this package moves.
type Block = [BlockSize]byte

// BlockReader reads a single block from the backing storage. index is a
// zero-based logical block address.
type BlockReader interface {
	ReadBlock(index uint32) (Block, error)
}

// BlockWriter writes a single block to the backing storage. Implementations
// that only support read-only media should simply not be offered to New.
type BlockWriter interface {
	WriteBlock(index uint32, data Block) error
}

// BlockIO wraps a BlockReader and an optional BlockWriter, exposing
// byte-offset-addressed reads and writes. Callers always pass
// block-aligned offsets; BlockIO floors the division by BlockSize per the
// design.
type BlockIO struct {
	reader BlockReader
	writer BlockWriter

	// Reads and Writes count delegated block operations. They exist for
	// test observability only; they are not synchronization primitives.
	Reads  uint64
	Writes uint64
}

// New creates a BlockIO over reader. writer may be nil to express read-only
// mode; any attempted write then fails with ErrReadOnlyFileSystem before
// any I/O is issued.
func New(reader BlockReader, writer BlockWriter) *BlockIO {
	return &BlockIO{reader: reader, writer: writer}
}

// ReadOnly reports whether this BlockIO was constructed without a writer.
func (b *BlockIO) ReadOnly() bool {
	return b.writer == nil
}

// ReadBlockAt reads the block containing byte offset, returning exactly
// BlockSize bytes.
func (b *BlockIO) ReadBlockAt(offset int64) (Block, error) {
	blockIndex := offset / BlockSize
	data, err := b.reader.ReadBlock(uint32(blockIndex))
	if err != nil {
		return Block{}, errors.ErrIOFailed.WrapError(err)
	}
	b.Reads++
	return data, nil
}

// WriteBlockAt writes data to the block containing byte offset.
func (b *BlockIO) WriteBlockAt(offset int64, data Block) error {
	if b.writer == nil {
		return errors.ErrReadOnlyFileSystem
	}

	blockIndex := offset / BlockSize
	if err := b.writer.WriteBlock(uint32(blockIndex), data); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	b.Writes++
	return nil
}

// readWriterAtDevice adapts an io.ReaderAt (optionally also an io.WriterAt)
// into a BlockReader/BlockWriter pair, the same role xaionaro-go/bytesextra
// plays for the teacher lineage's test harness when it wraps a []byte as an
// io.ReadWriteSeeker.
type readWriterAtDevice struct {
	r io.ReaderAt
	w io.WriterAt
}

func (d readWriterAtDevice) ReadBlock(index uint32) (Block, error) {
	var buf Block
	n, err := d.r.ReadAt(buf[:], int64(index)*BlockSize)
	if err != nil && err != io.EOF {
		return Block{}, err
	}
	if n < BlockSize && err != io.EOF {
		return Block{}, io.ErrUnexpectedEOF
	}
	return buf, nil
}

func (d readWriterAtDevice) WriteBlock(index uint32, data Block) error {
	if d.w == nil {
		return errors.ErrReadOnlyFileSystem
	}
	_, err := d.w.WriteAt(data[:], int64(index)*BlockSize)
	return err
}

// FromReaderAt adapts an io.ReaderAt (e.g. an *os.File opened read-only, or
// a bytesextra.NewReadWriteSeeker-wrapped []byte in tests) into a
// BlockReader.
func FromReaderAt(r io.ReaderAt) BlockReader {
	return readWriterAtDevice{r: r}
}

// FromReadWriterAt adapts an io.ReaderAt+io.WriterAt pair into a
// BlockReader/BlockWriter pair.
func FromReadWriterAt(rw interface {
	io.ReaderAt
	io.WriterAt
}) (BlockReader, BlockWriter) {
	d := readWriterAtDevice{r: rw, w: rw}
	return d, d
}
