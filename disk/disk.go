// Package disk is the top-level façade this driver exposes: a single
// Init, then ListRootFiles/ReadFileInChunks/AppendToFile/CreateFile, all
// gated on having successfully initialized.
//
// Grounded on the teacher lineage's file_systems/fat/driverbase.go FATDriver
// struct, which holds a FATDriverCommon plus a backing file handle and
// delegates all I/O through readAbsoluteSectors/readCluster, generalized
// here into the narrower façade spec.md names.
package disk

import (
	"io"

	"github.com/mdraven/fat32fs/blockio"
	"github.com/mdraven/fat32fs/bpb"
	"github.com/mdraven/fat32fs/clusterstream"
	"github.com/mdraven/fat32fs/dirent"
	"github.com/mdraven/fat32fs/errors"
	"github.com/mdraven/fat32fs/fat32"
	"github.com/mdraven/fat32fs/mbr"
	"github.com/mdraven/fat32fs/writer"
)

// Disk is a FAT32 filesystem mounted atop an injected block device.
type Disk struct {
	io            *blockio.BlockIO
	bpbInfo       *bpb.BiosParameterBlock
	table         *fat32.FatTable
	writer        *writer.Writer
	partitionBase int64
	partitionType byte
	initialised   bool
}

// New constructs a Disk over the given block device. Init must be called
// before any other operation.
func New(reader blockio.BlockReader, w blockio.BlockWriter) *Disk {
	return &Disk{io: blockio.New(reader, w)}
}

// Reads reports how many blocks have been read from the underlying device
// since construction.
func (d *Disk) Reads() uint64 { return d.io.Reads }

// Writes reports how many blocks have been written to the underlying
// device since construction.
func (d *Disk) Writes() uint64 { return d.io.Writes }

// Init reads the MBR partition table, selects the active partition, reads
// its BPB, and prepares this Disk for use.
func (d *Disk) Init() error {
	sector0, err := d.io.ReadBlockAt(0)
	if err != nil {
		return err
	}

	entries, err := mbr.ParsePartitions(sector0[:])
	if err != nil {
		return err
	}

	active, err := mbr.SelectActivePartition(entries)
	if err != nil {
		return err
	}

	partitionBase := int64(active.StartLBA) * blockio.BlockSize

	bpbSector, err := d.io.ReadBlockAt(partitionBase)
	if err != nil {
		return err
	}

	bpbInfo, err := bpb.Parse(bpbSector[:])
	if err != nil {
		return err
	}

	d.bpbInfo = bpbInfo
	d.partitionBase = partitionBase
	d.partitionType = active.Type
	d.table = fat32.New(d.io, bpbInfo, partitionBase)
	d.writer = writer.New(d.io, bpbInfo, d.table, partitionBase)
	d.initialised = true

	return nil
}

// PartitionType returns the active partition's MBR type byte.
func (d *Disk) PartitionType() byte { return d.partitionType }

func (d *Disk) requireInitialised() error {
	if !d.initialised {
		return errors.ErrNotInitialised.WithMessage("Disk.Init has not been called")
	}
	return nil
}

// RootFileIterator lazily yields batches of directory entries, one
// cluster's worth at a time, following the root directory's full cluster
// chain.
type RootFileIterator struct {
	d       *Disk
	cluster uint32
	done    bool
}

// ListRootFiles returns a lazy, per-cluster iterator over the root
// directory's entries.
func (d *Disk) ListRootFiles() (*RootFileIterator, error) {
	if err := d.requireInitialised(); err != nil {
		return nil, err
	}
	return &RootFileIterator{d: d, cluster: d.bpbInfo.RootCluster}, nil
}

// Next returns the next cluster's worth of directory entries. It returns
// io.EOF once the root directory's chain is exhausted or a 0x00 terminator
// has been reached.
func (it *RootFileIterator) Next() ([]dirent.File, error) {
	if it.done {
		return nil, io.EOF
	}

	offset := it.d.partitionBase + it.d.bpbInfo.ClusterByteOffset(it.cluster)
	sectorsPerCluster := it.d.bpbInfo.BytesPerCluster / it.d.bpbInfo.BytesPerSector

	buf := make([]byte, 0, it.d.bpbInfo.BytesPerCluster)
	for sector := uint32(0); sector < sectorsPerCluster; sector++ {
		block, err := it.d.io.ReadBlockAt(offset + int64(sector)*blockio.BlockSize)
		if err != nil {
			return nil, err
		}
		buf = append(buf, block[:]...)
	}

	files, hitEnd, err := dirent.ParseDirectoryEntries(buf, offset-it.d.partitionBase)
	if err != nil {
		return nil, err
	}

	if hitEnd {
		it.done = true
		return files, nil
	}

	next, isLast, err := it.d.table.NextCluster(it.cluster)
	if err != nil {
		return nil, err
	}
	if isLast {
		it.done = true
		return files, nil
	}

	it.cluster = next
	return files, nil
}

// ReadFileInChunks returns a lazy, per-cluster byte stream over file's
// contents, yielding exactly file.FileSize bytes in total.
func (d *Disk) ReadFileInChunks(file dirent.File) (*clusterstream.ClusterStream, error) {
	if err := d.requireInitialised(); err != nil {
		return nil, err
	}
	return clusterstream.New(d.io, d.bpbInfo, d.table, d.partitionBase, file.StartCluster(), int64(file.FileSize)), nil
}

// AppendToFile appends data to file, extending its cluster chain as
// needed, and persists the updated size to its directory entry. file is
// updated in place.
func (d *Disk) AppendToFile(file *dirent.File, data []byte) error {
	if err := d.requireInitialised(); err != nil {
		return err
	}
	return d.writer.AppendToFile(file, data)
}

// CreateFile allocates a fresh, empty file named name in the root
// directory.
func (d *Disk) CreateFile(name string) (*dirent.File, error) {
	if err := d.requireInitialised(); err != nil {
		return nil, err
	}
	return d.writer.CreateFile(d.bpbInfo.RootCluster, name)
}
