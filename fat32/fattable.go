// Package fat32 implements the FAT32 File Allocation Table itself: cluster
// chain traversal, free-cluster search, and entry writes mirrored across
// every on-disk FAT copy.
//
// Grounded on the teacher lineage's file_systems/fat/driverbase.go
// listClusters/getClusterInChain chain-walking idiom, generalized here from
// a read-only traversal into the allocating, mutating table spec.md
// requires.
package fat32

import (
	"encoding/binary"

	"github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"

	"github.com/mdraven/fat32fs/blockio"
	"github.com/mdraven/fat32fs/bpb"
	"github.com/mdraven/fat32fs/errors"
)

const (
	// ClusterMask isolates the 28 significant bits of a FAT32 cluster
	// entry; the top 4 bits are reserved and must be preserved on write.
	ClusterMask = 0x0FFFFFFF

	// EOCMin is the smallest value that marks the end of a cluster chain.
	EOCMin = 0x0FFFFFF8

	// EOCWrite is the end-of-chain marker this driver writes when
	// terminating a chain.
	EOCWrite = 0x0FFFFFFF

	// FreeCluster marks a FAT entry as unallocated.
	FreeCluster = 0x00000000

	// BadCluster marks a cluster as defective and unusable.
	BadCluster = 0x0FFFFFF7

	bytesPerFATEntry = 4
)

// FatTable is a handle onto a FAT32 File Allocation Table, including all of
// its mirrored copies.
//
// It keeps an in-memory allocation bitmap mirroring which clusters are free,
// grounded on drivers/common/allocatormap.go's Allocator, so repeated
// FindFreeEntry calls don't re-read the whole primary FAT from the block
// device every time. The bitmap is built lazily, on the first call that
// needs it, and kept in sync by every WriteFatEntry afterward.
type FatTable struct {
	io            *blockio.BlockIO
	bpbInfo       *bpb.BiosParameterBlock
	partitionBase int64

	freeBitmap  bitmap.Bitmap
	bitmapReady bool
}

// New constructs a FatTable over the partition described by bpbInfo, whose
// first byte lives at partitionBase within the underlying block device.
func New(io *blockio.BlockIO, bpbInfo *bpb.BiosParameterBlock, partitionBase int64) *FatTable {
	return &FatTable{io: io, bpbInfo: bpbInfo, partitionBase: partitionBase}
}

// totalEntries returns how many 4-byte slots the FAT holds in total.
func (t *FatTable) totalEntries() uint32 {
	return (t.bpbInfo.FATSize * t.bpbInfo.BytesPerSector) / bytesPerFATEntry
}

// ensureBitmap builds the free-cluster bitmap by scanning the primary FAT
// once, if it hasn't been built yet. It reads each FAT sector a single
// time and classifies every entry the sector holds from the in-memory
// buffer, rather than re-fetching a block per cluster.
func (t *FatTable) ensureBitmap() error {
	if t.bitmapReady {
		return nil
	}

	total := t.totalEntries()
	bm := bitmap.New(int(total))

	entriesPerSector := blockio.BlockSize / bytesPerFATEntry
	fatBase := t.partitionBase + t.bpbInfo.FATTableByteOffset()

	for cluster := uint32(2); cluster < total; {
		sectorOffset := fatBase + int64(cluster/uint32(entriesPerSector))*blockio.BlockSize
		block, err := t.io.ReadBlockAt(sectorOffset)
		if err != nil {
			return err
		}

		startWithinSector := int(cluster) % entriesPerSector
		for within := startWithinSector; within < entriesPerSector && cluster < total; within++ {
			entry := binary.LittleEndian.Uint32(block[within*bytesPerFATEntry : within*bytesPerFATEntry+bytesPerFATEntry])
			if !IsFree(entry) {
				bm.Set(int(cluster), true)
			}
			cluster++
		}
	}

	t.freeBitmap = bm
	t.bitmapReady = true
	return nil
}

// IsEndOfChain reports whether entry marks the end of a cluster chain.
func IsEndOfChain(entry uint32) bool {
	return entry&ClusterMask >= EOCMin
}

// IsFree reports whether entry marks its cluster as unallocated.
func IsFree(entry uint32) bool {
	return entry&ClusterMask == FreeCluster
}

// readEntry reads the raw 32-bit FAT entry at the given cluster number from
// the primary FAT copy.
func (t *FatTable) readEntry(cluster uint32) (uint32, error) {
	byteOffset := t.partitionBase + t.bpbInfo.FATTableByteOffset() + int64(cluster)*bytesPerFATEntry
	block, err := t.io.ReadBlockAt(byteOffset)
	if err != nil {
		return 0, err
	}

	within := int(byteOffset % blockio.BlockSize)
	if within+bytesPerFATEntry > blockio.BlockSize {
		return 0, errors.ErrIOFailed.WithMessage("FAT entry straddles a block boundary")
	}

	return binary.LittleEndian.Uint32(block[within : within+bytesPerFATEntry]), nil
}

// NextCluster returns the cluster that follows cluster in its chain. If
// cluster is the chain's last, it returns (0, true, nil).
func (t *FatTable) NextCluster(cluster uint32) (next uint32, isLast bool, err error) {
	entry, err := t.readEntry(cluster)
	if err != nil {
		return 0, false, err
	}
	if IsEndOfChain(entry) {
		return 0, true, nil
	}
	return entry & ClusterMask, false, nil
}

// LastClusterOf walks the chain beginning at startCluster and returns its
// final cluster.
func (t *FatTable) LastClusterOf(startCluster uint32) (uint32, error) {
	current := startCluster
	for {
		next, isLast, err := t.NextCluster(current)
		if err != nil {
			return 0, err
		}
		if isLast {
			return current, nil
		}
		current = next
	}
}

// FindFreeEntry returns the first unallocated cluster at or after cluster 2,
// consulting (and if necessary first building) the in-memory allocation
// bitmap rather than re-reading the FAT from disk on every call.
func (t *FatTable) FindFreeEntry() (uint32, error) {
	if err := t.ensureBitmap(); err != nil {
		return 0, err
	}

	total := t.totalEntries()
	for cluster := uint32(2); cluster < total; cluster++ {
		if !t.freeBitmap.Get(int(cluster)) {
			return cluster, nil
		}
	}

	return 0, errors.ErrDiskFull.WithMessage("no free clusters remain in the FAT")
}

// WriteFatEntry writes value (masked to its 28 significant bits) into the
// FAT entry for cluster, across every mirrored FAT copy. The write to copy
// 0, the primary FAT, is authoritative: a failure there is returned
// immediately and no other copy is touched. Failures writing the remaining
// mirror copies are non-fatal and aggregated into a single *multierror.Error
// so every copy is still attempted.
func (t *FatTable) WriteFatEntry(cluster uint32, value uint32) error {
	var mirrorErrs *multierror.Error

	for copyIndex := uint8(0); copyIndex < t.bpbInfo.NumFATs; copyIndex++ {
		err := t.writeFatEntryInCopy(copyIndex, cluster, value)
		if copyIndex == 0 {
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			mirrorErrs = multierror.Append(mirrorErrs, err)
		}
	}

	if t.bitmapReady {
		t.freeBitmap.Set(int(cluster), !IsFree(value))
	}

	return mirrorErrs.ErrorOrNil()
}

func (t *FatTable) writeFatEntryInCopy(copyIndex uint8, cluster uint32, value uint32) error {
	byteOffset := t.partitionBase + t.bpbInfo.FATCopyByteOffset(copyIndex) + int64(cluster)*bytesPerFATEntry

	block, err := t.io.ReadBlockAt(byteOffset)
	if err != nil {
		return err
	}

	within := int(byteOffset % blockio.BlockSize)
	if within+bytesPerFATEntry > blockio.BlockSize {
		return errors.ErrIOFailed.WithMessage("FAT entry straddles a block boundary")
	}

	existing := binary.LittleEndian.Uint32(block[within : within+bytesPerFATEntry])
	reservedBits := existing &^ ClusterMask
	merged := reservedBits | (value & ClusterMask)

	binary.LittleEndian.PutUint32(block[within:within+bytesPerFATEntry], merged)

	return t.io.WriteBlockAt(byteOffset, block)
}

// AllocateAfter finds a free cluster, links it after tailCluster (whose
// current entry must already be an end-of-chain marker), and marks the new
// cluster as the chain's new end. It returns the newly allocated cluster.
func (t *FatTable) AllocateAfter(tailCluster uint32) (uint32, error) {
	free, err := t.FindFreeEntry()
	if err != nil {
		return 0, err
	}

	if err := t.WriteFatEntry(free, EOCWrite); err != nil {
		return 0, err
	}
	if err := t.WriteFatEntry(tailCluster, free); err != nil {
		return 0, err
	}

	return free, nil
}

// AllocateNew finds a free cluster and marks it as a fresh, unlinked
// single-cluster chain (its own end of chain), for use as a brand new
// file's first cluster.
func (t *FatTable) AllocateNew() (uint32, error) {
	free, err := t.FindFreeEntry()
	if err != nil {
		return 0, err
	}
	if err := t.WriteFatEntry(free, EOCWrite); err != nil {
		return 0, err
	}
	return free, nil
}
