package writer

import (
	"github.com/mdraven/fat32fs/blockio"
	"github.com/mdraven/fat32fs/dirent"
	"github.com/mdraven/fat32fs/errors"
)

// CreateFile allocates a fresh, single-cluster chain and appends a new
// zero-size, Archive-attributed directory entry for it into the root
// directory chain starting at rootStartCluster, extending that chain by one
// cluster if every existing slot is occupied. The returned File's
// ByteOffset is valid for subsequent AppendToFile calls.
func (w *Writer) CreateFile(rootStartCluster uint32, name string) (*dirent.File, error) {
	normalizedName, err := dirent.Normalize83(name)
	if err != nil {
		return nil, err
	}

	newCluster, err := w.table.AllocateNew()
	if err != nil {
		return nil, err
	}

	slotOffset, err := w.findOrExtendFreeDirectorySlot(rootStartCluster)
	if err != nil {
		return nil, err
	}

	file := dirent.File{
		Name:     normalizedName,
		Attr:     dirent.AttrArchive,
		FileSize: 0,
	}
	file.SetStartCluster(newCluster)
	file.ByteOffset = slotOffset

	if err := w.rewriteDirent(file); err != nil {
		return nil, err
	}

	return &file, nil
}

// findOrExtendFreeDirectorySlot walks the root directory's cluster chain
// looking for the first entry whose first byte is 0x00 (free, and not
// merely deleted). If every cluster in the existing chain is full, the
// chain is extended by one fresh, zeroed cluster, and that cluster's first
// slot is returned.
func (w *Writer) findOrExtendFreeDirectorySlot(rootStartCluster uint32) (int64, error) {
	cluster := rootStartCluster

	for {
		clusterOffset := w.partitionBase + w.bpbInfo.ClusterByteOffset(cluster)

		offset, found, err := w.scanClusterForFreeSlot(clusterOffset)
		if err != nil {
			return 0, err
		}
		if found {
			return offset - w.partitionBase, nil
		}

		next, isLast, err := w.table.NextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if !isLast {
			cluster = next
			continue
		}

		newCluster, err := w.table.AllocateAfter(cluster)
		if err != nil {
			return 0, errors.ErrRootDirFull.WrapError(err)
		}
		if err := w.zeroCluster(newCluster); err != nil {
			return 0, err
		}
		cluster = newCluster
	}
}

// scanClusterForFreeSlot reads one cluster's worth of directory entries
// looking for the first entry whose first byte is 0x00.
func (w *Writer) scanClusterForFreeSlot(clusterOffset int64) (offset int64, found bool, err error) {
	sectorsPerCluster := w.bpbInfo.BytesPerCluster / w.bpbInfo.BytesPerSector

	for sector := uint32(0); sector < sectorsPerCluster; sector++ {
		sectorOffset := clusterOffset + int64(sector)*blockio.BlockSize

		block, err := w.io.ReadBlockAt(sectorOffset)
		if err != nil {
			return 0, false, err
		}

		for within := 0; within+dirent.EntrySize <= blockio.BlockSize; within += dirent.EntrySize {
			if block[within] == 0x00 {
				return sectorOffset + int64(within), true, nil
			}
		}
	}

	return 0, false, nil
}

// zeroCluster overwrites an entire cluster with zero bytes, used to
// initialize a newly allocated root directory cluster so its first slot's
// 0x00 terminator is well-defined.
func (w *Writer) zeroCluster(cluster uint32) error {
	clusterOffset := w.partitionBase + w.bpbInfo.ClusterByteOffset(cluster)
	sectorsPerCluster := w.bpbInfo.BytesPerCluster / w.bpbInfo.BytesPerSector

	var zero blockio.Block
	for sector := uint32(0); sector < sectorsPerCluster; sector++ {
		if err := w.io.WriteBlockAt(clusterOffset+int64(sector)*blockio.BlockSize, zero); err != nil {
			return err
		}
	}
	return nil
}
