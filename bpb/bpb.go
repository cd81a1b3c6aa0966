// Package bpb parses the FAT32 BIOS Parameter Block and exposes the
// geometry derived from it, the way the teacher lineage's
// NewFATBootSectorFromStream turns a raw boot sector into a FATBootSector.
package bpb

import (
	"bytes"
	"encoding/binary"

	"github.com/mdraven/fat32fs/errors"
)

// rawBPB is the on-disk layout of a FAT32 boot sector's BPB and its
// FAT32-only extension, decoded in one binary.Read the way the teacher's
// RawFATBootSectorWithBPB/RawFAT32BootSector pair is, except unified into a
// single struct since this driver only ever interprets FAT32 (the
// FAT12/FAT16 split the teacher carries is an explicit Non-goal here).
type rawBPB struct {
	JmpBoot           [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectorCnt uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	FATSize16         uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	// FAT32-only extension.
	FATSize32        uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	DriveNumber      uint8
	Reserved1        uint8
	BootSignature    uint8
	VolumeID         uint32
	VolumeLabel      [11]byte
	FileSystemType   [8]byte
}

// BiosParameterBlock is the processed form of a FAT32 BPB, exposing the
// derived geometry spec.md §4.3 names.
type BiosParameterBlock struct {
	BytesPerSector      uint32
	SectorsPerCluster   uint32
	ReservedSectorCount uint32
	NumFATs             uint8
	TotalSectors        uint32
	FATSize             uint32
	RootCluster         uint32
	FSInfoSector        uint16
	BackupBootSector    uint16
	VolumeLabel         string

	// Derived geometry.
	BytesPerCluster  uint32
	FATStartSector   uint32
	DataStartSector  uint32
}

// Parse decodes the first 90-ish bytes of sector, the first sector of the
// active partition, into a BiosParameterBlock.
func Parse(sector []byte) (*BiosParameterBlock, error) {
	var raw rawBPB
	reader := bytes.NewReader(sector)
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return nil, errors.ErrIOFailed.WrapError(err)
	}

	if raw.BytesPerSector == 0 {
		return nil, errors.ErrMalformedOnDisk.WithMessage("BytesPerSector is 0")
	}
	if raw.SectorsPerCluster == 0 {
		return nil, errors.ErrMalformedOnDisk.WithMessage("SectorsPerCluster is 0")
	}
	if raw.NumFATs == 0 {
		return nil, errors.ErrMalformedOnDisk.WithMessage("NumFATs is 0")
	}

	fatSize := uint32(raw.FATSize16)
	if fatSize == 0 {
		fatSize = raw.FATSize32
	}
	if fatSize == 0 {
		return nil, errors.ErrMalformedOnDisk.WithMessage("FAT size is 0 in both FATSize16 and FATSize32")
	}

	totalSectors := uint32(raw.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = raw.TotalSectors32
	}

	bytesPerSector := uint32(raw.BytesPerSector)
	sectorsPerCluster := uint32(raw.SectorsPerCluster)
	fatStartSector := uint32(raw.ReservedSectorCnt)
	dataStartSector := fatStartSector + uint32(raw.NumFATs)*fatSize

	return &BiosParameterBlock{
		BytesPerSector:      bytesPerSector,
		SectorsPerCluster:   sectorsPerCluster,
		ReservedSectorCount: uint32(raw.ReservedSectorCnt),
		NumFATs:             raw.NumFATs,
		TotalSectors:        totalSectors,
		FATSize:             fatSize,
		RootCluster:         raw.RootCluster,
		FSInfoSector:        raw.FSInfoSector,
		BackupBootSector:    raw.BackupBootSector,
		VolumeLabel:         string(bytes.TrimRight(raw.VolumeLabel[:], " ")),
		BytesPerCluster:     bytesPerSector * sectorsPerCluster,
		FATStartSector:      fatStartSector,
		DataStartSector:     dataStartSector,
	}, nil
}

// FATTableByteOffset returns the partition-relative byte offset of the
// primary FAT's first sector.
func (b *BiosParameterBlock) FATTableByteOffset() int64 {
	return int64(b.FATStartSector) * int64(b.BytesPerSector)
}

// FATCopyByteOffset returns the partition-relative byte offset of the
// first sector of the copyIndex'th FAT (0-based; 0 is the primary copy).
func (b *BiosParameterBlock) FATCopyByteOffset(copyIndex uint8) int64 {
	return int64(b.FATStartSector+uint32(copyIndex)*b.FATSize) * int64(b.BytesPerSector)
}

// DataSectorBytesOffset returns the partition-relative byte offset of the
// start of the data region (cluster 2).
func (b *BiosParameterBlock) DataSectorBytesOffset() int64 {
	return int64(b.DataStartSector) * int64(b.BytesPerSector)
}

// ClusterByteOffset returns the partition-relative byte offset of the given
// cluster's first byte. cluster must be >= 2.
func (b *BiosParameterBlock) ClusterByteOffset(cluster uint32) int64 {
	return b.DataSectorBytesOffset() + int64(cluster-2)*int64(b.BytesPerCluster)
}
