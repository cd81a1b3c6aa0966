// Package fat32test builds small, synthetic FAT32 disk images entirely in
// memory, for use as a fixture in this driver's own tests and in consumers
// of the disk package.
//
// Grounded on the teacher's testing/images.go (LoadDiskImage), which wraps
// a raw byte buffer in a bytesextra.NewReadWriteSeeker to hand tests a
// seekable stream without touching the filesystem; this package builds the
// buffer itself instead of decompressing one, then exposes it through
// blockio.FromReadWriterAt the same way disk.Disk expects to be wired.
package fat32test

import (
	"encoding/binary"
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/mdraven/fat32fs/blockio"
)

// Geometry describes the FAT32 test image to build. All of it is assumed
// to describe a single partition starting at LBA 1, matching spec.md §8's
// literal scenario values.
type Geometry struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	NumFATs           uint8
	ReservedSectors   uint16
	FATSize32         uint32
	RootCluster       uint32
	TotalSectors      uint32
	PartitionType     byte
}

// DefaultGeometry mirrors spec.md §8's literal test image: 512-byte
// sectors, one sector per cluster, two FAT copies of 1008 sectors each,
// root directory at cluster 2.
func DefaultGeometry() Geometry {
	return Geometry{
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		NumFATs:           2,
		ReservedSectors:   32,
		FATSize32:         1008,
		RootCluster:       2,
		TotalSectors:      131071,
		PartitionType:     0x0B,
	}
}

// Image is an in-memory FAT32 disk image under construction.
type Image struct {
	geometry      Geometry
	buf           []byte
	partitionBase int64
}

const partitionStartLBA = 1

// New allocates a zeroed image large enough to hold geometry's partition,
// with its MBR and BPB already written.
func New(geometry Geometry) *Image {
	bytesPerSector := int(geometry.BytesPerSector)
	totalBytes := (partitionStartLBA + int(geometry.TotalSectors)) * bytesPerSector

	img := &Image{
		geometry:      geometry,
		buf:           make([]byte, totalBytes),
		partitionBase: int64(partitionStartLBA) * int64(bytesPerSector),
	}

	img.writeMBR()
	img.writeBPB()
	return img
}

func (img *Image) writeMBR() {
	const partitionTableOffset = 446
	entry := img.buf[partitionTableOffset : partitionTableOffset+16]
	entry[4] = img.geometry.PartitionType
	binary.LittleEndian.PutUint32(entry[8:12], partitionStartLBA)
	binary.LittleEndian.PutUint32(entry[12:16], img.geometry.TotalSectors)
}

func (img *Image) writeBPB() {
	g := img.geometry
	sector := img.partitionSector(0)

	binary.LittleEndian.PutUint16(sector[11:13], g.BytesPerSector)
	sector[13] = g.SectorsPerCluster
	binary.LittleEndian.PutUint16(sector[14:16], g.ReservedSectors)
	sector[16] = g.NumFATs
	binary.LittleEndian.PutUint32(sector[36:40], g.FATSize32)
	binary.LittleEndian.PutUint32(sector[44:48], g.RootCluster)
	binary.LittleEndian.PutUint16(sector[48:50], 1) // FSInfoSector
}

// partitionSector returns a slice over the nth 512-byte sector relative to
// the partition's own start.
func (img *Image) partitionSector(n uint32) []byte {
	bytesPerSector := int(img.geometry.BytesPerSector)
	start := img.partitionBase + int64(n)*int64(bytesPerSector)
	return img.buf[start : start+int64(bytesPerSector)]
}

// WriteRootEntry writes one 32-byte directory entry into the root
// directory's first cluster at the given entry index (0-based).
func (img *Image) WriteRootEntry(index int, name [11]byte, attr byte, startCluster uint32, size uint32) {
	sector := img.clusterSector(img.geometry.RootCluster, 0)
	entry := sector[index*32 : index*32+32]
	copy(entry[0:11], name[:])
	entry[11] = attr
	binary.LittleEndian.PutUint16(entry[20:22], uint16(startCluster>>16))
	binary.LittleEndian.PutUint16(entry[26:28], uint16(startCluster&0xFFFF))
	binary.LittleEndian.PutUint32(entry[28:32], size)
}

// WriteClusterData writes content into the given cluster, starting at its
// first byte.
func (img *Image) WriteClusterData(cluster uint32, content []byte) {
	sector := img.clusterSector(cluster, 0)
	copy(sector, content)
}

// MarkEndOfChain writes the end-of-chain marker into cluster's primary FAT
// entry (and every mirror copy).
func (img *Image) MarkEndOfChain(cluster uint32) {
	img.writeFATEntry(cluster, 0x0FFFFFFF)
}

// LinkCluster writes next into cluster's primary FAT entry (and every
// mirror copy), extending a chain.
func (img *Image) LinkCluster(cluster, next uint32) {
	img.writeFATEntry(cluster, next)
}

func (img *Image) writeFATEntry(cluster uint32, value uint32) {
	g := img.geometry

	for copyIndex := uint8(0); copyIndex < g.NumFATs; copyIndex++ {
		fatStart := uint32(g.ReservedSectors) + uint32(copyIndex)*g.FATSize32
		byteOffset := int64(fatStart)*int64(g.BytesPerSector) + int64(cluster)*4
		sectorIndex := uint32(byteOffset / int64(g.BytesPerSector))
		within := int(byteOffset % int64(g.BytesPerSector))

		sector := img.partitionSector(sectorIndex)
		binary.LittleEndian.PutUint32(sector[within:within+4], value)
	}
}

// clusterSector returns a slice over the sectorIndex'th sector (0-based)
// within the given cluster.
func (img *Image) clusterSector(cluster uint32, sectorIndex uint32) []byte {
	g := img.geometry
	dataStartSector := uint32(g.ReservedSectors) + uint32(g.NumFATs)*g.FATSize32
	sector := dataStartSector + (cluster-2)*uint32(g.SectorsPerCluster) + sectorIndex
	return img.partitionSector(sector)
}

// BlockDevice returns a BlockReader/BlockWriter pair backed by the image's
// buffer, the way disk.New expects to be wired.
func (img *Image) BlockDevice() (blockio.BlockReader, blockio.BlockWriter) {
	rw := bytesextra.NewReadWriteSeeker(img.buf)

	randomAccess, ok := rw.(interface {
		io.ReaderAt
		io.WriterAt
	})
	if !ok {
		panic("fat32test: bytesextra.NewReadWriteSeeker result does not implement ReaderAt/WriterAt")
	}

	return blockio.FromReadWriterAt(randomAccess)
}

// Bytes returns the raw underlying buffer, mainly for test assertions.
func (img *Image) Bytes() []byte {
	return img.buf
}
