// Package clusterstream provides a lazy, pull-based byte stream over a
// file's cluster chain, reading one cluster at a time rather than
// precomputing the whole chain up front.
//
// Grounded on the teacher lineage's drivers/common/basicstream/basicstream.go
// (BasicStream's block-cache-backed, linear-address-converting reader) and
// file_systems/fat/driverbase.go's ReadFile, which loops cluster by cluster
// and truncates the final cluster to the file's exact byte length.
package clusterstream

import (
	"io"

	"github.com/mdraven/fat32fs/blockio"
	"github.com/mdraven/fat32fs/bpb"
	"github.com/mdraven/fat32fs/fat32"
)

// ClusterStream reads a file's contents one cluster at a time, following
// its FAT chain lazily: Next only looks up the following cluster when the
// current one has been fully consumed.
type ClusterStream struct {
	io      *blockio.BlockIO
	bpbInfo *bpb.BiosParameterBlock
	table   *fat32.FatTable

	partitionBase int64
	current       uint32
	bytesRemaining int64
	done          bool
}

// New constructs a stream over the cluster chain beginning at startCluster,
// yielding exactly fileSize bytes in total (the final cluster is truncated
// to whatever is left over).
func New(io *blockio.BlockIO, bpbInfo *bpb.BiosParameterBlock, table *fat32.FatTable, partitionBase int64, startCluster uint32, fileSize int64) *ClusterStream {
	return &ClusterStream{
		io:             io,
		bpbInfo:        bpbInfo,
		table:          table,
		partitionBase:  partitionBase,
		current:        startCluster,
		bytesRemaining: fileSize,
		done:           fileSize == 0,
	}
}

// Next returns the next chunk of the file, up to one cluster's worth of
// bytes. It returns io.EOF, with a nil chunk, once the file's exact byte
// length has been exhausted.
func (s *ClusterStream) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	clusterBytes, err := s.readCluster(s.current)
	if err != nil {
		return nil, err
	}

	chunk := clusterBytes
	if int64(len(chunk)) > s.bytesRemaining {
		chunk = chunk[:s.bytesRemaining]
	}
	s.bytesRemaining -= int64(len(chunk))

	if s.bytesRemaining <= 0 {
		s.done = true
		return chunk, nil
	}

	next, isLast, err := s.table.NextCluster(s.current)
	if err != nil {
		return nil, err
	}
	if isLast {
		// The chain ended before the declared file size was reached;
		// what we have is all there is.
		s.done = true
		return chunk, nil
	}

	s.current = next
	return chunk, nil
}

// readCluster reads one full cluster's raw bytes.
func (s *ClusterStream) readCluster(cluster uint32) ([]byte, error) {
	offset := s.partitionBase + s.bpbInfo.ClusterByteOffset(cluster)
	buf := make([]byte, 0, s.bpbInfo.BytesPerCluster)

	for read := uint32(0); read < s.bpbInfo.BytesPerCluster; read += blockio.BlockSize {
		block, err := s.io.ReadBlockAt(offset + int64(read))
		if err != nil {
			return nil, err
		}
		buf = append(buf, block[:]...)
	}

	return buf, nil
}
