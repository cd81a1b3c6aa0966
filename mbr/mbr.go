// Package mbr parses a Master Boot Record partition table and selects the
// active partition this driver treats as a FAT32 filesystem.
package mbr

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/mdraven/fat32fs/errors"
)

// NumPartitionEntries is the fixed number of partition slots in an MBR.
const NumPartitionEntries = 4

const (
	partitionTableOffset = 446
	partitionEntrySize   = 16
)

// rawPartitionEntry is the on-disk 16-byte layout of a single MBR partition
// table entry, decoded field-by-field with encoding/binary the same way
// the teacher's NewFATBootSectorFromStream decodes the BPB.
type rawPartitionEntry struct {
	BootFlag   uint8
	StartCHS   [3]byte
	Type       uint8
	EndCHS     [3]byte
	StartLBA   uint32
	NumSectors uint32
}

// PartitionEntry is a single entry in the MBR partition table.
type PartitionEntry struct {
	BootFlag   byte
	StartCHS   [3]byte
	Type       byte
	EndCHS     [3]byte
	StartLBA   uint32
	NumSectors uint32
}

// IsEmpty reports whether this entry describes no partition at all.
func (p PartitionEntry) IsEmpty() bool {
	return p.NumSectors == 0
}

// ParsePartitions reads the four 16-byte partition entries out of sector0,
// the first sector of the block device, at offsets 446, 462, 478, and 494.
func ParsePartitions(sector0 []byte) ([NumPartitionEntries]PartitionEntry, error) {
	var entries [NumPartitionEntries]PartitionEntry

	if len(sector0) < partitionTableOffset+NumPartitionEntries*partitionEntrySize {
		return entries, errors.ErrMalformedOnDisk.WithMessage("sector 0 is too short to hold a partition table")
	}

	for i := 0; i < NumPartitionEntries; i++ {
		start := partitionTableOffset + i*partitionEntrySize
		end := start + partitionEntrySize

		var raw rawPartitionEntry
		reader := bytes.NewReader(sector0[start:end])
		if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
			return entries, errors.ErrIOFailed.WrapError(err)
		}

		entries[i] = PartitionEntry{
			BootFlag:   raw.BootFlag,
			StartCHS:   raw.StartCHS,
			Type:       raw.Type,
			EndCHS:     raw.EndCHS,
			StartLBA:   raw.StartLBA,
			NumSectors: raw.NumSectors,
		}
	}

	return entries, nil
}

// SelectActivePartition returns the partition with the largest NumSectors,
// tie-broken by the smallest StartLBA. If every entry is empty, this
// reports ErrMalformedOnDisk rather than guessing (§9 Open Question 3).
func SelectActivePartition(entries [NumPartitionEntries]PartitionEntry) (PartitionEntry, error) {
	candidates := make([]PartitionEntry, NumPartitionEntries)
	copy(candidates, entries[:])

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].NumSectors != candidates[j].NumSectors {
			return candidates[i].NumSectors > candidates[j].NumSectors
		}
		return candidates[i].StartLBA < candidates[j].StartLBA
	})

	best := candidates[0]
	if best.IsEmpty() {
		return PartitionEntry{}, errors.ErrMalformedOnDisk.WithMessage(
			"partition table has no non-empty entries")
	}
	return best, nil
}
