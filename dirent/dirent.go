// Package dirent encodes and decodes 32-byte FAT directory entries,
// generalizing the teacher lineage's read-only RawDirent/Dirent split
// (file_systems/fat/dirent.go) with the encode direction the append/create
// write paths need.
package dirent

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/mdraven/fat32fs/errors"
)

// EntrySize is the size of a single raw directory entry, in bytes.
const EntrySize = 32

// Attr is the directory entry attribute bitfield.
type Attr uint8

const (
	AttrReadOnly    Attr = 0x01
	AttrHidden      Attr = 0x02
	AttrSystem      Attr = 0x04
	AttrVolumeLabel Attr = 0x08
	AttrDirectory   Attr = 0x10
	AttrArchive     Attr = 0x20
	AttrDevice      Attr = 0x40
	AttrReserved    Attr = 0x80

	// AttrLongName marks an entry as an LFN fragment rather than a short
	// (8.3) entry.
	AttrLongName Attr = 0x0F
)

const (
	freeMarker    = 0x00
	deletedMarker = 0xE5
)

// fatEpoch is the earliest representable FAT timestamp, 1980-01-01
// 00:00:00.
var fatEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// File is the user-friendly materialization of a directory entry.
type File struct {
	Name           string
	Attr           Attr
	NTReserved     uint8
	CreatedAt      time.Time
	LastAccessDate time.Time
	ModifiedAt     time.Time
	FirstClusterHi uint16
	FirstClusterLo uint16
	FileSize       uint32

	// IsLFN reports whether this entry is a long-file-name fragment
	// (attr == AttrLongName) rather than a short 8.3 entry. LFN
	// reassembly into a Unicode name is out of scope; consumers filter on
	// this flag instead (§9 Open Question 4).
	IsLFN bool

	// ByteOffset is the partition-relative byte offset at which this
	// entry's 32 raw bytes physically live, so the writer can rewrite the
	// size field without re-scanning the directory.
	ByteOffset int64
}

// StartCluster returns the file's first cluster, reassembled from the high
// and low cluster-number halves.
func (f File) StartCluster() uint32 {
	return (uint32(f.FirstClusterHi) << 16) | uint32(f.FirstClusterLo)
}

// SetStartCluster splits cluster into the high/low halves stored on disk.
func (f *File) SetStartCluster(cluster uint32) {
	f.FirstClusterHi = uint16(cluster >> 16)
	f.FirstClusterLo = uint16(cluster & 0xFFFF)
}

// rawDirent is the on-disk layout of a single 32-byte directory entry.
type rawDirent struct {
	Name              [8]byte
	Extension         [3]byte
	AttributeFlags    uint8
	NTReserved        uint8
	CreatedTimeTenths uint8
	CreatedTime       uint16
	CreatedDate       uint16
	LastAccessDate    uint16
	FirstClusterHi    uint16
	WriteTime         uint16
	WriteDate         uint16
	FirstClusterLo    uint16
	FileSize          uint32
}

func decodeRawDirent(data []byte) rawDirent {
	return rawDirent{
		AttributeFlags:    data[11],
		NTReserved:        data[12],
		CreatedTimeTenths: data[13],
		CreatedTime:       binary.LittleEndian.Uint16(data[14:16]),
		CreatedDate:       binary.LittleEndian.Uint16(data[16:18]),
		LastAccessDate:    binary.LittleEndian.Uint16(data[18:20]),
		FirstClusterHi:    binary.LittleEndian.Uint16(data[20:22]),
		WriteTime:         binary.LittleEndian.Uint16(data[22:24]),
		WriteDate:         binary.LittleEndian.Uint16(data[24:26]),
		FirstClusterLo:    binary.LittleEndian.Uint16(data[26:28]),
		FileSize:          binary.LittleEndian.Uint32(data[28:32]),
	}
}

// unpackDate converts a packed FAT date into its year/month/day parts.
func unpackDate(value uint16) (year int, month time.Month, day int) {
	day = int(value & 0x1F)
	month = time.Month((value >> 5) & 0x0F)
	year = int((value>>9)&0x7F) + 1980
	return
}

// unpackTime converts a packed FAT time into hour/minute/second, at 2-second
// resolution.
func unpackTime(value uint16) (hour, minute, second int) {
	hour = int(value >> 11)
	minute = int((value >> 5) & 0x3F)
	second = int(value&0x1F) * 2
	return
}

func packedToTime(datePart, timePart uint16) time.Time {
	if datePart == 0 {
		return time.Time{}
	}
	year, month, day := unpackDate(datePart)
	hour, minute, second := unpackTime(timePart)
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

// packDate packs a time.Time into a FAT date word. Times before fatEpoch
// cannot be represented and pack to 0, a lossy-but-accepted round-trip for
// unrepresentable values.
func packDate(t time.Time) uint16 {
	if t.Before(fatEpoch) {
		return 0
	}
	return uint16(t.Day()) | uint16(t.Month())<<5 | uint16(t.Year()-1980)<<9
}

// packTime packs a time.Time into a FAT time word at 2-second resolution.
func packTime(t time.Time) uint16 {
	if t.Before(fatEpoch) {
		return 0
	}
	return uint16(t.Second()/2) | uint16(t.Minute())<<5 | uint16(t.Hour())<<11
}

func decodeName(raw rawDirent, nameBytes, extBytes [11]byte) string {
	name := strings.TrimRight(asciiString(nameBytes[:8]), " ")
	ext := strings.TrimRight(asciiString(nameBytes[8:11]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func asciiString(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			out[i] = '_'
		} else {
			out[i] = c
		}
	}
	return string(out)
}

// ParseDirectoryEntries iterates buffer 32 bytes at a time, starting each
// entry's ByteOffset at startingByteOffset. It halts at the first entry
// whose first byte is 0x00 (returning hitEnd=true) and skips deleted
// entries (first byte 0xE5).
func ParseDirectoryEntries(buffer []byte, startingByteOffset int64) (files []File, hitEnd bool, err error) {
	for i := 0; i+EntrySize <= len(buffer); i += EntrySize {
		entryBytes := buffer[i : i+EntrySize]

		switch entryBytes[0] {
		case freeMarker:
			return files, true, nil
		case deletedMarker:
			continue
		}

		var nameBytes [11]byte
		copy(nameBytes[:], entryBytes[0:11])

		raw := decodeRawDirent(entryBytes)
		attr := Attr(raw.AttributeFlags)

		file := File{
			Name:           decodeName(raw, nameBytes, nameBytes),
			Attr:           attr,
			NTReserved:     raw.NTReserved,
			CreatedAt:      packedToTime(raw.CreatedDate, raw.CreatedTime),
			LastAccessDate: packedToTime(raw.LastAccessDate, 0),
			ModifiedAt:     packedToTime(raw.WriteDate, raw.WriteTime),
			FirstClusterHi: raw.FirstClusterHi,
			FirstClusterLo: raw.FirstClusterLo,
			FileSize:       raw.FileSize,
			IsLFN:          attr == AttrLongName,
			ByteOffset:     startingByteOffset + int64(i),
		}

		files = append(files, file)
	}

	return files, false, nil
}

// EncodeDirectoryEntry packs f into its 32-byte on-disk representation.
// Names whose base part is longer than 8 characters or whose extension is
// longer than 3 are rejected with ErrNameTooLong; callers are expected to
// have already validated the name.
//
// The fields are serialized in on-disk order through a bytewriter.Writer
// wrapping out, one binary.Write call per field, the same sequential-fill
// idiom the teacher lineage uses to build fixed-size on-disk buffers
// (file_systems/unixv1/format.go's bytewriter.New(outputSlice)).
func EncodeDirectoryEntry(f File) ([EntrySize]byte, error) {
	var out [EntrySize]byte

	nameField, extField, err := split83(f.Name)
	if err != nil {
		return out, err
	}

	w := bytewriter.New(out[:])

	binary.Write(w, binary.LittleEndian, nameField)
	binary.Write(w, binary.LittleEndian, extField)
	binary.Write(w, binary.LittleEndian, byte(f.Attr))
	binary.Write(w, binary.LittleEndian, f.NTReserved)
	binary.Write(w, binary.LittleEndian, byte(0)) // CreatedTimeTenths: sub-second resolution not modeled
	binary.Write(w, binary.LittleEndian, packTime(f.CreatedAt))
	binary.Write(w, binary.LittleEndian, packDate(f.CreatedAt))
	binary.Write(w, binary.LittleEndian, packDate(f.LastAccessDate))
	binary.Write(w, binary.LittleEndian, f.FirstClusterHi)
	binary.Write(w, binary.LittleEndian, packTime(f.ModifiedAt))
	binary.Write(w, binary.LittleEndian, packDate(f.ModifiedAt))
	binary.Write(w, binary.LittleEndian, f.FirstClusterLo)
	binary.Write(w, binary.LittleEndian, f.FileSize)

	return out, nil
}

// split83 splits name into its padded 8-byte base and 3-byte extension
// fields.
func split83(name string) (base [8]byte, ext [3]byte, err error) {
	for i := range base {
		base[i] = ' '
	}
	for i := range ext {
		ext[i] = ' '
	}

	baseStr, extStr, _ := strings.Cut(name, ".")
	baseStr = strings.ToUpper(baseStr)
	extStr = strings.ToUpper(extStr)

	if len(baseStr) > 8 || len(extStr) > 3 {
		return base, ext, errors.ErrNameTooLong.WithMessage(name)
	}

	copy(base[:], baseStr)
	copy(ext[:], extStr)
	return base, ext, nil
}

// Normalize83 upper-cases name and validates it fits the 8.3 short-name
// format, returning the exact string EncodeDirectoryEntry/
// ParseDirectoryEntries will agree on.
func Normalize83(name string) (string, error) {
	base, ext, err := split83(name)
	if err != nil {
		return "", err
	}
	return decodeName(rawDirent{}, base83to11(base, ext), [11]byte{}), nil
}

func base83to11(base [8]byte, ext [3]byte) [11]byte {
	var out [11]byte
	copy(out[0:8], base[:])
	copy(out[8:11], ext[:])
	return out
}
