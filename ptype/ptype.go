// Package ptype maps MBR partition-type bytes to human-readable names, for
// diagnostics and the CLI's stat sub-command.
//
// Grounded on the teacher's disks.GetPredefinedDiskGeometry
// (disks/disks.go): an embedded CSV loaded once at init time via
// gocsv.UnmarshalToCallback into a package-level map, with duplicate rows
// rejected the same way.
package ptype

import (
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

//go:embed partition-types.csv
var partitionTypesRawCSV string

type partitionTypeRow struct {
	TypeByte string `csv:"type_byte"`
	Name     string `csv:"name"`
}

var partitionTypes map[byte]string

func init() {
	partitionTypes = make(map[byte]string)

	reader := strings.NewReader(partitionTypesRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row partitionTypeRow) error {
		value, err := strconv.ParseUint(strings.TrimPrefix(row.TypeByte, "0x"), 16, 8)
		if err != nil {
			return fmt.Errorf("partition-types.csv: invalid type_byte %q: %w", row.TypeByte, err)
		}

		typeByte := byte(value)
		if _, exists := partitionTypes[typeByte]; exists {
			return fmt.Errorf("partition-types.csv: duplicate definition for type byte %#x", typeByte)
		}
		partitionTypes[typeByte] = row.Name
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// Name returns the human-readable name registered for typeByte, or false if
// the byte isn't recognized. An unrecognized type byte never invalidates a
// partition; this lookup is purely informational.
func Name(typeByte byte) (string, bool) {
	name, ok := partitionTypes[typeByte]
	return name, ok
}
