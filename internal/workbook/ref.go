package workbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// ColumnName converts a 1-based column index to its letter form (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	var buf []byte
	for col > 0 {
		col--
		buf = append([]byte{byte('A' + col%26)}, buf...)
		col /= 26
	}
	return string(buf)
}

// A1 formats row and column as an A1 reference.
func A1(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row)
}

// ParseA1 parses an A1 reference such as "D2" or "$AB$10" into row and column.
func ParseA1(ref string) (row, col int, err error) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ref), "$", ""))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
		if col > address.MaxColumns {
			return 0, 0, fmt.Errorf("reference %q: column out of range", ref)
		}
	}
	if i == 0 || i == len(s) {
		return 0, 0, fmt.Errorf("reference %q: expected letters followed by digits", ref)
	}
	row, err = strconv.Atoi(s[i:])
	if err != nil || row < 1 || row > address.MaxRows {
		return 0, 0, fmt.Errorf("reference %q: row out of range", ref)
	}
	return row, col, nil
}

func inBounds(row, col int) bool {
	return row >= 1 && row <= address.MaxRows && col >= 1 && col <= address.MaxColumns
}
