package invoice

import (
	"fmt"
	"strconv"
	"strings"
)

const numberPrefix = "INV-"

// FormatNumber renders sequence position n as an invoice number, zero-padded
// to four digits and growing naturally past 9999 (INV-10000).
func FormatNumber(n int) string {
	return fmt.Sprintf("%s%04d", numberPrefix, n)
}

// SequenceOf extracts the numeric position of an invoice number. Empty or
// unparseable numbers read as 0, so the sequence starts over from INV-0001.
func SequenceOf(number string) int {
	if number == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(number, numberPrefix))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NextNumber computes the invoice number following last, for example
// INV-0001 -> INV-0002.
func NextNumber(last string) string {
	return FormatNumber(SequenceOf(last) + 1)
}
