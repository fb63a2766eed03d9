package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

const swoInfix = "-SWO-"

// ProjectSuffix is the text after the last '-' of a project number, or the
// whole number when it has none.
func ProjectSuffix(projectNumber string) string {
	n := strings.TrimSpace(projectNumber)
	if i := strings.LastIndex(n, "-"); i >= 0 && i < len(n)-1 {
		return n[i+1:]
	}
	return strings.TrimSuffix(n, "-")
}

// FormatSWONo builds "<suffix>-SWO-<3-digit-seq>".
func FormatSWONo(suffix string, seq int) string {
	return fmt.Sprintf("%s%s%03d", suffix, swoInfix, seq)
}

// ParseSWOSeq extracts the sequence number of an SWO number.
func ParseSWOSeq(swoNo string) (int, bool) {
	i := strings.LastIndex(swoNo, swoInfix)
	if i < 0 {
		return 0, false
	}
	seq, err := strconv.Atoi(swoNo[i+len(swoInfix):])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextSWOSeq returns one past the highest sequence among existing numbers.
func NextSWOSeq(existing []string) int {
	highest := 0
	for _, no := range existing {
		if seq, ok := ParseSWOSeq(no); ok && seq > highest {
			highest = seq
		}
	}
	return highest + 1
}
