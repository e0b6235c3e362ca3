package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultEntryPrefix = "JE"

// FormatEntryNumber renders e.g. JE-2026-000042. Sequences past 999999 grow
// wider, so order entries by their stored sequence, not by number text.
func FormatEntryNumber(prefix string, year int, seq int64) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultEntryPrefix
	}
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// ParseEntryNumber splits an entry number into its prefix, year and sequence.
func ParseEntryNumber(number string) (string, int, int64, error) {
	idx := strings.LastIndex(number, "-")
	if idx <= 0 {
		return "", 0, 0, ErrInvalidEntryNumber
	}
	head, seqPart := number[:idx], number[idx+1:]
	yearIdx := strings.LastIndex(head, "-")
	if yearIdx <= 0 {
		return "", 0, 0, ErrInvalidEntryNumber
	}
	prefix, yearPart := head[:yearIdx], head[yearIdx+1:]

	year, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return "", 0, 0, ErrInvalidEntryNumber
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil || seq <= 0 {
		return "", 0, 0, ErrInvalidEntryNumber
	}
	return prefix, year, seq, nil
}
