package builtin

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

func formatSize(size uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(size, 10)
	}

	return humanize.IBytes(size)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
