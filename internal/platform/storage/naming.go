package storage

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// ObjectName builds "{owner}-{fraction}.{ext}" for an uploaded file. The
// extension is whatever follows the last dot of filename; a name without a dot
// is used whole as the extension. rnd defaults to math/rand.
func ObjectName(owner, filename string, rnd func() float64) string {
	if rnd == nil {
		rnd = rand.Float64
	}
	ext := filename
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		ext = filename[i+1:]
	}
	fraction := strconv.FormatFloat(rnd(), 'f', -1, 64)
	return owner + "-" + fraction + "." + ext
}
