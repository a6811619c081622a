// Package archive classifies filenames into the roles used throughout the
// unpack pipeline: core archive entry points, secondary split segments, and
// plain payload files. Classification is derived from the filename alone, so
// a file's role can be recomputed at any point without touching the disk.
package archive

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// First segment of a multi-part 7z family, e.g. data.7z.001.
	sevenZipFirstRe = regexp.MustCompile(`\.7z\.001$`)

	// Secondary split-segment suffixes that must never reach the output:
	// .r00/.r01..., .001/.002..., .z01/.z02..., .7z.001/.7z.002...
	splitSegmentRe = regexp.MustCompile(`(\.r\d+|\.\d{3}|\.z\d{2}|\.7z\.\d{3})$`)
)

// IsCore reports whether name is the entry point of a (possibly multi-part)
// archive family. Single-part .rar/.zip/.7z files are core, as is the .7z.001
// first segment of a split 7z set. Every other split suffix (.r01, .z02,
// .7z.002, ...) and every non-archive file is not core.
func IsCore(name string) bool {
	n := strings.ToLower(filepath.Base(name))
	if strings.HasSuffix(n, ".rar") || strings.HasSuffix(n, ".zip") || strings.HasSuffix(n, ".7z") {
		return true
	}
	return sevenZipFirstRe.MatchString(n)
}

// IsSplitSegment reports whether name looks like a piece of a multi-part
// archive. Note the overlap with IsCore: .7z.001 matches both, and the
// classifier's verdict wins wherever extraction is being decided; this filter
// only governs what may be copied into final output.
func IsSplitSegment(name string) bool {
	return splitSegmentRe.MatchString(strings.ToLower(filepath.Base(name)))
}

// FamilyKey returns the base identifier shared by all members of an archive
// family: the filename with its final extension stripped. For a multi-part
// first segment the key keeps the format suffix ("data.7z.001" -> "data.7z"),
// which is also the name the destination folder takes.
func FamilyKey(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
