package protocol

import "strings"

// VersionFieldLen is the width of the version field at RegVersion.
const VersionFieldLen = 16

// Version is the firmware version as served over the bus: at most
// VersionFieldLen-1 bytes so a master reading the whole field always finds a
// terminating zero.
type Version struct {
	buf [VersionFieldLen]byte
	n   int
}

// ParseVersion shortens a `git describe` string for the version field: a
// leading "v" is dropped, everything from a "-g<hash>" suffix on is cut, and
// the rest is truncated to the field width.
func ParseVersion(raw string) Version {
	s := strings.TrimPrefix(raw, "v")
	if i := strings.Index(s, "-g"); i >= 0 {
		s = s[:i]
	}
	var v Version
	v.n = copy(v.buf[:VersionFieldLen-1], s)
	return v
}

// ByteAt returns byte i of the field, zero past the end of the string.
func (v Version) ByteAt(i int) byte {
	if i < 0 || i >= v.n {
		return 0
	}
	return v.buf[i]
}

// Len returns the number of version characters.
func (v Version) Len() int {
	return v.n
}

func (v Version) String() string {
	return string(v.buf[:v.n])
}
