//go:build unix

package packer

import (
	"os"
	"syscall"
)

// ownershipOf extracts the real uid/gid from a Lstat result on unix
// platforms, as distri's pack.go pulls device numbers from the same
// syscall.Stat_t.
func ownershipOf(info os.FileInfo) (uid, gid uint32) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return st.Uid, st.Gid
}
