//go:build unix

package storage

import (
	"io/fs"
	"os/user"
	"strconv"
	"syscall"
)

// fileOwnerName returns the account name owning the file. Files owned by a
// uid without an account are unresolved.
func fileOwnerName(info fs.FileInfo) (string, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", false
	}

	account, err := user.LookupId(strconv.FormatUint(uint64(stat.Uid), 10))
	if err != nil || account.Username == "" {
		return "", false
	}
	return account.Username, true
}
