//go:build !unix

package storage

import "io/fs"

func fileOwnerName(fs.FileInfo) (string, bool) {
	return "", false
}
