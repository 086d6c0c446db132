package vault

import (
	"path"
	"strings"
)

// BackupPath places a copy of srcPath under folder, preserving the source's
// parent directories: P/img.png with folder B becomes B/P/img.png.
// Consecutive slashes collapse and a leading slash is dropped.
func BackupPath(folder, srcPath string) string {
	joined := folder + "/" + srcPath
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	joined = strings.TrimPrefix(joined, "/")
	return path.Clean(joined)
}

// WriteBackup copies the original bytes before the note rewrite so a crash
// cannot leave a note pointing at a CID whose local original is gone.
func (v *Vault) WriteBackup(folder, srcPath string, data []byte) (string, error) {
	dst := BackupPath(folder, srcPath)
	if err := v.Write(dst, data); err != nil {
		return "", err
	}
	return dst, nil
}
