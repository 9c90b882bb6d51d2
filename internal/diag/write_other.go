//go:build !unix

package diag

import "os"

func writeStderr(b []byte) {
	_, _ = os.Stderr.Write(b)
}
