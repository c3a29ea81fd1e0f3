//go:build !unix && !windows

package netxlite

func classifySyscallError(err error) string {
	return ""
}
