//go:build !dc1394
// +build !dc1394

package dc1394

// New creates a libdc1394 context.  This build has no libdc1394 support.
func New() (Context, error) {
	return nil, ErrNotCompiled
}
