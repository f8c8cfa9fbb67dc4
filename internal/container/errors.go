package container

import "errors"

// ErrInvalidModule is the sentinel spec §7 calls "Structural" failures:
// bad magic, truncated file, unknown version, a TOC entry out of range, or
// a section that overflows the file. The reader refuses to produce any
// derived state when this is returned.
var ErrInvalidModule = errors.New("container: invalid module")
