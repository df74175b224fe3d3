//go:build !unix && !windows

package csvfile

import "os"

// Platforms without advisory locks serialize writers within the process only.
func tryLock(*os.File) error { return nil }

func unlock(*os.File) error { return nil }
