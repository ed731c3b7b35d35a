package pyext

import (
	"fmt"
	"os"
	"sync"
)

// workdirMu serializes changes of the process working directory.
var workdirMu sync.Mutex

// withWorkingDir runs fn with dir as the process working directory and
// restores the previous one before returning, whatever fn returns.
//
// A failure to restore is reported only when fn itself succeeded.
func withWorkingDir(dir string, fn func() error) (err error) {
	workdirMu.Lock()
	defer workdirMu.Unlock()

	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("change to %s: %w", dir, err)
	}
	defer func() {
		if rerr := os.Chdir(prev); rerr != nil && err == nil {
			err = fmt.Errorf("restore working directory %s: %w", prev, rerr)
		}
	}()

	return fn()
}
