//go:build !unix

package file

import "sync"

var processLock sync.Mutex

// lockFile serializes updaters inside this process only; there is no flock
// on this platform.
func lockFile(string) (func(), error) {
	processLock.Lock()
	return processLock.Unlock, nil
}
