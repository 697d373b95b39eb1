// Package silence keeps collaborator calls from writing to the process's
// standard streams while the stdio transport is using them.
package silence

import (
	"io"
	"log"
	"os"
	"sync"
)

// streams is the process-wide redirection. The first active Run installs it
// and the last one to leave restores what was there before.
var streams struct {
	mu      sync.Mutex
	active  int
	devNull *os.File

	stdout, stderr *os.File
	logOut         io.Writer
	logFlags       int
}

// Run calls fn with os.Stdout and os.Stderr pointed at the null device and the
// std logger discarded. The previous streams are restored on every exit path,
// including a panic in fn, which is re-raised after restoration.
//
// Concurrent calls share one redirection and run in parallel; the streams come
// back once the last of them returns.
//
// Only package-level variables are swapped. A writer that captured os.Stdout
// before the call (the transport) keeps writing to the real stream.
func Run(fn func() error) error {
	if err := enter(); err != nil {
		return fn()
	}
	defer leave()
	return fn()
}

func enter() error {
	streams.mu.Lock()
	defer streams.mu.Unlock()

	if streams.active == 0 {
		devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		streams.devNull = devNull
		streams.stdout, streams.stderr = os.Stdout, os.Stderr
		streams.logOut, streams.logFlags = log.Writer(), log.Flags()
		os.Stdout, os.Stderr = devNull, devNull
		log.SetOutput(io.Discard)
	}
	streams.active++
	return nil
}

func leave() {
	streams.mu.Lock()
	defer streams.mu.Unlock()

	streams.active--
	if streams.active > 0 {
		return
	}
	os.Stdout, os.Stderr = streams.stdout, streams.stderr
	log.SetOutput(streams.logOut)
	log.SetFlags(streams.logFlags)
	_ = streams.devNull.Close()
	streams.devNull, streams.stdout, streams.stderr, streams.logOut = nil, nil, nil, nil
}
