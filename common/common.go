package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/shirou/gopsutil/cpu"
)

// Number of workers used when none is configured: logical CPUs as reported
// by the host, falling back to the Go runtime's view.
func DefaultThreads() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Set the number of kernel threads running worker goroutines. n <= 0 keeps
// the current setting. Returns the previous value.
func SetKernelThreads(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return runtime.GOMAXPROCS(n)
}

func StartCPUProfile(cpuFile string) (func(), error) {
	// Create file to store the profile
	cpuProfileFile, err := os.Create(cpuFile)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile file: %w", err)
	}

	// Start CPU profiling
	if err := pprof.StartCPUProfile(cpuProfileFile); err != nil {
		cpuProfileFile.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		cpuProfileFile.Close()
	}, nil
}

func WriteMemoryProfile(memFile string) error {
	memProfileFile, err := os.Create(memFile)
	if err != nil {
		return fmt.Errorf("creating memory profile file: %w", err)
	}
	defer memProfileFile.Close()

	runtime.GC() // Run garbage collection to get accurate memory usage
	if err := pprof.WriteHeapProfile(memProfileFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	return nil
}

func IsHidden(path string) bool {
	// Get the base name of the file or directory
	name := filepath.Base(path)

	// Unix-style hidden files; "." and ".." name the directory itself
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
