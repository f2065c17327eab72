//go:build !linux

package pipeline

// TotalRAM is not probed on this platform; 0 classifies as generous.
func TotalRAM() uint64 { return 0 }
