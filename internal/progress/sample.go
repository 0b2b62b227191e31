package progress

import (
	"os"
	"strings"
)

// Sample is one observation of a monitored stage.
type Sample struct {
	Done  int
	Total int
}

// Fraction returns Done/Total clamped to [0,1]. An unknown total reports 0.
func (s Sample) Fraction() float64 {
	if s.Total <= 0 || s.Done <= 0 {
		return 0
	}
	if s.Done >= s.Total {
		return 1
	}
	return float64(s.Done) / float64(s.Total)
}

// Percent returns Fraction scaled to 0-100.
func (s Sample) Percent() float64 {
	return s.Fraction() * 100
}

// CountFunc counts the artifacts currently present in dir.
type CountFunc func(dir string) (int, error)

// CountArtifacts counts regular, non-hidden files in dir. Files that are
// still being written are counted too, which can briefly overstate progress.
func CountArtifacts(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		count++
	}
	return count, nil
}
