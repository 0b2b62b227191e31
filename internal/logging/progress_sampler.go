package logging

import "strings"

const defaultBucketPercent = 5

// ProgressSampler thins progress logging to one line per percentage bucket.
// A stage change starts the buckets over.
type ProgressSampler struct {
	bucketSize float64
	lastStage  string
	lastBucket int
}

// NewProgressSampler builds a sampler with bucketSize-percent buckets
// (5 when bucketSize is not positive).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = defaultBucketPercent
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a sample at percent for stage deserves a log
// line. A negative percent means unknown and only a stage change logs it.
// A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	changed := s.enterStage(strings.TrimSpace(stage))
	if percent < 0 {
		return changed
	}
	bucket := int(min(percent, 100) / s.bucketSize)
	if bucket <= s.lastBucket {
		return changed
	}
	s.lastBucket = bucket
	return true
}

func (s *ProgressSampler) enterStage(stage string) bool {
	if stage == "" || stage == s.lastStage {
		return false
	}
	s.lastStage = stage
	s.lastBucket = -1
	return true
}

// Reset forgets the last stage and bucket.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
}
