package memutils

import "math"

// Statistics summarizes a heap: how many regions it spans and how many objects live in them
type Statistics struct {
	RegionCount int
	ObjectCount int
	RegionBytes int
	ObjectBytes int
}

func (s *Statistics) Clear() {
	s.RegionCount = 0
	s.ObjectCount = 0
	s.RegionBytes = 0
	s.ObjectBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.RegionCount += other.RegionCount
	s.ObjectCount += other.ObjectCount
	s.RegionBytes += other.RegionBytes
	s.ObjectBytes += other.ObjectBytes
}

// DetailedStatistics extends Statistics with size extremes and free chunk information
type DetailedStatistics struct {
	Statistics
	FreeChunkCount   int
	FreeChunkBytes   int
	ObjectSizeMin    int
	ObjectSizeMax    int
	FreeChunkSizeMin int
	FreeChunkSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeChunkCount = 0
	s.FreeChunkBytes = 0
	s.ObjectSizeMin = math.MaxInt
	s.ObjectSizeMax = 0
	s.FreeChunkSizeMin = math.MaxInt
	s.FreeChunkSizeMax = 0
}

func (s *DetailedStatistics) AddFreeChunk(size int) {
	s.FreeChunkCount++
	s.FreeChunkBytes += size

	if size < s.FreeChunkSizeMin {
		s.FreeChunkSizeMin = size
	}

	if size > s.FreeChunkSizeMax {
		s.FreeChunkSizeMax = size
	}
}

func (s *DetailedStatistics) AddObject(size int) {
	s.ObjectCount++
	s.ObjectBytes += size

	if size < s.ObjectSizeMin {
		s.ObjectSizeMin = size
	}

	if size > s.ObjectSizeMax {
		s.ObjectSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeChunkCount += other.FreeChunkCount
	s.FreeChunkBytes += other.FreeChunkBytes

	if other.FreeChunkSizeMin < s.FreeChunkSizeMin {
		s.FreeChunkSizeMin = other.FreeChunkSizeMin
	}

	if other.FreeChunkSizeMax > s.FreeChunkSizeMax {
		s.FreeChunkSizeMax = other.FreeChunkSizeMax
	}

	if other.ObjectSizeMin < s.ObjectSizeMin {
		s.ObjectSizeMin = other.ObjectSizeMin
	}

	if other.ObjectSizeMax > s.ObjectSizeMax {
		s.ObjectSizeMax = other.ObjectSizeMax
	}
}
