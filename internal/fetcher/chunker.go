package fetcher

// Range is an inclusive block range.
type Range struct {
	From uint64
	To   uint64
}

// ChunkRanges splits the inclusive range [start, end] into contiguous
// sub-ranges of at most step blocks each, in ascending order. The sub-ranges
// partition the input exactly: no gaps, no overlaps, and
// ceil((end-start+1)/step) of them in total.
func ChunkRanges(start, end, step uint64) []Range {
	if start > end {
		return nil
	}
	if step == 0 {
		step = 1
	}

	ranges := make([]Range, 0, (end-start)/step+1)
	cur := start
	for {
		rngEnd := end
		if end-cur >= step {
			rngEnd = cur + step - 1
		}
		ranges = append(ranges, Range{From: cur, To: rngEnd})
		if rngEnd == end {
			break
		}
		cur = rngEnd + 1
	}

	return ranges
}
