package block

// Opaque is the alpha value of a pixel that takes part in comparisons. Reference pixels with a
// lower alpha are masked out.
const Opaque = 0xff

// Difference returns the mean absolute RGB difference between two blocks of packed ARGB pixels,
// normalized to [0, 1]. Pixels whose reference alpha is below Opaque contribute nothing, but
// still count towards the normalization.
func Difference(ref, cand []uint32) float64 {
	if len(ref) == 0 {
		return 0
	}
	var sum uint64
	for i, r := range ref {
		if r>>24 != Opaque {
			continue
		}
		c := cand[i]
		sum += uint64(absDiff(uint8(r>>16), uint8(c>>16)))
		sum += uint64(absDiff(uint8(r>>8), uint8(c>>8)))
		sum += uint64(absDiff(uint8(r), uint8(c)))
	}
	return float64(sum) / float64(len(ref)*255*3)
}

// Equal returns true if the blocks differ by no more than tolerance. ref and cand must have the
// same length.
func Equal(ref, cand []uint32, tolerance float64) bool {
	if identical(ref, cand) {
		return true
	}
	return Difference(ref, cand) <= tolerance
}

func identical(a, b []uint32) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func absDiff(m, n uint8) int {
	if m > n {
		return int(m - n)
	}
	return int(n - m)
}
