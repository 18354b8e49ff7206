package audioio

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Good enough for speech; not a polyphase filter.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(dstRate) / float64(srcRate)
	newLen := int(float64(len(samples)) * ratio)
	if newLen == 0 {
		return nil
	}
	result := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcIdx := float64(i) / ratio
		idx := int(srcIdx)
		if idx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			frac := float32(srcIdx - float64(idx))
			result[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		}
	}

	return result
}
