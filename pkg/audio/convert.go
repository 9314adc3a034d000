// Package audio provides PCM conversion helpers and the opus codec wiring
// shared by the speech pipeline.
package audio

import "encoding/binary"

// BytesToSamples converts little-endian PCM16 bytes to int16 samples.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// StereoToMono downmixes interleaved stereo samples by averaging channels.
func StereoToMono(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		left := int32(samples[i*2])
		right := int32(samples[i*2+1])
		mono[i] = int16((left + right) / 2)
	}
	return mono
}

// MonoToStereo duplicates each mono sample into both channels.
func MonoToStereo(mono []byte) []byte {
	numSamples := len(mono) / 2
	stereo := make([]byte, numSamples*4)
	for i := 0; i < numSamples; i++ {
		stereo[i*4] = mono[i*2]
		stereo[i*4+1] = mono[i*2+1]
		stereo[i*4+2] = mono[i*2]
		stereo[i*4+3] = mono[i*2+1]
	}
	return stereo
}

// ResampleSamples converts mono int16 samples between rates using linear
// interpolation.
func ResampleSamples(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outputLen := int(float64(len(samples)) / ratio)
	output := make([]int16, outputLen)

	for i := range output {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		idx1 := srcIdx
		idx2 := srcIdx + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}
		if idx2 >= len(samples) {
			idx2 = len(samples) - 1
		}

		s1 := float64(samples[idx1])
		s2 := float64(samples[idx2])
		output[i] = int16(s1*(1-frac) + s2*frac)
	}

	return output
}

// ResampleMono converts mono PCM16 bytes between rates using linear
// interpolation.
func ResampleMono(input []byte, inputRate, outputRate int) []byte {
	if inputRate == outputRate {
		return input
	}
	return SamplesToBytes(ResampleSamples(BytesToSamples(input), inputRate, outputRate))
}
