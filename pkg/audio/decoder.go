package audio

import (
	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes opus audio to PCM.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
}

// NewOpusDecoder creates an opus decoder.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}

	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Decode decodes opus data to PCM int16 samples.
func (d *OpusDecoder) Decode(opusData []byte) ([]int16, error) {
	// Opus frames can be up to 60ms; at 48kHz that is 2880 samples per
	// channel, doubled for headroom.
	pcm := make([]int16, 5760*d.channels)

	n, err := d.decoder.Decode(opusData, pcm)
	if err != nil {
		return nil, err
	}

	return pcm[:n*d.channels], nil
}

// DecodeToBytes decodes opus to little-endian PCM16 bytes.
func (d *OpusDecoder) DecodeToBytes(opusData []byte) ([]byte, error) {
	pcm, err := d.Decode(opusData)
	if err != nil {
		return nil, err
	}
	return SamplesToBytes(pcm), nil
}

// SampleRate returns the decoder's sample rate.
func (d *OpusDecoder) SampleRate() int { return d.sampleRate }

// Channels returns the decoder's channel count.
func (d *OpusDecoder) Channels() int { return d.channels }
