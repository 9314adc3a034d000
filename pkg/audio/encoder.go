package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusEncoder encodes PCM audio to opus.
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel per frame
}

// NewOpusEncoder creates an opus encoder tuned for voice.
func NewOpusEncoder(sampleRate, channels, frameSize int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	if err := enc.SetBitrate(64000); err != nil {
		return nil, err
	}

	return &OpusEncoder{
		encoder:    enc,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
	}, nil
}

// Encode encodes PCM int16 samples to opus.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	data := make([]byte, 1024)
	n, err := e.encoder.Encode(pcm, data)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}

// EncodeBytes encodes little-endian PCM16 bytes to opus.
func (e *OpusEncoder) EncodeBytes(pcmBytes []byte) ([]byte, error) {
	return e.Encode(BytesToSamples(pcmBytes))
}

// FrameSize returns the frame size in samples per channel.
func (e *OpusEncoder) FrameSize() int { return e.frameSize }

// Pipeline converts synthesized speech into 20ms opus frames ready for the
// room's published track: input-rate mono PCM -> 48kHz stereo opus.
type Pipeline struct {
	encoder   *OpusEncoder
	inputRate int
	buffer    []byte
}

// Pipeline output format: 48kHz stereo, 20ms frames.
const (
	pipelineRate      = 48000
	pipelineChannels  = 2
	pipelineFrameSize = 960 // 20ms at 48kHz
	frameBytes        = pipelineFrameSize * pipelineChannels * 2
)

// NewPipeline creates a pipeline for mono PCM at the given input rate.
func NewPipeline(inputRate int) (*Pipeline, error) {
	encoder, err := NewOpusEncoder(pipelineRate, pipelineChannels, pipelineFrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	return &Pipeline{
		encoder:   encoder,
		inputRate: inputRate,
	}, nil
}

// ProcessChunk resamples and encodes one chunk of mono PCM, returning any
// complete opus frames. Partial frame data is buffered for the next chunk.
func (p *Pipeline) ProcessChunk(pcmMono []byte) ([][]byte, error) {
	if len(pcmMono) == 0 {
		return nil, nil
	}

	resampled := ResampleMono(pcmMono, p.inputRate, pipelineRate)
	p.buffer = append(p.buffer, MonoToStereo(resampled)...)

	return p.drainFrames(), nil
}

// Flush pads and encodes whatever remains in the buffer.
func (p *Pipeline) Flush() ([][]byte, error) {
	if len(p.buffer) == 0 {
		return nil, nil
	}
	if rem := len(p.buffer) % frameBytes; rem != 0 {
		p.buffer = append(p.buffer, make([]byte, frameBytes-rem)...)
	}
	return p.drainFrames(), nil
}

// Reset clears buffered samples.
func (p *Pipeline) Reset() {
	p.buffer = p.buffer[:0]
}

func (p *Pipeline) drainFrames() [][]byte {
	var frames [][]byte
	for len(p.buffer) >= frameBytes {
		frame := p.buffer[:frameBytes]
		p.buffer = p.buffer[frameBytes:]

		opusData, err := p.encoder.EncodeBytes(frame)
		if err != nil {
			continue
		}
		frames = append(frames, opusData)
	}
	return frames
}
