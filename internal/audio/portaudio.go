// Package audio plays simulated waveforms through the default output device.
package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/jeongseonghan/modulation-studio/internal/dsp"
)

const (
	SampleRate   = dsp.SampleRate
	FramesPerBuf = 512
	NumChannels  = 1
)

// Init initializes PortAudio.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// Player writes waveforms to the default output stream at the simulator
// sample rate.
type Player struct {
	stream *portaudio.Stream
	buf    []float32
	mu     sync.Mutex
}

// NewPlayer creates a new Player. Open must be called before Play.
func NewPlayer() *Player {
	return &Player{buf: make([]float32, FramesPerBuf)}
}

// Open opens and starts the default output stream.
func (p *Player) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(
		0,           // input channels
		NumChannels, // output channels
		float64(SampleRate),
		FramesPerBuf,
		p.buf,
	)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}
	p.stream = stream
	return nil
}

// Play scales signal to a peak of volume, repeats it the given number of
// times and writes it in FramesPerBuf chunks. It returns early with the
// context error when ctx is cancelled.
func (p *Player) Play(ctx context.Context, signal []float64, volume float64, repeat int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return fmt.Errorf("output stream not opened")
	}

	samples := ToFloat32(signal, volume)
	for r := 0; r < max(1, repeat); r++ {
		for _, chunk := range Frames(samples, FramesPerBuf) {
			if err := ctx.Err(); err != nil {
				return err
			}
			copy(p.buf, chunk)
			if err := p.stream.Write(); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
	return nil
}

// Close stops and closes the stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	var errs []error
	if err := p.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := p.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	p.stream = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// ToFloat32 normalises signal to a peak of volume, clamped to [0, 1].
// Non-finite samples become silence.
func ToFloat32(signal []float64, volume float64) []float32 {
	volume = dsp.Clamp(volume, 0, 1)
	norm := dsp.Normalize(signal)
	out := make([]float32, len(norm))
	for i, v := range norm {
		out[i] = float32(v * volume)
	}
	return out
}

// Frames splits samples into chunks of n, zero-padding the last one.
func Frames(samples []float32, n int) [][]float32 {
	if n <= 0 {
		return nil
	}
	var out [][]float32
	for i := 0; i < len(samples); i += n {
		end := i + n
		if end > len(samples) {
			// Pad with zeros
			chunk := make([]float32, n)
			copy(chunk, samples[i:])
			out = append(out, chunk)
		} else {
			out = append(out, samples[i:end])
		}
	}
	return out
}
