//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

const (
	framesPerBuffer  = 1024
	silenceThreshold = int16(500)
)

// MicrophoneSource records one utterance at a time from the default input
// device. Recording starts at the first loud frame and stops after a
// second of silence or ten seconds of audio.
type MicrophoneSource struct {
	stream     *portaudio.Stream
	frame      []int16
	sampleRate int
	logger     *slog.Logger
}

func NewMicrophoneSource(sampleRate int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		sampleRate: sampleRate,
		logger:     logger,
		frame:      make([]int16, framesPerBuffer),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(m.frame), m.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}
	m.stream = stream

	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	m.logger.Info("microphone started", "sample_rate", m.sampleRate)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
	}
	return portaudio.Terminate()
}

func (m *MicrophoneSource) NextCommand(ctx context.Context) ([]byte, error) {
	samples := make([]int16, 0, m.sampleRate*5)
	speaking := false
	silent := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Read fills m.frame, the buffer registered with the stream.
		if err := m.stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		loud := isLoud(m.frame)
		if !speaking {
			if !loud {
				continue
			}
			speaking = true
			m.logger.Debug("speech detected, recording")
		}

		samples = append(samples, m.frame...)

		if loud {
			silent = 0
		} else {
			silent += len(m.frame)
		}

		if silent > m.sampleRate || len(samples) > m.sampleRate*10 {
			break
		}
	}

	return EncodeWAV(samples, m.sampleRate), nil
}

func isLoud(frame []int16) bool {
	for _, s := range frame {
		if s > silenceThreshold || s < -silenceThreshold {
			return true
		}
	}
	return false
}
