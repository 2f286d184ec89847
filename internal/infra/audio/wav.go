package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps mono 16-bit PCM samples in a RIFF/WAV container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(samples)*2)

	dataSize := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// PCM is decoded 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Mono returns the samples down-mixed to one channel as float32 in
// [-1, 1].
func (p PCM) Mono() []float32 {
	ch := p.Channels
	if ch < 1 {
		ch = 1
	}
	frames := len(p.Samples) / ch
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += float32(p.Samples[i*ch+c]) / 32768.0
		}
		out[i] = sum / float32(ch)
	}
	return out
}

var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// DecodeWAV parses a 16-bit PCM WAV file. Unknown chunks are skipped.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, ErrNotWAV
	}

	var (
		pcm      PCM
		haveFmt  bool
		bitsPer  uint16
		audioFmt uint16
	)
	pos := 12

	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			audioFmt = binary.LittleEndian.Uint16(data[body : body+2])
			pcm.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			pcm.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPer = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, errors.New("data chunk before fmt chunk")
			}
			if audioFmt != 1 || bitsPer != 16 {
				return PCM{}, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", audioFmt, bitsPer)
			}
			n := size / 2
			pcm.Samples = make([]int16, n)
			for i := 0; i < n; i++ {
				pcm.Samples[i] = int16(binary.LittleEndian.Uint16(data[body+i*2 : body+i*2+2]))
			}
			return pcm, nil
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	return PCM{}, errors.New("no data chunk")
}
