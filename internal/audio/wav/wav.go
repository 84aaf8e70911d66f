// Package wav wraps raw PCM16 capture output in a RIFF/WAVE container.
package wav

import (
	"bytes"
	"encoding/binary"
)

const (
	HeaderSize    = 44
	BitsPerSample = 16
	ContentType   = "audio/wav"
)

// Header is the canonical 44-byte PCM WAV header.
type Header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Encode prepends a WAV header to little-endian PCM16 samples. An empty
// payload still produces a valid, zero-length WAV file.
func Encode(pcm []byte, sampleRate int, channels int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	blockAlign := uint16(channels * BitsPerSample / 8)
	// Drop a trailing partial frame left by an interrupted read.
	pcm = pcm[:len(pcm)-len(pcm)%int(blockAlign)]

	header := Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(pcm)))
	// Writes into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, header)
	buf.Write(pcm)
	return buf.Bytes()
}
