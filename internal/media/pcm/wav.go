package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// WriteWAV encodes the buffer as a canonical 16-bit PCM RIFF/WAVE stream.
func WriteWAV(w io.Writer, b *Buffer) error {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return errors.New("wav: invalid buffer format")
	}
	dataSize := uint32(len(b.Samples) * 2)
	blockAlign := uint16(b.Channels * 2)
	header := struct {
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
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(b.Channels),
		SampleRate:    uint32(b.SampleRate),
		ByteRate:      uint32(b.SampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, b.Samples)
}

// EncodeWAV returns the buffer as WAV bytes.
func EncodeWAV(b *Buffer) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(b.Samples)*2)
	if err := WriteWAV(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRaw writes the samples as little-endian s16 without a header, the
// layout ffmpeg expects for -f s16le input.
func WriteRaw(w io.Writer, b *Buffer) error {
	return binary.Write(w, binary.LittleEndian, b.Samples)
}

// rawChunkBytes is the read size used by ReadRaw. It is even so a chunk
// never ends inside a sample unless the reader returns short.
const rawChunkBytes = 64 * 1024

// ReadRaw decodes little-endian s16 samples from r until EOF. Samples are
// converted chunk by chunk so the raw byte stream is never held whole.
// sizeHint preallocates that many samples; a good hint keeps the slice from
// regrowing. A trailing partial frame is dropped.
func ReadRaw(r io.Reader, sampleRate, channels, sizeHint int) (*Buffer, error) {
	if channels <= 0 {
		channels = 1
	}
	samples := make([]int16, 0, max(sizeHint, 0))
	chunk := make([]byte, rawChunkBytes)
	pending := 0
	for {
		n, err := r.Read(chunk[pending:])
		n += pending
		even := n - n%2
		for i := 0; i < even; i += 2 {
			samples = append(samples, int16(binary.LittleEndian.Uint16(chunk[i:])))
		}
		pending = copy(chunk, chunk[even:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	samples = samples[:len(samples)-len(samples)%channels]
	return &Buffer{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}
