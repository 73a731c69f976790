package live

import "encoding/binary"

// FrameEnergy is the mean square of a pcm_s16le frame, normalized to [0, 1].
// A trailing odd byte is ignored; a frame with no whole sample has energy 0.
func FrameEnergy(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
		sum += s * s
	}
	return sum / float64(n)
}

// AudioConfig describes a raw PCM stream.
type AudioConfig struct {
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultInputAudioConfig is the candidate microphone format: 16 kHz mono
// pcm_s16le. Sessions override the rate from the start message.
func DefaultInputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}
