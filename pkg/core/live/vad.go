package live

// VAD is an energy classifier with hysteresis over a short history of frames.
// It is not safe for concurrent use; each session owns one.
type VAD struct {
	config   VADConfig
	history  []float64
	next     int
	filled   int
	speaking bool
}

// NewVAD creates a detector. Invalid configs fall back to DefaultVADConfig.
func NewVAD(config VADConfig) *VAD {
	if config.Validate() != nil {
		config = DefaultVADConfig()
	}
	return &VAD{
		config:  config,
		history: make([]float64, config.HistorySize),
	}
}

// Process consumes one PCM frame and reports whether speech just started.
// Frames shorter than one sample are ignored.
func (v *VAD) Process(pcm []byte) bool {
	if len(pcm) < 2 {
		return false
	}

	v.history[v.next] = FrameEnergy(pcm)
	v.next = (v.next + 1) % len(v.history)
	if v.filled < len(v.history) {
		v.filled++
	}

	avg := v.average()
	was := v.speaking
	switch {
	case avg > v.config.EnterThreshold:
		v.speaking = true
	case avg < v.config.ExitThreshold:
		v.speaking = false
	}
	return !was && v.speaking
}

// Average returns the mean energy of the buffered frames.
func (v *VAD) Average() float64 {
	return v.average()
}

// Reset clears the history and the speaking flag. Thresholds are kept.
func (v *VAD) Reset() {
	for i := range v.history {
		v.history[i] = 0
	}
	v.next = 0
	v.filled = 0
	v.speaking = false
}

func (v *VAD) average() float64 {
	if v.filled == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < v.filled; i++ {
		sum += v.history[i]
	}
	return sum / float64(v.filled)
}
