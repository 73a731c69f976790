package live

import "fmt"

// VADConfig configures energy-based voice activity detection.
type VADConfig struct {
	// EnterThreshold is the mean energy above which the detector switches to speaking.
	// Range: 0.0 to 1.0. Default: 0.01
	EnterThreshold float64 `json:"enter_threshold"`

	// ExitThreshold is the mean energy below which the detector switches back to silent.
	// Must be strictly lower than EnterThreshold. Default: 0.005
	ExitThreshold float64 `json:"exit_threshold"`

	// HistorySize is the number of frame energies averaged together.
	// Default: 10
	HistorySize int `json:"history_size"`
}

// DefaultVADConfig returns a VADConfig with sensible defaults.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnterThreshold: 0.01,
		ExitThreshold:  0.005,
		HistorySize:    10,
	}
}

// Validate reports whether the thresholds form a usable hysteresis band.
func (c VADConfig) Validate() error {
	if c.HistorySize <= 0 {
		return fmt.Errorf("vad history size must be > 0")
	}
	if c.ExitThreshold < 0 {
		return fmt.Errorf("vad exit threshold must be >= 0")
	}
	if c.EnterThreshold <= c.ExitThreshold {
		return fmt.Errorf("vad enter threshold (%g) must be greater than exit threshold (%g)", c.EnterThreshold, c.ExitThreshold)
	}
	if c.EnterThreshold > 1 {
		return fmt.Errorf("vad enter threshold must be <= 1")
	}
	return nil
}
