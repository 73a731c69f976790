// Package live holds the audio primitives used by live interview sessions.
//
// The central piece is VAD, an energy-based voice activity detector. Each
// inbound PCM frame is reduced to its normalized mean-square energy, pushed
// into a short history ring, and the mean of that ring is compared against
// two thresholds:
//
//	mean > Enter          -> speaking
//	mean < Exit           -> silent
//	Exit <= mean <= Enter -> unchanged
//
// Process reports only the rising edge (silent -> speaking). Sessions use that
// edge as the barge-in signal while synthesized speech is playing.
//
// Audio is 16-bit signed little-endian mono PCM; 16 kHz is the expected input
// rate but the detector itself is rate independent.
package live
