// Package elastic renders warped playback of a recorded audio buffer.
//
// An Engine combines a pull-based Source with the position mapping of a
// warp.Processor and produces an output stream whose local playback rate
// follows the per-region stretch ratio while preserving pitch, using a
// short-time Fourier phase vocoder with transient-preserving phase resets
// and a variable-rate resampling stage.
package elastic
