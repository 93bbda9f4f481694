// Command sonido-emotion predicts the emotion expressed in a speech clip.
//
// It decodes audio with ffmpeg (or the built-in WAV reader), extracts the
// 162-value spectral feature vector and scores it with an exported ONNX
// network. The same pipeline is available over HTTP with `serve`.
//
// Usage:
//
//	sonido-emotion predict clip.wav
//	sonido-emotion features --json clip.mp3
//	sonido-emotion serve --bind 0.0.0.0:8080
//	sonido-emotion config init
package main
