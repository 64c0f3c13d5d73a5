// Package playback delivers synthesized audio to a sink: the system audio
// device, a directory of WAV files, or an in-memory recorder. Queue plays
// clips in order while later clips are still being fetched.
package playback
