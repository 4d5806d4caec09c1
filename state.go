package avplay

// DecoderState is the lifecycle state of a Decoder.
//
// The state field is written only by the decode loop (and by synchronous
// setup/seek validation before the loop owns it); any goroutine may read it.
type DecoderState int32

const (
	// StateReady indicates the pipeline is idle and will attempt a decode
	// step on the next loop iteration.
	StateReady DecoderState = iota

	// StateRunning indicates packets are actively being decoded.
	StateRunning

	// StateFaulted indicates an unrecoverable failure; the loop has exited.
	// Only an explicit restart (Stop + Start), which reruns setup, makes the
	// decoder usable again.
	StateFaulted

	// StateEndOfStream indicates the input is exhausted and both codecs have
	// been flushed. A seek resets the state to StateReady.
	StateEndOfStream

	// StateStopped indicates the loop exited due to cancellation.
	StateStopped
)

// String returns a human-readable label for the state.
func (s DecoderState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateFaulted:
		return "Faulted"
	case StateEndOfStream:
		return "EndOfStream"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
