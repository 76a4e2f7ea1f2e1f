package audio

// Input is a capture device. Read blocks until one frame of
// frameSize*channels interleaved samples is available.
type Input interface {
	Open() error
	Read(frameSize int) ([]int16, error)
	Close() error
}

// Output is a playback device. Write blocks until the frame is queued.
type Output interface {
	Open() error
	Write(pcm []int16) error
	Close() error
}
