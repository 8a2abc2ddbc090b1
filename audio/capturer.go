package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Capturer owns the microphone for one recording at a time. Start opens
// the device on first use; a failed device is dropped and reopened by the
// next Start.
type Capturer struct {
	ctx    Context
	device *DeviceInfo
	config CaptureConfig

	// NoAudioAfter is how long a started stream may stay silent at the
	// device level (no frames at all) before Stop reports ErrNoAudio.
	NoAudioAfter time.Duration

	mu      sync.Mutex
	capture CaptureDevice
	started bool
	startAt time.Time

	bufMu  sync.Mutex
	buf    []byte
	failed error

	level atomic.Uint64
}

func NewCapturer(ctx Context, device *DeviceInfo) *Capturer {
	return &Capturer{
		ctx:          ctx,
		device:       device,
		config:       DefaultConfig,
		NoAudioAfter: 500 * time.Millisecond,
	}
}

func (c *Capturer) DeviceName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture != nil {
		return c.capture.DeviceName()
	}
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}

// SetDevice takes effect at the next Start.
func (c *Capturer) SetDevice(d *DeviceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = d
	if c.capture != nil && !c.started {
		c.capture.Close()
		c.capture = nil
	}
}

func (c *Capturer) deviceLabel() string {
	if c.device != nil {
		return c.device.Name
	}
	return ""
}

func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}

	if c.capture == nil {
		capture, err := c.ctx.NewCapture(c.device, c.config)
		if err != nil {
			return &CaptureError{Op: "open", Device: c.deviceLabel(), Err: err}
		}
		c.capture = capture
	}

	c.bufMu.Lock()
	c.buf = make([]byte, 0, int(c.config.SampleRate)*BytesPerSample*4)
	c.failed = nil
	c.bufMu.Unlock()
	c.level.Store(0)

	c.capture.SetCallback(c.onData)
	c.capture.SetErrorCallback(c.onError)
	if err := c.capture.Start(); err != nil {
		c.capture.ClearCallback()
		c.capture.Close()
		c.capture = nil
		return &CaptureError{Op: "start", Device: c.deviceLabel(), Err: err}
	}
	c.started = true
	c.startAt = time.Now()
	return nil
}

// Stop ends the recording and returns the frozen buffer. A stream that
// failed while running returns a CaptureError and no recording.
func (c *Capturer) Stop() (Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return Recording{}, ErrNotStarted
	}
	c.started = false
	elapsed := time.Since(c.startAt)

	c.capture.Stop()
	c.capture.ClearCallback()

	c.bufMu.Lock()
	pcm, failed := c.buf, c.failed
	c.buf, c.failed = nil, nil
	c.bufMu.Unlock()
	c.level.Store(0)

	if failed != nil {
		c.dropDevice()
		return Recording{}, &CaptureError{Op: "stream", Device: c.deviceLabel(), Err: failed}
	}
	if len(pcm) == 0 && elapsed >= c.NoAudioAfter {
		c.dropDevice()
		return Recording{}, &CaptureError{Op: "stream", Device: c.deviceLabel(), Err: ErrNoAudio}
	}
	return Recording{pcm: pcm}, nil
}

// Abort stops a running capture and discards the audio. It is a no-op
// when nothing is recording.
func (c *Capturer) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.capture.Stop()
	c.capture.ClearCallback()
	c.bufMu.Lock()
	failed := c.failed
	c.buf, c.failed = nil, nil
	c.bufMu.Unlock()
	c.level.Store(0)
	if failed != nil {
		c.dropDevice()
	}
}

func (c *Capturer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Failed reports a stream error seen since Start, if any.
func (c *Capturer) Failed() error {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return c.failed
}

// Level is the RMS of the most recent frame, in [0,1].
func (c *Capturer) Level() float64 {
	return math.Float64frombits(c.level.Load())
}

// Captured is the duration buffered so far.
func (c *Capturer) Captured() time.Duration {
	c.bufMu.Lock()
	n := len(c.buf)
	c.bufMu.Unlock()
	return time.Duration(n/BytesPerSample) * time.Second / SampleRate
}

func (c *Capturer) Close() {
	c.Abort()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropDevice()
}

func (c *Capturer) dropDevice() {
	if c.capture != nil {
		c.capture.Close()
		c.capture = nil
	}
}

// onData runs on the audio thread and must not take mu: Stop holds mu
// while waiting for that thread to finish.
func (c *Capturer) onData(data []byte, _ uint32) {
	c.level.Store(math.Float64bits(RMS(data)))
	c.bufMu.Lock()
	if c.buf != nil {
		c.buf = append(c.buf, data...)
	}
	c.bufMu.Unlock()
}

func (c *Capturer) onError(err error) {
	c.bufMu.Lock()
	if c.failed == nil {
		c.failed = err
	}
	c.bufMu.Unlock()
}
