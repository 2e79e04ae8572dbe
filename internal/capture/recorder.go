package capture

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"netsight/internal/models"
)

const snapLen = 65535

// Frame is one synthesized frame with its emission time.
type Frame struct {
	Timestamp time.Time
	Data      []byte
}

// Recorder keeps the most recent synthesized frames in a fixed-size ring.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
	next   int
	full   bool
}

// NewRecorder creates a ring holding up to size frames. A size of zero
// disables recording.
func NewRecorder(size int) *Recorder {
	return &Recorder{frames: make([]Frame, size)}
}

// Record synthesizes the packet and appends it to the ring.
func (r *Recorder) Record(p models.Packet, ts time.Time) error {
	if len(r.frames) == 0 {
		return nil
	}
	data, err := Synthesize(p)
	if err != nil {
		return err
	}
	r.add(Frame{Timestamp: ts, Data: data})
	return nil
}

func (r *Recorder) add(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[r.next] = f
	r.next = (r.next + 1) % len(r.frames)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the recorded frames, oldest first.
func (r *Recorder) Snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Frame, r.next)
		copy(out, r.frames[:r.next])
		return out
	}
	out := make([]Frame, 0, len(r.frames))
	out = append(out, r.frames[r.next:]...)
	out = append(out, r.frames[:r.next]...)
	return out
}

// WritePcap writes the current ring as a pcap file with Ethernet link type.
func (r *Recorder) WritePcap(w io.Writer) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}
	for _, f := range r.Snapshot() {
		ci := gopacket.CaptureInfo{
			Timestamp:     f.Timestamp,
			CaptureLength: len(f.Data),
			Length:        len(f.Data),
		}
		if err := pw.WritePacket(ci, f.Data); err != nil {
			return fmt.Errorf("write pcap record: %w", err)
		}
	}
	return nil
}
