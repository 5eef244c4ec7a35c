package detector

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
)

// MaxMessageSize bounds a single framed message in either direction.
const MaxMessageSize = 32 << 20

// Ops understood by the worker process.
const (
	OpLandmarks = "landmarks"
	OpBoxes     = "boxes"
)

// Request is sent to the worker for every frame and stage.
type Request struct {
	ID     uint64 `msgpack:"id"`
	Op     string `msgpack:"op"`
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	// Image is the JPEG encoded frame, empty when the frame has no pixels.
	Image []byte `msgpack:"image"`
}

// Response answers a Request with the same ID. Landmarks are in model
// order, so index i is pose.Joint(i).
type Response struct {
	ID        uint64                `msgpack:"id"`
	Landmarks []pose.Landmark       `msgpack:"landmarks"`
	Boxes     []fusion.DetectionBox `msgpack:"boxes"`
	Error     string                `msgpack:"error"`
}

// LandmarkSet converts the response landmarks. It returns nil when the
// worker found no person.
func (r Response) LandmarkSet() *pose.LandmarkSet {
	if len(r.Landmarks) == 0 {
		return nil
	}
	set := &pose.LandmarkSet{}
	for i, lm := range r.Landmarks {
		j := pose.Joint(i)
		if !j.Valid() {
			break
		}
		set.Set(j, lm)
	}
	return set
}

// WriteMessage writes v as msgpack behind a 4 byte big endian length.
func WriteMessage(w io.Writer, v any) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack: %w", err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", len(body))
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message into v. A clean end of stream
// before the length prefix returns io.EOF.
func ReadMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read message body: %w", err)
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal msgpack: %w", err)
	}
	return nil
}
