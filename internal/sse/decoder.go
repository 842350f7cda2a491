package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// maxFrameSize bounds a single unterminated frame (1 MB). A stream that never
// produces a delimiter within this size is treated as a transport error.
const maxFrameSize = 1 * 1024 * 1024

const readChunkSize = 4 * 1024

var frameDelimiter = []byte("\n\n")

// ErrFrameTooLarge is yielded when a frame exceeds the decoder's size limit.
var ErrFrameTooLarge = errors.New("sse: frame exceeds maximum size")

// Dialect selects how a frame's event discriminator is resolved.
type Dialect int

const (
	// DialectEvent reads the "event:" field, falling back to the payload's
	// "event" member.
	DialectEvent Dialect = iota
	// DialectTyped reads the payload's "type" member.
	DialectTyped
)

// Frame is one transport-level event.
type Frame struct {
	// Event is the value of the "event:" field, empty when absent.
	Event string
	// Data is the payload; multiple "data:" lines are joined with "\n".
	Data string
	// Residual marks the best-effort frame flushed from an unterminated
	// buffer at end of stream.
	Residual bool
}

// Kind resolves the event discriminator for dialect. It returns "" when the
// discriminator is absent or the payload is not a JSON object.
func (frame Frame) Kind(dialect Dialect) string {
	if dialect == DialectEvent && frame.Event != "" {
		return frame.Event
	}
	var discriminator struct {
		Event string `json:"event"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal([]byte(frame.Data), &discriminator); err != nil {
		return ""
	}
	if dialect == DialectTyped {
		return discriminator.Type
	}
	return discriminator.Event
}

// Decoder reads frames from an SSE byte stream.
type Decoder struct {
	reader io.Reader
	buffer []byte
	// scanFrom is where the next delimiter search starts, so bytes already
	// known to hold no delimiter are not scanned again.
	scanFrom int
	// skipLF is set after a '\r' so that a following '\n' (possibly in the
	// next chunk) is folded into the same line break.
	skipLF bool
}

// NewDecoder creates a Decoder reading from reader.
func NewDecoder(reader io.Reader) *Decoder {
	return &Decoder{reader: reader}
}

// Frames returns a single-use iterator over the frames of the stream. Only
// transport failures are yielded as errors; iteration stops after one.
func (decoder *Decoder) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		chunk := make([]byte, readChunkSize)
		eof := false
		for {
			for {
				raw, ok := decoder.nextRawFrame()
				if !ok {
					break
				}
				frame, ok := parseFrame(raw)
				if !ok {
					continue
				}
				if !yield(frame, nil) {
					return
				}
			}

			if eof {
				if frame, ok := decoder.flushResidual(); ok {
					yield(frame, nil)
				}
				return
			}

			if len(decoder.buffer) > maxFrameSize {
				yield(Frame{}, ErrFrameTooLarge)
				return
			}

			n, err := decoder.reader.Read(chunk)
			if n > 0 {
				decoder.appendNormalized(chunk[:n])
			}
			if errors.Is(err, io.EOF) {
				eof = true
				continue
			}
			if err != nil {
				yield(Frame{}, fmt.Errorf("sse read error: %w", err))
				return
			}
		}
	}
}

// appendNormalized appends chunk to the buffer, folding CRLF and lone CR into LF.
func (decoder *Decoder) appendNormalized(chunk []byte) {
	for _, b := range chunk {
		switch {
		case b == '\r':
			decoder.buffer = append(decoder.buffer, '\n')
			decoder.skipLF = true
		case b == '\n' && decoder.skipLF:
			decoder.skipLF = false
		default:
			decoder.buffer = append(decoder.buffer, b)
			decoder.skipLF = false
		}
	}
}

// nextRawFrame slices the next complete frame off the buffer.
func (decoder *Decoder) nextRawFrame() ([]byte, bool) {
	index := bytes.Index(decoder.buffer[decoder.scanFrom:], frameDelimiter)
	if index < 0 {
		// The last byte may be the first half of a delimiter.
		decoder.scanFrom = max(0, len(decoder.buffer)-1)
		return nil, false
	}
	end := decoder.scanFrom + index
	raw := make([]byte, end)
	copy(raw, decoder.buffer[:end])

	remaining := copy(decoder.buffer, decoder.buffer[end+len(frameDelimiter):])
	decoder.buffer = decoder.buffer[:remaining]
	decoder.scanFrom = 0
	return raw, true
}

// flushResidual turns whatever is left in the buffer into a final frame. A
// residual without any "data:" field is taken as a bare payload.
func (decoder *Decoder) flushResidual() (Frame, bool) {
	rest := bytes.TrimSpace(decoder.buffer)
	decoder.buffer = decoder.buffer[:0]
	decoder.scanFrom = 0
	if len(rest) == 0 {
		return Frame{}, false
	}

	frame, ok := parseFrame(rest)
	if !ok {
		frame = Frame{Data: string(rest)}
	}
	frame.Residual = true
	return frame, true
}

// parseFrame extracts the fields of one frame. It reports false when the
// frame carries no data lines.
func parseFrame(raw []byte) (Frame, bool) {
	var frame Frame
	var data [][]byte

	for len(raw) > 0 {
		var line []byte
		if index := bytes.IndexByte(raw, '\n'); index >= 0 {
			line, raw = raw[:index], raw[index+1:]
		} else {
			line, raw = raw, nil
		}

		if len(line) == 0 || line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "data":
			data = append(data, value)
		case "event":
			frame.Event = string(value)
		}
	}

	if len(data) == 0 {
		return Frame{}, false
	}
	frame.Data = string(bytes.Join(data, []byte("\n")))
	return frame, true
}
