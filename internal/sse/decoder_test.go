package sse

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkReader returns the configured chunks one Read call at a time.
type chunkReader struct {
	chunks []string
}

func (reader *chunkReader) Read(p []byte) (int, error) {
	if len(reader.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, reader.chunks[0])
	reader.chunks[0] = reader.chunks[0][n:]
	if reader.chunks[0] == "" {
		reader.chunks = reader.chunks[1:]
	}
	return n, nil
}

func collectFrames(t *testing.T, reader io.Reader) []Frame {
	t.Helper()
	var frames []Frame
	for frame, err := range NewDecoder(reader).Frames() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		frames = append(frames, frame)
	}
	return frames
}

const workflowStream = "event: message\r\n" +
	"data: {\"event\":\"message\",\"answer\":\"Hi\"}\r\n\r\n" +
	": keep-alive\n\n" +
	"data: {\"event\":\"message\",\n" +
	"data: \"answer\":\"Hi there\"}\n\n" +
	"id: 7\n" +
	"data: {\"event\":\"message_end\",\"metadata\":{\"usage\":{\"total_tokens\":12}}}\n\n" +
	"data: {\"type\":\"end\",\"answer\":\"tail\"}"

// TestFrames_AnySplit_SameFrames verifies chunking invariance over every two-way split.
func TestFrames_AnySplit_SameFrames(t *testing.T) {
	want := collectFrames(t, strings.NewReader(workflowStream))
	if len(want) != 4 {
		t.Fatalf("expected 4 frames, got %d: %+v", len(want), want)
	}

	for split := 0; split <= len(workflowStream); split++ {
		reader := &chunkReader{chunks: []string{workflowStream[:split], workflowStream[split:]}}
		got := collectFrames(t, reader)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %+v, want %+v", split, got, want)
		}
	}

	got := collectFrames(t, iotest.OneByteReader(strings.NewReader(workflowStream)))
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("one-byte reads: got %+v, want %+v", got, want)
	}
}

// TestFrames_Fields_ParsedPerFrame checks event names, joins and the residual flag.
func TestFrames_Fields_ParsedPerFrame(t *testing.T) {
	frames := collectFrames(t, strings.NewReader(workflowStream))

	if frames[0].Event != "message" || frames[0].Data != `{"event":"message","answer":"Hi"}` {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[1].Data != "{\"event\":\"message\",\n\"answer\":\"Hi there\"}" {
		t.Errorf("multi-line data not joined: %q", frames[1].Data)
	}
	if frames[2].Event != "" {
		t.Errorf("frame 2 should carry no event field, got %q", frames[2].Event)
	}
	if !frames[3].Residual || frames[2].Residual {
		t.Errorf("only the unterminated tail should be residual: %+v", frames)
	}
}

// TestFrames_BareResidual_TreatedAsPayload checks a tail with no data marker.
func TestFrames_BareResidual_TreatedAsPayload(t *testing.T) {
	frames := collectFrames(t, strings.NewReader("data: {\"type\":\"start\"}\n\n{\"type\":\"end\"}\n"))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].Data != `{"type":"end"}` || !frames[1].Residual {
		t.Errorf("residual = %+v", frames[1])
	}
}

// TestFrames_ReadError_YieldedOnce checks transport errors end iteration.
func TestFrames_ReadError_YieldedOnce(t *testing.T) {
	boom := errors.New("connection reset")
	reader := io.MultiReader(strings.NewReader("data: {}\n\n"), iotest.ErrReader(boom))

	var frames, errs int
	for _, err := range NewDecoder(reader).Frames() {
		if err != nil {
			errs++
			if !errors.Is(err, boom) {
				t.Errorf("expected wrapped read error, got %v", err)
			}
			continue
		}
		frames++
	}
	if frames != 1 || errs != 1 {
		t.Errorf("frames=%d errs=%d, want 1 and 1", frames, errs)
	}
}

// TestFrames_EarlyBreak_StopsReading checks the iterator honours a break.
func TestFrames_EarlyBreak_StopsReading(t *testing.T) {
	count := 0
	for range NewDecoder(strings.NewReader("data: 1\n\ndata: 2\n\ndata: 3\n\n")).Frames() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("count = %d", count)
	}
}

// TestFrameKind_Dialects_ResolveDiscriminator checks both dialects.
func TestFrameKind_Dialects_ResolveDiscriminator(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		dialect Dialect
		want    string
	}{
		{"event field wins", Frame{Event: "message_end", Data: `{"event":"message"}`}, DialectEvent, "message_end"},
		{"event member fallback", Frame{Data: `{"event":"error","message":"x"}`}, DialectEvent, "error"},
		{"typed member", Frame{Event: "ignored", Data: `{"type":"content","content":"a"}`}, DialectTyped, "content"},
		{"not json", Frame{Data: "plain"}, DialectTyped, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Kind(tt.dialect); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

type typedPayload struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Answer  string `json:"answer"`
}

// TestDecodeJSON_MalformedFrame_DeliversRemaining checks N-1 delivery.
func TestDecodeJSON_MalformedFrame_DeliversRemaining(t *testing.T) {
	stream := "data: {\"type\":\"start\"}\n\n" +
		"data: {\"type\":\"content\",\"content\":\"a\"}\n\n" +
		"data: {not json}\n\n" +
		"data: {\"type\":\"content\",\"content\":\"b\"}\n\n" +
		"data: {\"type\":\"end\",\"answer\":\"ab\"}\n\n"

	var kinds []string
	frames := NewDecoder(strings.NewReader(stream)).Frames()
	for event, err := range DecodeJSON[typedPayload](context.Background(), frames, DialectTyped) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		kinds = append(kinds, event.Kind)
	}

	want := []string{"start", "content", "content", "end"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}

// TestDecodeJSON_TruncatedResidual_Repaired checks the end-of-stream repair attempt.
func TestDecodeJSON_TruncatedResidual_Repaired(t *testing.T) {
	stream := "data: {\"type\":\"content\",\"content\":\"a\"}\n\ndata: {\"type\":\"end\",\"answer\":\"done\""

	var events []Event[typedPayload]
	frames := NewDecoder(strings.NewReader(stream)).Frames()
	for event, err := range DecodeJSON[typedPayload](context.Background(), frames, DialectTyped) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		events = append(events, event)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	last := events[1]
	if last.Kind != "end" || last.Value.Answer != "done" {
		t.Errorf("repaired event = %+v", last)
	}
}

// TestDecodeJSON_WorkflowScenario_ThreeFrames checks the event dialect end to end.
func TestDecodeJSON_WorkflowScenario_ThreeFrames(t *testing.T) {
	reader := &chunkReader{chunks: []string{
		"data: {\"event\":\"message\",\"answer\":\"Hi\"}\n\n",
		"data: {\"event\":\"message\",\"answer\":\"Hi there\"}\n\n",
		"data: {\"event\":\"message_end\"}\n\n",
	}}

	var kinds []string
	for event, err := range DecodeJSON[map[string]any](context.Background(), NewDecoder(reader).Frames(), DialectEvent) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		kinds = append(kinds, event.Kind)
	}
	want := []string{"message", "message", "message_end"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}
