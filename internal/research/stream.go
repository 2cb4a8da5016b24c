package research

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Named stream events delivered by the backend.
const (
	eventProgress    = "progress"
	eventSourceFound = "sourceFound"
	eventComplete    = "complete"
	eventError       = "error"
)

// streamEvent is one named server-sent event with its JSON payload.
type streamEvent struct {
	Name string
	Data []byte
}

// readEvents parses a text/event-stream body and invokes handle for each
// complete event. It returns when the stream ends or the reader fails; a nil
// return means the server closed the stream cleanly.
//
// Only the event/data fields are interpreted. Comment lines and unknown
// fields are skipped, and multi-line data is joined with newlines per the
// SSE framing rules.
func readEvents(r io.Reader, handle func(streamEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data []string

	flush := func() {
		if len(data) > 0 {
			handle(streamEvent{Name: name, Data: []byte(strings.Join(data, "\n"))})
		}
		name = ""
		data = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	flush()
	return scanner.Err()
}

// errorPayload is the body of a stream error event.
type errorPayload struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e errorPayload) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

func decodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
