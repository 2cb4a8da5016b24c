package research

import (
	"strings"
	"testing"

	tu "github.com/desertthunder/scout/internal/testing"
)

func TestReadEvents(t *testing.T) {
	t.Run("parses named events with payloads", func(t *testing.T) {
		input := "event: progress\n" +
			"data: {\"percentage\": 25}\n" +
			"\n" +
			"event: sourceFound\n" +
			"data: {\"title\": \"Paper A\"}\n" +
			"\n"

		var events []streamEvent
		err := readEvents(strings.NewReader(input), func(ev streamEvent) {
			events = append(events, ev)
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Name != "progress" {
			t.Errorf("expected first event progress, got %s", events[0].Name)
		}
		if events[1].Name != "sourceFound" {
			t.Errorf("expected second event sourceFound, got %s", events[1].Name)
		}

		var p progressPayload
		if err := decodePayload(events[0].Data, &p); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if p.Percentage != 25 {
			t.Errorf("expected percentage 25, got %.0f", p.Percentage)
		}
	})

	t.Run("joins multi-line data", func(t *testing.T) {
		input := "event: complete\n" +
			"data: {\"report\":\n" +
			"data: \"done\"}\n" +
			"\n"

		var events []streamEvent
		readEvents(strings.NewReader(input), func(ev streamEvent) {
			events = append(events, ev)
		})

		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if string(events[0].Data) != "{\"report\":\n\"done\"}" {
			t.Errorf("unexpected joined data: %q", string(events[0].Data))
		}
	})

	t.Run("ignores comments and unknown fields", func(t *testing.T) {
		input := ": keep-alive\n" +
			"id: 42\n" +
			"event: progress\n" +
			"data: {}\n" +
			"\n" +
			": another comment\n"

		var events []streamEvent
		readEvents(strings.NewReader(input), func(ev streamEvent) {
			events = append(events, ev)
		})

		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
	})

	t.Run("flushes a trailing event without a blank line", func(t *testing.T) {
		input := "event: error\ndata: {\"message\": \"boom\"}\n"

		var events []streamEvent
		readEvents(strings.NewReader(input), func(ev streamEvent) {
			events = append(events, ev)
		})

		if len(events) != 1 || events[0].Name != "error" {
			t.Fatalf("expected trailing error event, got %v", events)
		}
	})

	t.Run("surfaces reader failures", func(t *testing.T) {
		err := readEvents(&tu.FCloser{}, func(streamEvent) {
			t.Error("expected no events from a failing reader")
		})
		if err == nil {
			t.Error("expected read error to propagate")
		}
	})

	t.Run("data without event name is still delivered", func(t *testing.T) {
		input := "data: {\"percentage\": 5}\n\n"

		var events []streamEvent
		readEvents(strings.NewReader(input), func(ev streamEvent) {
			events = append(events, ev)
		})

		if len(events) != 1 || events[0].Name != "" {
			t.Fatalf("expected one unnamed event, got %v", events)
		}
	})
}
