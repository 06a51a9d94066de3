package events

import "testing"

func TestDecodeDesignatedVariants(t *testing.T) {
	cases := []struct {
		event string
		data  string
		check func(t *testing.T, ev Event)
	}{
		{
			event: "execution_start",
			data:  `{"id":"e1","query":"what is 2+2","maxIterations":10,"maxDepth":3,"codeLanguage":"javascript"}`,
			check: func(t *testing.T, ev Event) {
				start, ok := ev.(*ExecutionStart)
				if !ok {
					t.Fatalf("decoded %T", ev)
				}
				if start.ID != "e1" || start.Query != "what is 2+2" || start.MaxDepth != 3 {
					t.Fatalf("fields: %+v", start)
				}
			},
		},
		{
			event: "iteration_start",
			data:  `{"id":"i2","number":1,"input":"sub","parentId":"i1","depth":1}`,
			check: func(t *testing.T, ev Event) {
				it, ok := ev.(*IterationStart)
				if !ok {
					t.Fatalf("decoded %T", ev)
				}
				if it.ParentID != "i1" || it.Depth != 1 || it.Number != 1 {
					t.Fatalf("fields: %+v", it)
				}
			},
		},
		{
			event: "repl_result",
			data:  `{"iterationId":"i1","success":false,"stderr":"ReferenceError","durationMs":12,"error":{"type":"ReferenceError","message":"x is not defined","line":3}}`,
			check: func(t *testing.T, ev Event) {
				res, ok := ev.(*ReplResult)
				if !ok {
					t.Fatalf("decoded %T", ev)
				}
				if res.Success || res.Error == nil || res.Error.Line != 3 {
					t.Fatalf("fields: %+v", res)
				}
			},
		},
		{
			event: "final_detected",
			data:  `{"iterationId":"i1","responseType":"FINAL","answer":"4"}`,
			check: func(t *testing.T, ev Event) {
				fin, ok := ev.(*FinalDetected)
				if !ok {
					t.Fatalf("decoded %T", ev)
				}
				if fin.Answer != "4" {
					t.Fatalf("fields: %+v", fin)
				}
			},
		},
		{
			event: "error",
			data:  `{"message":"llm call failed"}`,
			check: func(t *testing.T, ev Event) {
				if e, ok := ev.(*Error); !ok || e.Message != "llm call failed" {
					t.Fatalf("decoded %T %+v", ev, ev)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			ev, ok := Decode(Record{Event: tc.event, Data: tc.data})
			if !ok {
				t.Fatal("record did not decode")
			}
			if string(ev.EventType()) != tc.event {
				t.Fatalf("type = %s, want %s", ev.EventType(), tc.event)
			}
			tc.check(t, ev)
		})
	}
}

func TestDecodeDefaultDesignatorUsesPayloadTag(t *testing.T) {
	for _, event := range []string{"", "message", "  message  "} {
		ev, ok := Decode(Record{Event: event, Data: `{"type":"execution_complete","id":"e1"}`})
		if !ok {
			t.Fatalf("event=%q: record did not decode", event)
		}
		if _, isComplete := ev.(*ExecutionComplete); !isComplete {
			t.Fatalf("event=%q: decoded %T", event, ev)
		}
	}
}

func TestDecodeDrops(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
	}{
		{"unknown designator", Record{Event: "execution_paused", Data: `{"id":"e1"}`}},
		{"empty payload", Record{Event: "execution_start", Data: ""}},
		{"blank payload", Record{Event: "execution_start", Data: "   "}},
		{"non-json payload", Record{Event: "execution_start", Data: "not-json"}},
		{"json scalar", Record{Event: "execution_start", Data: `"just a string"`}},
		{"json array", Record{Event: "execution_start", Data: `[1,2,3]`}},
		{"untagged default", Record{Event: "", Data: `{"id":"e1"}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ev, ok := Decode(tc.rec); ok {
				t.Fatalf("record decoded to %T, want drop", ev)
			}
		})
	}
}

func TestDecodeRepairsAlmostValidJSON(t *testing.T) {
	// Trailing comma and single quotes are what sloppy producers actually emit.
	ev, ok := Decode(Record{Event: "code_extracted", Data: `{'iterationId': 'i1', 'code': 'x = 1',}`})
	if !ok {
		t.Fatal("repairable payload should decode")
	}
	code, isCode := ev.(*CodeExtracted)
	if !isCode || code.IterationID != "i1" || code.Code != "x = 1" {
		t.Fatalf("decoded %T %+v", ev, ev)
	}
}

func TestDecodeRecoversAfterDrop(t *testing.T) {
	if _, ok := Decode(Record{Event: "execution_start", Data: "not-json"}); ok {
		t.Fatal("malformed record should drop")
	}
	ev, ok := Decode(Record{Event: "execution_start", Data: `{"id":"e1","query":"q"}`})
	if !ok {
		t.Fatal("well-formed record after a drop should decode")
	}
	if start := ev.(*ExecutionStart); start.ID != "e1" {
		t.Fatalf("fields: %+v", start)
	}
}
