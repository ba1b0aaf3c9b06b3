package server

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &EvalRequest{Session: "s-1", Source: "1 + 2"}

	data, err := MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatal(err)
	}
	if *decoded != *req {
		t.Errorf("want %+v, got %+v", req, decoded)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &EvalResponse{
		Session: "s-1",
		Value:   "3",
		Output:  "hello\n",
		Errors:  []string{"one", "two"},
	}

	data, err := MarshalResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalResponse(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Session != resp.Session || decoded.Value != resp.Value ||
		decoded.Output != resp.Output || len(decoded.Errors) != 2 {
		t.Errorf("want %+v, got %+v", resp, decoded)
	}
}

func TestCanonicalEncoding(t *testing.T) {
	req := &EvalRequest{Session: "abc", Source: "len([1])"}

	first, err := MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("canonical encoding is not deterministic")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payloads := [][]byte{
		[]byte("first"),
		{},
		[]byte("third frame"),
	}
	for _, p := range payloads {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatal(err)
		}
	}

	for i, want := range payloads {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: want %q, got %q", i, want, got)
		}
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, make([]byte, MaxFrameSize+1)); err == nil {
		t.Fatal("expected write error for oversized frame")
	}

	// A forged oversized header is rejected before allocation.
	buf.Reset()
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected read error for oversized frame")
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 10, 'x'})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}
