package server

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire format: length-prefixed CBOR frames
// ---------------------------------------------------------------------------

// MaxFrameSize bounds a single wire frame. Requests are source text and
// responses are display forms; anything near this limit is malformed.
const MaxFrameSize = 4 << 20

// cborEncMode uses canonical encoding so identical messages encode to
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EvalRequest asks the service to evaluate source text in a session.
// An empty Session requests a fresh one.
type EvalRequest struct {
	Session string `cbor:"session"`
	Source  string `cbor:"source"`
}

// EvalResponse carries the evaluation outcome. Value is the final value's
// display form; Output is everything puts wrote during the run. Errors
// holds parse, compile or runtime error messages, in the order produced.
type EvalResponse struct {
	Session string   `cbor:"session"`
	Value   string   `cbor:"value"`
	Output  string   `cbor:"output"`
	Errors  []string `cbor:"errors,omitempty"`
}

// MarshalRequest serializes an EvalRequest to CBOR bytes.
func MarshalRequest(r *EvalRequest) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRequest deserializes an EvalRequest from CBOR bytes.
func UnmarshalRequest(data []byte) (*EvalRequest, error) {
	var r EvalRequest
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("server: unmarshal request: %w", err)
	}
	return &r, nil
}

// MarshalResponse serializes an EvalResponse to CBOR bytes.
func MarshalResponse(r *EvalResponse) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalResponse deserializes an EvalResponse from CBOR bytes.
func UnmarshalResponse(data []byte) (*EvalResponse, error) {
	var r EvalResponse
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("server: unmarshal response: %w", err)
	}
	return &r, nil
}

// WriteFrame writes one length-prefixed message.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("server: frame too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed message.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("server: frame too large: %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
