package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Wire format. Each connection carries exactly one request and one
// reply. Both are XDR-encoded structs preceded by a four-byte
// big-endian length. The request names the method and the declared
// parameter types so the peer can resolve the handler without a
// pre-shared schema; arguments and results travel as nested XDR
// payloads.

// maxFrameSize bounds a single framed message. Storage reads and
// writes are chunked well below this by their callers.
const maxFrameSize = 64 << 20

const (
	statusOK    = 0
	statusError = 1
)

// Request is the framed form of a remote call.
type Request struct {
	Method     string
	ParamTypes []string
	Args       []byte
}

// Reply is the framed form of a remote result. Exactly one of Result
// or the error pair is meaningful, selected by Status.
type Reply struct {
	Status  uint32
	ErrKind string
	ErrMsg  string
	Result  []byte
}

// EncodeBody XDR-encodes an argument or result struct for embedding in
// a frame.
func EncodeBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBody decodes an XDR payload produced by EncodeBody.
func DecodeBody(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeFrame(w io.Writer, v any) error {
	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, v); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if body.Len() > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", body.Len())
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(body.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if _, err := xdr.Unmarshal(bytes.NewReader(body), v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

func successReply(result any) (*Reply, error) {
	body, err := EncodeBody(result)
	if err != nil {
		return nil, err
	}
	return &Reply{Status: statusOK, Result: body}, nil
}

func errorReply(err error) *Reply {
	return &Reply{
		Status:  statusError,
		ErrKind: KindOf(err),
		ErrMsg:  err.Error(),
	}
}
