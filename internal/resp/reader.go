package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Request limits
const (
	// MaxArrayLen limits the number of elements in a request array
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB)
	MaxBulkLen = 512 * 1024

	// maxHeaderLen limits "*<n>\r\n" and "$<n>\r\n" lines
	maxHeaderLen = 64
)

var (
	// ErrProtocol marks a malformed frame. The connection that produced it must be closed
	ErrProtocol = errors.New("protocol error")

	ErrInvalidEnding = fmt.Errorf("%w: invalid line ending", ErrProtocol)
	ErrLimitExceeded = fmt.Errorf("%w: limit exceeded", ErrProtocol)
	ErrTrailingData  = fmt.Errorf("%w: trailing data after frame", ErrProtocol)

	ErrUnknownType = errors.New("unknown value type")
)

// Decoder reads request frames (arrays of bulk strings) from a stream
type Decoder struct {
	rd *bufio.Reader
}

// NewDecoder wraps rd in a buffered reader
func NewDecoder(rd io.Reader) *Decoder {
	return &Decoder{rd: bufio.NewReader(rd)}
}

// Buffered returns the number of bytes already read from the stream but not yet decoded
func (d *Decoder) Buffered() int {
	return d.rd.Buffered()
}

// ReadCommand decodes the next frame into its tokens. The first token is the command name.
// An empty array yields an empty, non-nil slice. io.EOF is returned untouched when the
// stream ends on a frame boundary
func (d *Decoder) ReadCommand() ([]string, error) {
	b, err := d.rd.Peek(1)
	if err != nil {
		return nil, err
	}

	if b[0] != TypeArray {
		return nil, fmt.Errorf("%w: expected '*', got %q", ErrProtocol, b[0])
	}

	n, err := d.readHeader(TypeArray)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if n <= 0 {
		return []string{}, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		token, err := d.readBulkString()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

// readBulkString reads "$<len>\r\n<payload>\r\n"
func (d *Decoder) readBulkString() (string, error) {
	n, err := d.readHeader(TypeBulkString)
	if err != nil {
		return "", err
	}

	switch {
	case n == -1:
		return "", fmt.Errorf("%w: null bulk string in request", ErrProtocol)
	case n < 0:
		return "", fmt.Errorf("%w: invalid bulk length %d", ErrProtocol, n)
	case n > MaxBulkLen:
		return "", fmt.Errorf("%w: bulk length %d exceeds %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(d.rd, buf); err != nil {
		return "", err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return "", ErrInvalidEnding
	}

	return string(buf[:n]), nil
}

// readHeader reads a "<prefix><int>\r\n" line and returns the integer
func (d *Decoder) readHeader(prefix byte) (int, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}

	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c' header", ErrProtocol, prefix)
	}

	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line[1:])
	}

	return n, nil
}

// readLine returns one CRLF terminated line without the terminator
func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := d.rd.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > maxHeaderLen {
			return nil, fmt.Errorf("%w: header line exceeds %d bytes", ErrLimitExceeded, maxHeaderLen)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, ErrInvalidEnding
	}

	return line[:len(line)-2], nil
}

// unexpectedEOF reports an EOF inside a frame as io.ErrUnexpectedEOF
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Parse decodes a buffer that holds exactly one request frame.
// Empty input yields an empty command
func Parse(buf []byte) ([]string, error) {
	if len(buf) == 0 {
		return []string{}, nil
	}

	r := bytes.NewReader(buf)
	d := NewDecoder(r)
	tokens, err := d.ReadCommand()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated frame", ErrProtocol)
		}
		return nil, err
	}

	if d.Buffered() > 0 || r.Len() > 0 {
		return nil, ErrTrailingData
	}

	return tokens, nil
}
