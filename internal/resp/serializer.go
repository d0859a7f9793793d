package resp

import (
	"bytes"
)

// EncodeCommand renders args as a request frame: an array of bulk strings
func EncodeCommand(args ...string) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	elements := make([]Value, len(args))
	for i, arg := range args {
		elements[i] = MakeBulkString(arg)
	}

	// bytes.Buffer never fails a write
	enc.Write(MakeArray(elements)) //nolint:errcheck
	enc.Flush()                    //nolint:errcheck

	return buf.Bytes()
}
