package resp

// CommandReader yields decoded request commands from a client stream
type CommandReader interface {
	ReadCommand() ([]string, error)
	Buffered() int
}

// ValueWriter buffers encoded replies until Flush
type ValueWriter interface {
	Write(v Value) error
	Flush() error
}
