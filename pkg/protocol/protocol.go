// Package protocol implements the NUL-terminated message exchange between
// fls clients and the fls daemon, and the command vocabulary carried on it.
//
// Every message is a run of bytes followed by a single Terminator. There is
// no length prefix: a reader consumes one byte at a time until it sees the
// terminator or the buffer limit is hit. Commands, status tokens, reasons
// and decimal numbers are bounded by Limits.MessageMax; path payloads by
// Limits.PathMax.
//
// Command exchanges, as seen from the client:
//
//	push  -> okay | (error, "file stack full")
//	         path -> (okay, path) | (error, "file path too long")
//	pop   -> (okay, path) | (error, "file stack empty")
//	peek  -> (okay, path) | (error, "file stack empty")
//	pick  -> okay
//	         index -> (okay, path) | (error, "stack is not that deep")
//	size  -> depth
//	stop  -> okay
//	other -> (error, "unknown command `other'")
package protocol

// Terminator ends every message on the wire.
const Terminator byte = 0x00

// Command tokens.
const (
	CmdPush = "push"
	CmdPop  = "pop"
	CmdPeek = "peek"
	CmdPick = "pick"
	CmdSize = "size"
	CmdStop = "stop"
)

// Status tokens.
const (
	TokenOkay  = "okay"
	TokenError = "error"
)

// Rejection reasons sent after TokenError.
const (
	ReasonStackEmpty    = "file stack empty"
	ReasonStackFull     = "file stack full"
	ReasonPathTooLong   = "file path too long"
	ReasonNotThatDeep   = "stack is not that deep"
	ReasonUnknownCmdFmt = "unknown command `%s'"
)

// Default buffer limits, terminator included.
const (
	DefaultMessageMax = 100
	DefaultPathMax    = 2000
)

// Limits bounds the size of received messages.
type Limits struct {
	// MessageMax bounds commands, status tokens, reasons and numbers.
	MessageMax int
	// PathMax bounds path payloads.
	PathMax int
}

// DefaultLimits returns the stock message and path limits.
func DefaultLimits() Limits {
	return Limits{MessageMax: DefaultMessageMax, PathMax: DefaultPathMax}
}

func (l Limits) withDefaults() Limits {
	if l.MessageMax <= 1 {
		l.MessageMax = DefaultMessageMax
	}
	if l.PathMax <= 1 {
		l.PathMax = DefaultPathMax
	}
	return l
}
