// Package executor runs the external program behind a copy, move or
// symlink action and reports how it ended.
//
// The child inherits the terminal so programs like cp can prompt or print
// their own diagnostics. There is no timeout: a slow copy of a large tree
// is allowed to finish. Only a zero exit status counts as success; a
// nonzero status, a terminating signal and a failure to start are all
// reported as ErrActionExecute, and the caller must then leave the stack
// untouched.
package executor
