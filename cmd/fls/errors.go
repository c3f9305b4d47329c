package fls

import (
	stderrors "errors"
	"strings"

	"github.com/arthur-debert/fls/pkg/errors"
)

// UserMessage renders err for the terminal: the messages of every coded
// error in the chain, then the underlying cause, without the codes.
func UserMessage(err error) string {
	var parts []string
	for err != nil {
		var flsErr *errors.FlsError
		if !stderrors.As(err, &flsErr) {
			parts = append(parts, err.Error())
			break
		}
		if flsErr.Message != "" {
			parts = append(parts, flsErr.Message)
		}
		err = flsErr.Wrapped
	}
	return strings.Join(parts, ": ")
}
