//go:build !tinygo

package transport

import (
	"errors"
	"syscall"
)

func errAgain(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
