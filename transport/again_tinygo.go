//go:build tinygo

package transport

func errAgain(error) bool { return false }
