// Package ports finds free TCP ports on the host.
package ports

import (
	"fmt"
	"github.com/jschaf/pgquery/internal/errs"
	"net"
)

// Port is a TCP port number.
type Port = int

// FindAvailable returns a port that was free when checked by asking the kernel
// to pick an unused port. Another process may claim it before the caller
// binds it.
//
// Adapted from https://github.com/phayes/freeport
// Licensed under BSD-3. Copyright (c) 2014, Patrick Hayes
func FindAvailable() (p Port, mErr error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("listen on free port: %w", err)
	}
	defer errs.Capture(&mErr, l.Close, "close port listener")
	return l.Addr().(*net.TCPAddr).Port, nil
}
