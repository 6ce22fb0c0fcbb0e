package web

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Bind listens on the wildcard address at port. If the port is already in
// use it reports that to out and makes exactly one more attempt on port+1.
// Any other failure, or a failure of the second attempt, is returned.
func Bind(port int, out io.Writer) (net.Listener, error) {
	ln, err := listen(port)
	if err == nil {
		return ln, nil
	}
	if !errors.Is(err, unix.EADDRINUSE) {
		return nil, err
	}

	next := port + 1
	fmt.Fprintf(out, "Port %d is already in use. Trying port %d...\n", port, next)
	return listen(next)
}

// Port returns the TCP port ln is bound to.
func Port(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func listen(port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
}
