package net

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func GetFreeRandomPort(t testing.TB) int {
	port, err := GetFreePort()
	require.NoError(t, err)
	return port
}

// GetFreeLocalAddr returns "127.0.0.1:port" where port is currently free.
func GetFreeLocalAddr(t testing.TB) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(GetFreeRandomPort(t)))
}

func GetFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port, nil
}
