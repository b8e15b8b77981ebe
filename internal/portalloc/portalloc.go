package portalloc

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// Descriptor files live in a hidden subdirectory of every project root so any
// local process can discover the bridge port.
const (
	DescriptorDir  = ".bridge"
	DescriptorFile = "port"
)

var ErrNoPortAvailable = errors.New("no port available in candidate range")

// Allocator binds a loopback TCP port from a contiguous candidate range and
// publishes it to every configured project root. One allocator per bridge
// process; concurrent allocators against the same roots are not supported.
type Allocator struct {
	Host      string
	BasePort  int
	PortRange int
	Roots     []string

	cursor   int
	listenFn func(network, addr string) (net.Listener, error)
}

func New(host string, basePort, portRange int, roots []string) *Allocator {
	return &Allocator{
		Host:      host,
		BasePort:  basePort,
		PortRange: portRange,
		Roots:     roots,
		listenFn:  net.Listen,
	}
}

// Allocate scans the candidate range once, starting where the previous scan
// left off and wrapping past the range top, and returns the first port it can
// bind. Stale descriptor files are removed up front so consumers never read a
// dangling port; the bound port is written back to every root.
func (a *Allocator) Allocate() (net.Listener, int, error) {
	a.removeDescriptors()

	if a.PortRange <= 0 {
		return nil, 0, ErrNoPortAvailable
	}
	for attempts := 0; attempts < a.PortRange; attempts++ {
		port := a.BasePort + a.cursor
		a.cursor = (a.cursor + 1) % a.PortRange

		ln, err := a.listenFn("tcp", net.JoinHostPort(a.Host, strconv.Itoa(port)))
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				continue
			}
			return nil, 0, fmt.Errorf("bind %s:%d: %w", a.Host, port, err)
		}
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		a.writeDescriptors(port)
		return ln, port, nil
	}
	return nil, 0, ErrNoPortAvailable
}

// Cleanup removes the descriptor files so no consumer reads a port that is no
// longer listening.
func (a *Allocator) Cleanup() {
	a.removeDescriptors()
}

func (a *Allocator) removeDescriptors() {
	for _, root := range a.Roots {
		path := filepath.Join(root, DescriptorDir, DescriptorFile)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("portalloc: remove %s: %v", path, err)
		}
	}
}

// writeDescriptors publishes the port to every root. Failures here are logged
// and swallowed: the bridge still works, the port just cannot be discovered
// by file.
func (a *Allocator) writeDescriptors(port int) {
	for _, root := range a.Roots {
		dir := filepath.Join(root, DescriptorDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("portalloc: create %s: %v", dir, err)
			continue
		}
		path := filepath.Join(dir, DescriptorFile)
		if err := os.WriteFile(path, []byte(strconv.Itoa(port)), 0o644); err != nil {
			log.Printf("portalloc: write %s: %v", path, err)
		}
	}
}
