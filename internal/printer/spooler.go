// Package printer talks to receipt printers: a Spooler drives the local
// print system, Server exposes it over HTTP, and Client calls that server.
package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

var ErrNoPrinter = errors.New("printer name is required")

// Spooler submits raw jobs to installed printers.
type Spooler interface {
	Printers(ctx context.Context) ([]string, error)
	Print(ctx context.Context, printer string, data []byte) (jobID string, err error)
}

// runFunc runs name with args, feeding stdin, and returns combined stdout.
type runFunc func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// CUPS drives the lpstat and lp commands.
type CUPS struct {
	run runFunc
}

func NewCUPS() *CUPS {
	return &CUPS{run: execRun}
}

func execRun(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (c *CUPS) Printers(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, nil, "lpstat", "-e")
	if err != nil {
		return nil, err
	}
	printers := []string{}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			printers = append(printers, line)
		}
	}
	return printers, nil
}

// Print sends data unfiltered so ESC/POS sequences reach the device intact.
func (c *CUPS) Print(ctx context.Context, printer string, data []byte) (string, error) {
	if strings.TrimSpace(printer) == "" {
		return "", ErrNoPrinter
	}
	out, err := c.run(ctx, bytes.NewReader(data), "lp", "-d", printer, "-o", "raw")
	if err != nil {
		return "", err
	}
	return parseJobID(string(out)), nil
}

// parseJobID extracts "EPSON-12" from "request id is EPSON-12 (1 file(s))".
func parseJobID(out string) string {
	const marker = "request id is "
	i := strings.Index(out, marker)
	if i < 0 {
		return strings.TrimSpace(out)
	}
	fields := strings.Fields(out[i+len(marker):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
