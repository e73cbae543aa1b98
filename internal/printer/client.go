package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client calls a print service started with NewServer.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

type printersResponse struct {
	Success  bool     `json:"success"`
	Printers []string `json:"printers"`
	Error    string   `json:"error"`
}

func (c *Client) Printers(ctx context.Context) ([]string, error) {
	var out printersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/printers")
	if err != nil {
		return nil, fmt.Errorf("list printers: %w", err)
	}
	if resp.IsError() || !out.Success {
		return nil, remoteError("list printers", resp.StatusCode(), out.Error)
	}
	return out.Printers, nil
}

// Print submits content to printer and returns the spooler job id.
func (c *Client) Print(ctx context.Context, printer, content string) (string, error) {
	if printer == "" {
		return "", ErrNoPrinter
	}
	var out printResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(printRequest{Content: content, PrinterName: printer}).
		SetResult(&out).
		SetError(&out).
		Post("/print")
	if err != nil {
		return "", fmt.Errorf("print: %w", err)
	}
	if resp.IsError() || !out.Success {
		return "", remoteError("print", resp.StatusCode(), out.Error)
	}
	return out.JobID, nil
}

func remoteError(op string, status int, msg string) error {
	if msg == "" {
		msg = "unexpected response"
	}
	return fmt.Errorf("%s: status %d: %w", op, status, errors.New(msg))
}
