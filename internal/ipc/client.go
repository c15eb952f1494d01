package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/runtimepath"
)

// Client talks to a running daemon over its unix socket. Each call opens a
// fresh connection and exchanges exactly one request and response.
type Client struct {
	socketPath string
	pathErr    error
	timeout    time.Duration
}

// DaemonError is an ERROR response returned by the daemon.
type DaemonError struct {
	Command CommandType
	Message string
}

func (e *DaemonError) Error() string {
	return "daemon error: " + e.Message
}

// NewClient returns a client for the default socket. Path resolution errors
// surface on the first call.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	return &Client{socketPath: socketPath, pathErr: err, timeout: 15 * time.Second}
}

// sendRequest performs one round trip. extra extends the deadline for
// commands that block on the user.
func (c *Client) sendRequest(req *Request, extra time.Duration) (*Response, error) {
	if c.pathErr != nil {
		return nil, fmt.Errorf("failed to locate daemon socket: %w", c.pathErr)
	}
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(c.timeout + extra)); err != nil {
		return nil, err
	}

	// Encode terminates the request with the newline the server reads up to.
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", req.Command, err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Command, err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", req.Command, err)
	}
	if resp.Status == "ERROR" {
		return nil, &DaemonError{Command: req.Command, Message: resp.Error}
	}
	return &resp, nil
}

func (c *Client) command(cmd CommandType, payload any, out any, extra time.Duration) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req, extra)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.command(CommandReload, nil, nil, 0)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.command(CommandGetStatus, nil, &status, 0); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListPalettes retrieves every declared or created palette.
func (c *Client) ListPalettes() ([]host.Status, error) {
	var data PalettesData
	if err := c.command(CommandListPalettes, nil, &data, 0); err != nil {
		return nil, err
	}
	return data.Palettes, nil
}

// Show shows a palette and reports whether it ended up visible.
func (c *Client) Show(p ShowPayload) (bool, error) {
	var data ShowData
	extra := time.Duration(p.DelayMs) * time.Millisecond
	if err := c.command(CommandShow, p, &data, extra); err != nil {
		return false, err
	}
	return data.Visible, nil
}

// Toggle flips a palette's visibility and reports the new state.
func (c *Client) Toggle(p ShowPayload) (bool, error) {
	var data ShowData
	extra := time.Duration(p.DelayMs) * time.Millisecond
	if err := c.command(CommandToggle, p, &data, extra); err != nil {
		return false, err
	}
	return data.Visible, nil
}

// Hide hides a palette.
func (c *Client) Hide(id string, delayMs int) error {
	extra := time.Duration(delayMs) * time.Millisecond
	return c.command(CommandHide, HidePayload{ID: id, DelayMs: delayMs}, nil, extra)
}

// HideAll hides every visible palette except the listed ids.
func (c *Client) HideAll(except ...string) error {
	return c.command(CommandHideAll, HideAllPayload{Except: except}, nil, 0)
}

// FocusMain returns keyboard focus to the host application.
func (c *Client) FocusMain() error {
	return c.command(CommandFocusMain, nil, nil, 0)
}

// Recover asks the daemon to reconcile palettes with native windows now.
func (c *Client) Recover() (*host.RecoverReport, error) {
	var report host.RecoverReport
	if err := c.command(CommandRecover, nil, &report, 0); err != nil {
		return nil, err
	}
	return &report, nil
}

// SendMessage delivers a palette message to the daemon.
func (c *Client) SendMessage(msg host.Message) error {
	return c.command(CommandSendMessage, msg, nil, 0)
}

// ShowAndWait shows a palette and blocks until it answers or times out.
func (c *Client) ShowAndWait(p ShowPayload) (*host.Message, error) {
	var msg host.Message
	extra := time.Duration(p.TimeoutMs+p.DelayMs) * time.Millisecond
	if err := c.command(CommandShowAndWait, p, &msg, extra); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
