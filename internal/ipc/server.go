package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/runtimepath"
)

// requestTimeout bounds every command except SHOW_AND_WAIT, which uses the
// caller's timeout.
const requestTimeout = 10 * time.Second

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	host         *host.Host
	reload       func() error
	logger       *slog.Logger
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
	conns        sync.WaitGroup
}

// NewServer creates a new IPC server. reload is called for RELOAD and may be
// nil.
func NewServer(h *host.Host, reload func() error, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		host:       h,
		reload:     reload,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal IPC response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send IPC response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("IPC command", "command", req.Command)

	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandListPalettes:
		return ok(PalettesData{Palettes: s.host.Status()})
	case CommandShow:
		return s.handleShow(req.Payload, false)
	case CommandToggle:
		return s.handleShow(req.Payload, true)
	case CommandHide:
		return s.handleHide(req.Payload)
	case CommandHideAll:
		return s.handleHideAll(req.Payload)
	case CommandFocusMain:
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := s.host.FocusMainWindow(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to focus main window: %v", err))
		}
		return ok(nil)
	case CommandRecover:
		return s.handleRecover()
	case CommandSendMessage:
		return s.handleSendMessage(req.Payload)
	case CommandShowAndWait:
		return s.handleShowAndWait(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleReload() *Response {
	if s.reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	s.logger.Info("config reloaded via IPC")
	return ok(nil)
}

func (s *Server) handleGetStatus() *Response {
	statuses := s.host.Status()
	visible := 0
	for _, st := range statuses {
		if st.Visible {
			visible++
		}
	}
	return ok(StatusData{
		DaemonRunning:   true,
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
		PaletteCount:    len(statuses),
		VisibleCount:    visible,
		Focused:         s.host.Router().Focused().String(),
		ProtocolVersion: s.host.Capabilities().ProtocolVersion,
	})
}

func (s *Server) handleShow(payload json.RawMessage, toggle bool) *Response {
	var req ShowPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid show payload: %v", err))
	}
	if req.ID == "" {
		return NewErrorResponse("id is required")
	}
	opts, err := req.Options()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid show payload: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout+opts.Delay)
	defer cancel()

	c := s.host.Palette(platform.WindowID(req.ID))
	var visible bool
	if toggle {
		visible, err = c.Toggle(ctx, opts)
	} else {
		visible, err = c.Show(ctx, opts)
	}
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to show %s: %v", req.ID, err))
	}
	return ok(ShowData{Visible: visible})
}

func (s *Server) handleHide(payload json.RawMessage) *Response {
	var req HidePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid hide payload: %v", err))
	}
	if req.ID == "" {
		return NewErrorResponse("id is required")
	}
	delay := time.Duration(req.DelayMs) * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout+delay)
	defer cancel()

	id := platform.WindowID(req.ID)
	if delay > 0 {
		c, found := s.host.Lookup(id)
		if !found {
			if !s.host.Declared(id) {
				return NewErrorResponse(fmt.Sprintf("Failed to hide %s: %v", req.ID, host.ErrUnknownPalette))
			}
			return ok(nil)
		}
		if err := c.Hide(ctx, palette.HideOptions{Delay: delay}); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to hide %s: %v", req.ID, err))
		}
		return ok(nil)
	}
	if err := s.host.Dismiss(ctx, id); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to hide %s: %v", req.ID, err))
	}
	return ok(nil)
}

func (s *Server) handleHideAll(payload json.RawMessage) *Response {
	var req HideAllPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid hide-all payload: %v", err))
		}
	}
	except := make([]platform.WindowID, 0, len(req.Except))
	for _, id := range req.Except {
		except = append(except, platform.WindowID(id))
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.host.HideAll(ctx, except...); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to hide palettes: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleRecover() *Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	report, err := s.host.Recover(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Recover failed: %v", err))
	}
	return ok(report)
}

func (s *Server) handleSendMessage(payload json.RawMessage) *Response {
	var msg host.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid message payload: %v", err))
	}
	if _, err := host.ParseMessageKind(string(msg.Kind)); err != nil {
		return NewErrorResponse(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.host.Send(ctx, msg); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to deliver message: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleShowAndWait(payload json.RawMessage) *Response {
	var req ShowPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid show payload: %v", err))
	}
	if req.ID == "" {
		return NewErrorResponse("id is required")
	}
	if req.TimeoutMs <= 0 {
		return NewErrorResponse("timeout_ms must be > 0")
	}
	opts, err := req.Options()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid show payload: %v", err))
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout+requestTimeout+opts.Delay)
	defer cancel()

	msg, err := s.host.ShowAndWait(ctx, platform.WindowID(req.ID), opts, timeout)
	if errors.Is(err, host.ErrCancelled) {
		return ok(msg)
	}
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(msg)
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop shuts down the listener and waits for in-flight requests.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
	s.conns.Wait()
}
