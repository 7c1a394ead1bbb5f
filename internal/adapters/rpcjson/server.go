// Package rpcjson exposes a JSON-RPC 2.0 admin plane over a unix socket.
// The socket is chmod 0600, so callers are local operators who already own
// the process; methods here take an explicit owner id instead of a
// credential, which is how an API key can be issued before one exists.
package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/thijsken/gmsnederland/internal/application"
)

type Server struct {
	service  *application.DispatchService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.DispatchService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "apikey.generate":
		var p struct {
			OwnerID  string `json:"owner_id"`
			ServerID string `json:"server_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		apiKey, err := s.service.GenerateAPIKey(ctx, p.OwnerID, p.ServerID)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"apiKey": apiKey, "ownerId": p.OwnerID}, ID: req.ID}
	case "operator.create":
		var p struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			OwnerID  string `json:"owner_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		op, err := s.service.CreateOperator(ctx, p.Email, p.Password, p.OwnerID)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: op, ID: req.ID}
	case "meldingen.list":
		var p struct {
			OwnerID string `json:"owner_id"`
		}
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.OwnerID) == "" {
			return invalidParams(req.ID)
		}
		meldingen, err := s.service.ListMeldingen(ctx, p.OwnerID)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: meldingen, ID: req.ID}
	case "meldingen.status":
		var p struct {
			OwnerID string `json:"owner_id"`
			ID      uint   `json:"id"`
			Status  string `json:"status"`
		}
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.OwnerID) == "" {
			return invalidParams(req.ID)
		}
		melding, err := s.service.SetMeldingStatus(ctx, p.OwnerID, p.ID, p.Status)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: melding, ID: req.ID}
	case "units.list":
		var p struct {
			OwnerID string `json:"owner_id"`
		}
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.OwnerID) == "" {
			return invalidParams(req.ID)
		}
		units, err := s.service.ListUnits(ctx, p.OwnerID)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: units, ID: req.ID}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32000, Message: err.Error()}, ID: id}
}
