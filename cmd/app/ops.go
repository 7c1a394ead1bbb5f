package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/thijsken/gmsnederland/internal/domain"
)

// Operations that need an owner-scoped credential go over HTTP with the
// stored API key or bearer token. The unix socket is a trusted local plane:
// callers name the owner directly, so the admin-only methods live there.

type adminRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type adminResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *adminError     `json:"error"`
}

type adminError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// callAdmin sends one JSON-RPC request over the server's unix socket. One
// request per connection keeps the client trivial; the admin plane is a
// local, low-traffic surface.
func callAdmin(ctx context.Context, socket, method string, params any, out any) error {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", socket)
	if err != nil {
		return fmt.Errorf("dial admin socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := json.NewEncoder(conn).Encode(adminRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}); err != nil {
		return err
	}
	var resp adminResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s failed (%d): %s", method, resp.Error.Code, resp.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	client := newAPIClient(cfg.Server, "", "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":     email,
		"password":  password,
		"tokenName": tokenName,
	}, out)
}

func doAPIKeyGenerate(ctx context.Context, cfg cliConfig, ownerID, serverID string, out any) error {
	if cfg.Transport == "uds" {
		return callAdmin(ctx, cfg.Socket, "apikey.generate", map[string]any{"owner_id": ownerID, "server_id": serverID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/apikey/generate", map[string]any{"ownerId": ownerID, "serverId": serverID}, out)
}

func doOperatorCreate(ctx context.Context, cfg cliConfig, email, password, ownerID string, out any) error {
	return callAdmin(ctx, cfg.Socket, "operator.create", map[string]any{"email": email, "password": password, "owner_id": ownerID}, out)
}

func doMeldingenList(ctx context.Context, cfg cliConfig, ownerID string, out *[]domain.Melding) error {
	if cfg.Transport == "uds" && ownerID != "" {
		return callAdmin(ctx, cfg.Socket, "meldingen.list", map[string]any{"owner_id": ownerID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/meldingen", nil, out)
}

func doMeldingCreate(ctx context.Context, cfg cliConfig, meldingType, location, player, description string, out *domain.Melding) error {
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	var envelope struct {
		Data domain.Melding `json:"data"`
	}
	err := client.request(ctx, http.MethodPost, "/api/meldingen", map[string]any{
		"type":        meldingType,
		"location":    location,
		"playerName":  player,
		"description": description,
	}, &envelope)
	if err != nil {
		return err
	}
	*out = envelope.Data
	return nil
}

func doMeldingStatus(ctx context.Context, cfg cliConfig, ownerID string, id uint, status string, out *domain.Melding) error {
	if cfg.Transport == "uds" && ownerID != "" {
		return callAdmin(ctx, cfg.Socket, "meldingen.status", map[string]any{"owner_id": ownerID, "id": id, "status": status}, out)
	}
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	var envelope struct {
		Data domain.Melding `json:"data"`
	}
	err := client.request(ctx, http.MethodPatch, "/api/meldingen/"+uintToString(id)+"/status", map[string]any{"status": status}, &envelope)
	if err != nil {
		return err
	}
	*out = envelope.Data
	return nil
}

func doUnitsList(ctx context.Context, cfg cliConfig, ownerID string, out *[]domain.Unit) error {
	if cfg.Transport == "uds" && ownerID != "" {
		return callAdmin(ctx, cfg.Socket, "units.list", map[string]any{"owner_id": ownerID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/units", nil, out)
}

func doUnitUpsert(ctx context.Context, cfg cliConfig, unitID, unitType, location string, out *domain.Unit) error {
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	var envelope struct {
		Data domain.Unit `json:"data"`
	}
	err := client.request(ctx, http.MethodPost, "/api/units", map[string]any{
		"id":       unitID,
		"type":     unitType,
		"location": location,
	}, &envelope)
	if err != nil {
		return err
	}
	*out = envelope.Data
	return nil
}

func doSirenPost(ctx context.Context, cfg cliConfig, action, deviceID string) error {
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/luchtalarm/actie", map[string]any{
		"action":   action,
		"deviceId": deviceID,
	}, nil)
}

// doSirenTake polls the siren slot. An empty slot answers 204, which leaves
// the decoded action at its zero value.
func doSirenTake(ctx context.Context, cfg cliConfig) (domain.SirenAction, bool, error) {
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	var action domain.SirenAction
	if err := client.request(ctx, http.MethodGet, "/api/luchtalarm/actie", nil, &action); err != nil {
		return domain.SirenAction{}, false, err
	}
	if action.Action == "" && action.DeviceID == "" {
		return domain.SirenAction{}, false, nil
	}
	return action, true, nil
}

func doPostAlarmPost(ctx context.Context, cfg cliConfig, alarm domain.PostAlarm) error {
	client := newAPIClient(cfg.Server, cfg.APIKey, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/posten/alarm", alarm, nil)
}
