package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id {
		return fmt.Errorf("socketrpc: response id %d, want %d", resp.ID, id)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// GetState returns the daemon's state, restricted to one session unless
// sessionID is empty.
func (c *Client) GetState(sessionID string) (model.State, error) {
	var result model.State
	err := c.call("GetState", GetStateParams{SessionID: sessionID}, &result)
	return result, err
}

// GetStats returns the ingestion counters.
func (c *Client) GetStats() (model.Stats, error) {
	var result model.Stats
	err := c.call("GetStats", nil, &result)
	return result, err
}

// GetSettings returns the current capture settings.
func (c *Client) GetSettings() (model.Settings, error) {
	var result model.Settings
	err := c.call("GetSettings", nil, &result)
	return result, err
}

// Dispatch sends one envelope document to the engine.
func (c *Client) Dispatch(envelope []byte, sessionID string) (model.Response, error) {
	var result model.Response
	if !json.Valid(envelope) {
		return result, fmt.Errorf("socketrpc: envelope is not valid JSON")
	}
	err := c.call("Dispatch", DispatchParams{Envelope: envelope, SessionID: sessionID}, &result)
	return result, err
}
