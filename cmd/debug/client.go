package debug

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cardroom/api"
	"cardroom/application"
	"cardroom/domain/interfaces"
)

// DebugClient provides access to the running service's debug API
type DebugClient struct {
	baseURL string
	client  *http.Client
}

// NewDebugClient creates a new debug API client for a loopback port
func NewDebugClient(port int) *DebugClient {
	return NewDebugClientForURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewDebugClientForURL creates a debug API client for an explicit base URL
func NewDebugClientForURL(baseURL string) *DebugClient {
	return &DebugClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckConnection verifies the debug API is accessible
func (c *DebugClient) CheckConnection() error {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("debug API not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("debug API returned status %d", resp.StatusCode)
	}

	return nil
}

// Table fetches a table and its occupied seats
func (c *DebugClient) Table(tableID int64) (*api.TableView, error) {
	var view api.TableView
	if err := c.do(http.MethodGet, fmt.Sprintf("/debug/tables/%d", tableID), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Balance fetches one wallet balance
func (c *DebugClient) Balance(userID int64, currency string) (*api.BalanceView, error) {
	var view api.BalanceView
	if err := c.do(http.MethodGet, fmt.Sprintf("/debug/users/%d/balance/%s", userID, currency), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Reconcile compares a wallet with its ledger
func (c *DebugClient) Reconcile(userID int64, currency string) (*interfaces.ReconcileResult, error) {
	var result interfaces.ReconcileResult
	if err := c.do(http.MethodGet, fmt.Sprintf("/debug/users/%d/reconcile/%s", userID, currency), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Waitlist fetches waiting buckets and table counts
func (c *DebugClient) Waitlist() (*api.WaitlistView, error) {
	var view api.WaitlistView
	if err := c.do(http.MethodGet, "/debug/waitlist", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Sweep triggers the expiration, join window and invite sweeps
func (c *DebugClient) Sweep() (*api.SweepView, error) {
	var view api.SweepView
	if err := c.do(http.MethodPost, "/debug/sweep", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Route triggers a waitlist router pass
func (c *DebugClient) Route() (*application.PassReport, error) {
	var report application.PassReport
	if err := c.do(http.MethodPost, "/debug/route", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// do sends a request and decodes the envelope's data into out
func (c *DebugClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Error   string          `json:"error,omitempty"`
		Code    string          `json:"code,omitempty"`
		Data    json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if !envelope.Success {
		if envelope.Code != "" {
			return fmt.Errorf("%s: %s", envelope.Code, envelope.Error)
		}
		return fmt.Errorf("request failed: %s", envelope.Error)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return nil
}
