package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// MachineResponse — машина из API.
type MachineResponse struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	EnvName     string            `json:"env_name"`
	Name        string            `json:"name"`
	Dev         bool              `json:"dev"`
	Config      map[string]any    `json:"config"`
	Address     string            `json:"address,omitempty"`
	Ports       map[string]string `json:"ports,omitempty"`
	Ready       bool              `json:"ready"`
}

// RuntimeResponse — runtime из API.
type RuntimeResponse struct {
	WorkspaceID string            `json:"workspace_id"`
	Status      string            `json:"status"`
	EnvName     string            `json:"env_name"`
	DevMachine  *MachineResponse  `json:"dev_machine,omitempty"`
	Machines    []MachineResponse `json:"machines"`
	StartedAt   string            `json:"started_at"`
}

// WorkspaceStateResponse — workspace с runtime из API.
type WorkspaceStateResponse struct {
	WorkspaceID string `json:"workspace_id"`
	Status      string `json:"status"`
	EnvName     string `json:"env_name"`
}

// SnapshotResponse — snapshot из API.
type SnapshotResponse struct {
	ID          string `json:"id"`
	ImageID     string `json:"image_id"`
	Namespace   string `json:"namespace"`
	WorkspaceID string `json:"workspace_id"`
	EnvName     string `json:"env_name"`
	MachineName string `json:"machine_name"`
	Type        string `json:"type"`
	Dev         bool   `json:"dev"`
	CreatedAt   string `json:"created_at"`
}

// EventResponse — событие workspace из API.
type EventResponse struct {
	Type        string `json:"type"`
	WorkspaceID string `json:"workspace_id"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// --- Request types ---

// StartRuntimeRequest — запуск runtime.
type StartRuntimeRequest struct {
	Workspace any    `json:"workspace,omitempty"`
	Env       string `json:"env,omitempty"`
	Recover   bool   `json:"recover,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для wsmaster API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Запуск runtime ждёт провизии всех машин
			Timeout: 10 * time.Minute,
		},
	}
}

// --- Workspaces ---

// ListWorkspaces возвращает workspace с runtime.
// status фильтрует по статусу runtime (пусто — все).
func (c *Client) ListWorkspaces(status string) ([]WorkspaceStateResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var states []WorkspaceStateResponse
	err := c.list("/api/v1/workspaces", params, &states)
	return states, err
}

// StartRuntime запускает runtime workspace.
func (c *Client) StartRuntime(workspaceID string, req StartRuntimeRequest) (*RuntimeResponse, error) {
	var rt RuntimeResponse
	err := c.post(workspacePath(workspaceID, "runtime"), req, &rt)
	return &rt, err
}

// GetRuntime возвращает runtime workspace.
func (c *Client) GetRuntime(workspaceID string) (*RuntimeResponse, error) {
	var rt RuntimeResponse
	err := c.get(workspacePath(workspaceID, "runtime"), &rt)
	return &rt, err
}

// StopRuntime останавливает runtime workspace.
func (c *Client) StopRuntime(workspaceID string) error {
	return c.delete(workspacePath(workspaceID, "runtime"))
}

// --- Machines ---

// StartMachine добавляет машину в runtime.
func (c *Client) StartMachine(workspaceID string, cfg any) (*MachineResponse, error) {
	var m MachineResponse
	err := c.post(workspacePath(workspaceID, "machines"), cfg, &m)
	return &m, err
}

// GetMachine возвращает машину runtime.
func (c *Client) GetMachine(workspaceID, machineID string) (*MachineResponse, error) {
	var m MachineResponse
	err := c.get(workspacePath(workspaceID, "machines", machineID), &m)
	return &m, err
}

// StopMachine останавливает машину runtime.
func (c *Client) StopMachine(workspaceID, machineID string) error {
	return c.delete(workspacePath(workspaceID, "machines", machineID))
}

// SaveMachine сохраняет snapshot машины.
func (c *Client) SaveMachine(workspaceID, machineID, namespace string) (*SnapshotResponse, error) {
	body := map[string]string{}
	if namespace != "" {
		body["namespace"] = namespace
	}
	var s SnapshotResponse
	err := c.post(workspacePath(workspaceID, "machines", machineID, "snapshot"), body, &s)
	return &s, err
}

// --- Snapshots ---

// ListSnapshots возвращает snapshots workspace.
func (c *Client) ListSnapshots(workspaceID string) ([]SnapshotResponse, error) {
	var snapshots []SnapshotResponse
	err := c.list(workspacePath(workspaceID, "snapshots"), nil, &snapshots)
	return snapshots, err
}

// RemoveSnapshot удаляет snapshot.
func (c *Client) RemoveSnapshot(id string) error {
	return c.delete("/api/v1/snapshots/" + url.PathEscape(id))
}

// --- Events ---

// ListEvents возвращает последние события workspace.
func (c *Client) ListEvents(workspaceID string, limit int) ([]EventResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var events []EventResponse
	err := c.list(workspacePath(workspaceID, "events"), params, &events)
	return events, err
}

// workspacePath строит путь ресурса workspace с экранированием сегментов.
func workspacePath(workspaceID string, segments ...string) string {
	var b strings.Builder
	b.WriteString("/api/v1/workspaces/")
	b.WriteString(url.PathEscape(workspaceID))
	for i, s := range segments {
		b.WriteByte('/')
		// чётные сегменты — имена коллекций, нечётные — идентификаторы
		if i%2 == 1 {
			s = url.PathEscape(s)
		}
		b.WriteString(s)
	}
	return b.String()
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
