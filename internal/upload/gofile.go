// Package upload publishes local images on GoFile so that remote editing
// backends can fetch them by URL.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAPIURL     = "https://api.gofile.io"
	DefaultAPITimeout = 15 * time.Second
	DefaultUpTimeout  = 60 * time.Second
)

var (
	ErrNotConfigured  = errors.New("GoFile credentials not configured")
	ErrUploadFailed   = errors.New("GoFile upload failed")
	ErrAccountInvalid = errors.New("GoFile account check failed")
)

type Options struct {
	APIURL string
	// ServerURL maps a server name returned by /servers to its upload base URL.
	ServerURL  func(server string) string
	Token      string
	FolderID   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	apiURL     string
	serverURL  func(string) string
	token      string
	folderID   string
	apiTimeout time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Tier  string `json:"tier"`
}

type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type serversData struct {
	Servers []struct {
		Name string `json:"name"`
		Zone string `json:"zone"`
	} `json:"servers"`
}

type uploadData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func New(opts Options) *Client {
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	serverURL := opts.ServerURL
	if serverURL == nil {
		serverURL = func(server string) string {
			return "https://" + server + ".gofile.io"
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultUpTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiURL:     apiURL,
		serverURL:  serverURL,
		token:      opts.Token,
		folderID:   opts.FolderID,
		apiTimeout: DefaultAPITimeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Configured reports whether both the token and the folder id are set.
func (c *Client) Configured() bool {
	return c.token != "" && c.folderID != ""
}

// Upload sends the file at path to GoFile and returns its public download link.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	c.logger.Info("uploading to GoFile", zap.String("path", path))

	server, err := c.pickServer(ctx)
	if err != nil {
		return "", err
	}

	body, contentType, err := uploadBody(path, c.folderID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL(server)+"/uploadFile", body)
	if err != nil {
		body.Close()
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	var resp envelope[uploadData]
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if resp.Status != "ok" || resp.Data.ID == "" {
		return "", fmt.Errorf("%w: status %q", ErrUploadFailed, resp.Status)
	}

	link := DownloadURL(server, resp.Data.ID, resp.Data.Name)
	c.logger.Info("upload complete", zap.String("url", link))
	return link, nil
}

// DownloadURL builds the public link for an uploaded file.
func DownloadURL(server, id, name string) string {
	return fmt.Sprintf("https://%s.gofile.io/download/%s/%s", server, id, url.QueryEscape(name))
}

func (c *Client) pickServer(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	req, err := c.apiRequest(ctx, "/servers")
	if err != nil {
		return "", err
	}

	var resp envelope[serversData]
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("%w: server lookup: %v", ErrUploadFailed, err)
	}
	if resp.Status != "ok" || len(resp.Data.Servers) == 0 || resp.Data.Servers[0].Name == "" {
		return "", fmt.Errorf("%w: no upload server available", ErrUploadFailed)
	}
	return resp.Data.Servers[0].Name, nil
}

// AccountID resolves the account that owns the configured token.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	if c.token == "" {
		return "", ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	req, err := c.apiRequest(ctx, "/accounts/getid")
	if err != nil {
		return "", err
	}

	var resp envelope[struct {
		ID string `json:"id"`
	}]
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAccountInvalid, err)
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("%w: no account id in response", ErrAccountInvalid)
	}
	return resp.Data.ID, nil
}

// Account fetches account details and confirms the token is accepted.
func (c *Client) Account(ctx context.Context, id string) (*Account, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	req, err := c.apiRequest(ctx, "/accounts/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var resp envelope[Account]
	if err := c.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountInvalid, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: status %q", ErrAccountInvalid, resp.Status)
	}
	return &resp.Data, nil
}

func (c *Client) apiRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// uploadBody streams the multipart form from the open file through a pipe,
// so the image is never held in memory whole.
func uploadBody(path, folderID string) (io.ReadCloser, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		pw.CloseWithError(writeUploadForm(writer, f, filepath.Base(path), folderID))
	}()
	return pr, writer.FormDataContentType(), nil
}

func writeUploadForm(writer *multipart.Writer, src io.Reader, name, folderID string) error {
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.WriteField("folderId", folderID); err != nil {
		return fmt.Errorf("failed to write folderId: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return nil
}
