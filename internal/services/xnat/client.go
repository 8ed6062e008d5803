package xnat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"radreport/internal/config"
	"radreport/internal/services"
)

// HTTPDoer abstracts the HTTP client so tests can inject transports.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Experiment is an imaging session as catalogued by the archive.
type Experiment struct {
	ID      string `json:"ID"`
	Label   string `json:"label"`
	Project string `json:"project"`
	Subject string `json:"subject_ID"`
	Date    string `json:"date"`
}

// Scan is one acquisition within an experiment.
type Scan struct {
	ID      string `json:"ID"`
	Type    string `json:"type"`
	Quality string `json:"quality"`
}

// File is one stored resource file of a scan, with the archive's catalogued
// digest for byte-level verification after transfer.
type File struct {
	Name   string `json:"Name"`
	Size   int64  `json:"Size,string"`
	URI    string `json:"URI"`
	Digest string `json:"digest"`
}

// Archive defines the operations the importer and exporter need from an
// XNAT endpoint.
type Archive interface {
	Experiment(ctx context.Context, project, label string) (*Experiment, error)
	Scans(ctx context.Context, experimentID string) ([]Scan, error)
	ScanFiles(ctx context.Context, experimentID, scanID string) ([]File, error)
	DownloadFile(ctx context.Context, uri string, dest io.Writer) error
	EnsureSubject(ctx context.Context, project, subject string) error
	EnsureExperiment(ctx context.Context, project, subject, label string) error
	EnsureScan(ctx context.Context, project, subject, label, scanID, scanType string) error
	UploadScanFile(ctx context.Context, project, subject, label, scanID, name string, body io.Reader) error
	PullDataFromHeaders(ctx context.Context, project, subject, label string) error
}

// Client talks to one XNAT archive over its REST API with basic auth.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient HTTPDoer
}

var _ Archive = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an archive client from one configured endpoint.
func New(archive config.Archive, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(archive.URL), "/")
	if baseURL == "" {
		return nil, errors.New("archive url required")
	}
	timeout := archive.RequestTimeout
	if timeout <= 0 {
		timeout = 60
	}
	client := &Client{
		baseURL:    baseURL,
		username:   archive.Username,
		password:   archive.Password,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// resultSet models XNAT's envelope around every JSON listing.
type resultSet[T any] struct {
	ResultSet struct {
		Result []T `json:"Result"`
	} `json:"ResultSet"`
}

// Experiment looks up a session by its archive label within a project.
func (c *Client) Experiment(ctx context.Context, project, label string) (*Experiment, error) {
	query := url.Values{}
	query.Set("project", project)
	query.Set("label", label)
	query.Set("format", "json")

	var payload resultSet[Experiment]
	err := c.getJSON(ctx, "/data/experiments?"+query.Encode(), &payload)
	if err != nil {
		return nil, err
	}
	for _, exp := range payload.ResultSet.Result {
		if strings.EqualFold(exp.Label, label) {
			found := exp
			return &found, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "xnat", "experiment",
		fmt.Sprintf("session %s not in project %s", label, project), nil)
}

// Scans lists the acquisitions of an experiment.
func (c *Client) Scans(ctx context.Context, experimentID string) ([]Scan, error) {
	var payload resultSet[Scan]
	path := fmt.Sprintf("/data/experiments/%s/scans?format=json", url.PathEscape(experimentID))
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.ResultSet.Result, nil
}

// ScanFiles lists the stored files of a scan, digests included.
func (c *Client) ScanFiles(ctx context.Context, experimentID, scanID string) ([]File, error) {
	var payload resultSet[File]
	path := fmt.Sprintf("/data/experiments/%s/scans/%s/files?format=json",
		url.PathEscape(experimentID), url.PathEscape(scanID))
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.ResultSet.Result, nil
}

// DownloadFile streams a catalogued file URI into dest.
func (c *Client) DownloadFile(ctx context.Context, uri string, dest io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, uri, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(dest, resp.Body); err != nil {
		return services.Wrap(services.ErrConnectivity, "xnat", "download",
			"stream interrupted", err)
	}
	return nil
}

// EnsureSubject creates the subject record if it does not already exist.
func (c *Client) EnsureSubject(ctx context.Context, project, subject string) error {
	path := fmt.Sprintf("/data/projects/%s/subjects/%s",
		url.PathEscape(project), url.PathEscape(subject))
	return c.put(ctx, path, nil)
}

// EnsureExperiment creates the session record if it does not already exist.
func (c *Client) EnsureExperiment(ctx context.Context, project, subject, label string) error {
	path := fmt.Sprintf("/data/projects/%s/subjects/%s/experiments/%s?xsiType=xnat:mrSessionData",
		url.PathEscape(project), url.PathEscape(subject), url.PathEscape(label))
	return c.put(ctx, path, nil)
}

// EnsureScan creates the scan record if it does not already exist.
func (c *Client) EnsureScan(ctx context.Context, project, subject, label, scanID, scanType string) error {
	path := fmt.Sprintf("/data/projects/%s/subjects/%s/experiments/%s/scans/%s?xsiType=xnat:mrScanData&type=%s",
		url.PathEscape(project), url.PathEscape(subject), url.PathEscape(label),
		url.PathEscape(scanID), url.QueryEscape(scanType))
	return c.put(ctx, path, nil)
}

// UploadScanFile stores one file under the scan's DICOM resource.
func (c *Client) UploadScanFile(ctx context.Context, project, subject, label, scanID, name string, body io.Reader) error {
	path := fmt.Sprintf("/data/projects/%s/subjects/%s/experiments/%s/scans/%s/resources/DICOM/files/%s?inbody=true",
		url.PathEscape(project), url.PathEscape(subject), url.PathEscape(label),
		url.PathEscape(scanID), url.PathEscape(name))
	return c.put(ctx, path, body)
}

// PullDataFromHeaders asks the archive to re-derive session metadata from the
// uploaded DICOM headers.
func (c *Client) PullDataFromHeaders(ctx context.Context, project, subject, label string) error {
	path := fmt.Sprintf("/data/projects/%s/subjects/%s/experiments/%s?pullDataFromHeaders=true",
		url.PathEscape(project), url.PathEscape(subject), url.PathEscape(label))
	return c.put(ctx, path, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+path, nil, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode archive response: %w", err)
	}
	return nil
}

func (c *Client) put(ctx context.Context, path string, body io.Reader) error {
	resp, err := c.do(ctx, http.MethodPut, c.baseURL+path, body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do issues one authenticated request and maps transport and status failures
// onto the shared sentinel errors.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, accept string) (*http.Response, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "xnat", strings.ToLower(method),
			fmt.Sprintf("request to %s failed", c.baseURL), err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		drain(resp)
		return nil, services.Wrap(services.ErrNotFound, "xnat", strings.ToLower(method),
			fmt.Sprintf("resource %s not in archive", req.URL.Path), nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp)
		return nil, services.Wrap(services.ErrForbidden, "xnat", strings.ToLower(method),
			fmt.Sprintf("archive rejected credentials for %s", c.baseURL), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		detail := readErrorBody(resp)
		drain(resp)
		return nil, services.Wrap(services.ErrConnectivity, "xnat", strings.ToLower(method),
			fmt.Sprintf("archive returned %d: %s", resp.StatusCode, detail), nil)
	}
	return resp, nil
}

func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return strings.TrimSpace(string(body))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
