// Package pinning talks to the content-addressed storage service. Two
// upload protocols exist: a single multipart pin for public files and a
// two-step presigned upload for private ones. CIDs are opaque strings.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	NetworkPublic  = "public"
	NetworkPrivate = "private"

	signUploadExpires   = 3600
	downloadLinkExpires = 86400
)

type Client struct {
	endpoint string
	token    string
	http     *http.Client
	now      func() time.Time
}

func New(endpoint, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    token,
		http:     httpClient,
		now:      time.Now,
	}
}

// Host returns the service hostname, used by the classifier to recognize
// already-migrated references.
func (c *Client) Host() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// PinPublic uploads bytes with a single multipart call to the public pin
// endpoint and returns the CID.
func (c *Client) PinPublic(ctx context.Context, data []byte, filename, groupID string) (string, error) {
	if c.token == "" {
		return "", ErrTokenMissing
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}

	metadata := map[string]any{
		"name":      filename,
		"keyvalues": map[string]string{"isPrivate": "false"},
	}
	metaJSON, _ := json.Marshal(metadata)
	if err := w.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}
	options := map[string]any{"cidVersion": 1}
	if groupID != "" {
		options["groupId"] = groupID
	}
	optJSON, _ := json.Marshal(options)
	if err := w.WriteField("pinataOptions", string(optJSON)); err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}
	if groupID != "" {
		if err := w.WriteField("network", NetworkPublic); err != nil {
			return "", fmt.Errorf("pinning: build multipart: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoint+"/pinning/pinFileToIPFS", &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	cid := gjson.GetBytes(body, "IpfsHash").String()
	if cid == "" {
		return "", ErrUploadIncomplete
	}
	return cid, nil
}

// UploadPrivate runs the two-step private protocol: obtain a presigned
// upload URL, then post the body to it. Returns the CID.
func (c *Client) UploadPrivate(ctx context.Context, data []byte, filename, groupID string) (string, error) {
	if c.token == "" {
		return "", ErrTokenMissing
	}

	signed, err := c.signUpload(ctx, filename, groupID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("pinning: build multipart: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, signed, &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	cid := gjson.GetBytes(body, "data.cid").String()
	if cid == "" {
		return "", ErrUploadIncomplete
	}
	return cid, nil
}

func (c *Client) signUpload(ctx context.Context, filename, groupID string) (string, error) {
	req := map[string]any{
		"date":      c.now().Unix(),
		"expires":   signUploadExpires,
		"filename":  filename,
		"keyvalues": map[string]string{"isPrivate": "true"},
	}
	if groupID != "" {
		req["group_id"] = groupID
		req["network"] = NetworkPrivate
	}
	payload, _ := json.Marshal(req)

	body, err := c.do(ctx, http.MethodPost, c.endpoint+"/v3/files/sign", bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignFailed, err)
	}
	signed := gjson.GetBytes(body, "data").String()
	if signed == "" {
		return "", ErrSignFailed
	}
	return signed, nil
}

// SignDownload exchanges a private gateway URL for a short-lived signed
// download URL.
func (c *Client) SignDownload(ctx context.Context, rawURL string) (string, error) {
	if c.token == "" {
		return "", ErrTokenMissing
	}
	req := map[string]any{
		"url":     rawURL,
		"expires": downloadLinkExpires,
		"date":    c.now().Unix(),
		"method":  "GET",
	}
	payload, _ := json.Marshal(req)

	body, err := c.do(ctx, http.MethodPost, c.endpoint+"/v3/files/private/download_link", bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}
	signed := gjson.GetBytes(body, "data").String()
	if signed == "" {
		return "", ErrSignFailed
	}
	return signed, nil
}

// EnsureGroup returns the id of the group with the given name on the
// public or private network, creating it if it does not exist.
func (c *Client) EnsureGroup(ctx context.Context, name string, public bool) (string, error) {
	if c.token == "" {
		return "", ErrTokenMissing
	}
	network := NetworkPrivate
	if public {
		network = NetworkPublic
	}

	listURL := fmt.Sprintf("%s/v3/groups/%s?name=%s", c.endpoint, network, url.QueryEscape(name))
	body, err := c.do(ctx, http.MethodGet, listURL, nil, "")
	if err != nil {
		return "", err
	}
	var found string
	gjson.GetBytes(body, "data.groups").ForEach(func(_, g gjson.Result) bool {
		if g.Get("name").String() == name {
			found = g.Get("id").String()
			return false
		}
		return true
	})
	if found != "" {
		return found, nil
	}

	payload, _ := json.Marshal(map[string]any{"name": name, "is_public": public})
	body, err = c.do(ctx, http.MethodPost, c.endpoint+"/v3/groups/"+network, bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "data.id").String()
	if id == "" {
		return "", fmt.Errorf("pinning: create group %q: response missing id", name)
	}
	return id, nil
}

// ResolveGroup wraps EnsureGroup with the contract that group binding never
// fails an upload: errors are logged and an empty id is returned.
func (c *Client) ResolveGroup(ctx context.Context, name string, public bool) string {
	if name == "" {
		return ""
	}
	id, err := c.EnsureGroup(ctx, name, public)
	if err != nil {
		slog.Warn("group binding skipped", "group", name, "err", err)
		return ""
	}
	return id
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("pinning: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinning: %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pinning: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, http.StatusText(resp.StatusCode), respBody)
	}
	return respBody, nil
}
