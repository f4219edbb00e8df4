package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultUploadURL  = "https://node.lighthouse.storage/api/v0/add"
	defaultGatewayURL = "https://gateway.lighthouse.storage/ipfs"
)

// Gateway stores files on an IPFS pinning service and serves them back
// through its public gateway. The CID it returns is what goes on the ledger
// as the document's file hash.
type Gateway struct {
	uploadURL  string
	gatewayURL string
	apiKey     string
	httpc      *http.Client
}

type GatewayOption func(*Gateway)

func WithGatewayHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.httpc = c }
}

// WithGatewayEndpoints overrides the pinning and gateway URLs, mainly for
// tests and self-hosted nodes.
func WithGatewayEndpoints(uploadURL, gatewayURL string) GatewayOption {
	return func(g *Gateway) {
		g.uploadURL = uploadURL
		g.gatewayURL = strings.TrimRight(gatewayURL, "/")
	}
}

func NewGateway(apiKey string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		uploadURL:  defaultUploadURL,
		gatewayURL: defaultGatewayURL,
		apiKey:     apiKey,
		httpc:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type pinResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload pins the file and returns its CID.
func (g *Gateway) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pin upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var pin pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return "", fmt.Errorf("pin upload: decode response: %w", err)
	}
	if pin.Hash == "" {
		return "", fmt.Errorf("pin upload: response carries no CID")
	}
	return pin.Hash, nil
}

// Download streams the pinned file back through the public gateway.
func (g *Gateway) Download(ctx context.Context, cid string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gatewayURL+"/"+cid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway fetch %s: %w", cid, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("gateway fetch %s: status %d", cid, resp.StatusCode)
	}
	return &Object{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}
