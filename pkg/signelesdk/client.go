// Package signelesdk is the Go client for the Signele HTTP API.
package signelesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// Error is a non-2xx API response, carrying the server's error envelope.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("signele api: http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type Document struct {
	DocumentID  uint64   `json:"document_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	FileHash    string   `json:"file_hash"`
	Signers     []string `json:"signers"`
	Creator     string   `json:"creator"`
	Completed   bool     `json:"completed"`
}

type Signature struct {
	Signer        string `json:"signer"`
	SignatureHash string `json:"signature_hash"`
	Timestamp     string `json:"timestamp"`
}

type UserIndex struct {
	Address string   `json:"address"`
	Created []uint64 `json:"created"`
	Pending []uint64 `json:"pending"`
}

type documentsResponse struct {
	Documents []Document `json:"documents"`
}

type documentResponse struct {
	Document Document `json:"document"`
}

type signaturesResponse struct {
	Signatures []Signature `json:"signatures"`
}

type createResponse struct {
	DocumentID uint64 `json:"document_id"`
	Status     string `json:"status"`
}

type uploadResponse struct {
	FileHash string `json:"file_hash"`
}

type CreateDocumentRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	FileHash    string   `json:"file_hash"`
	Signers     []string `json:"signers"`
}

func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	out, err := getJSON[documentsResponse](ctx, c, "/signele/v1/documents")
	if err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *Client) Document(ctx context.Context, id uint64) (*Document, error) {
	out, err := getJSON[documentResponse](ctx, c, fmt.Sprintf("/signele/v1/documents/%d", id))
	if err != nil {
		return nil, err
	}
	return &out.Document, nil
}

func (c *Client) Signatures(ctx context.Context, id uint64) ([]Signature, error) {
	out, err := getJSON[signaturesResponse](ctx, c, fmt.Sprintf("/signele/v1/documents/%d/signatures", id))
	if err != nil {
		return nil, err
	}
	return out.Signatures, nil
}

func (c *Client) UserIndex(ctx context.Context, address string) (*UserIndex, error) {
	return postOrGetJSON[UserIndex](ctx, c, http.MethodGet, "/signele/v1/users/"+address+"/index", nil)
}

// CreateDocument blocks until the ledger confirms and returns the assigned
// document ID.
func (c *Client) CreateDocument(ctx context.Context, req CreateDocumentRequest) (uint64, error) {
	out, err := postOrGetJSON[createResponse](ctx, c, http.MethodPost, "/signele/v1/documents", req)
	if err != nil {
		return 0, err
	}
	return out.DocumentID, nil
}

// SignDocument blocks until the ledger confirms the signature.
func (c *Client) SignDocument(ctx context.Context, id uint64, signatureHash string) error {
	_, err := postOrGetJSON[createResponse](ctx, c, http.MethodPost,
		fmt.Sprintf("/signele/v1/documents/%d/sign", id),
		map[string]string{"signature_hash": signatureHash})
	return err
}

// StartSession binds the server to one wallet address and returns its
// freshly resynced index.
func (c *Client) StartSession(ctx context.Context, address string) (*UserIndex, error) {
	return postOrGetJSON[UserIndex](ctx, c, http.MethodPost, "/signele/v1/session",
		map[string]string{"address": address})
}

func (c *Client) EndSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/signele/v1/session", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}

// Resync forces a full rebuild of one address's cached state from the ledger.
func (c *Client) Resync(ctx context.Context, address string) (*UserIndex, error) {
	return postOrGetJSON[UserIndex](ctx, c, http.MethodPost, "/signele/v1/resync",
		map[string]string{"address": address})
}

// UploadFile stores a document payload and returns the content hash to put
// on the ledger.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/signele/v1/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", apiError(resp)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.FileHash, nil
}

// DownloadFile streams a stored payload. The caller owns the returned body.
func (c *Client) DownloadFile(ctx context.Context, cid string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/signele/v1/files/"+cid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp.Body, nil
}

func getJSON[T any](ctx context.Context, c *Client, path string) (*T, error) {
	return postOrGetJSON[T](ctx, c, http.MethodGet, path, nil)
}

func postOrGetJSON[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func apiError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
