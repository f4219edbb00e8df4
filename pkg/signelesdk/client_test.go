package signelesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/signele/v1/documents/4", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_x",
			"document": map[string]any{
				"document_id": 4,
				"title":       "Lease",
				"file_hash":   "QmLease",
				"signers":     []string{"0x00000000000000000000000000000000000000a1"},
				"creator":     "0x00000000000000000000000000000000000000b2",
				"completed":   true,
			},
		})
	}))
	defer srv.Close()

	doc, err := New(srv.URL).Document(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), doc.DocumentID)
	assert.Equal(t, "Lease", doc.Title)
	assert.True(t, doc.Completed)
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(422)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_x",
			"error":      map[string]any{"code": "LEDGER_REVERT", "message": "Already signed"},
		})
	}))
	defer srv.Close()

	err := New(srv.URL).SignDocument(context.Background(), 0, "0xabcd")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.Equal(t, "LEDGER_REVERT", apiErr.Code)
	assert.Equal(t, "Already signed", apiErr.Message)
}

func TestCreateDocumentSendsBody(t *testing.T) {
	var got CreateDocumentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(201)
		_ = json.NewEncoder(w).Encode(map[string]any{"document_id": 7, "status": "confirmed"})
	}))
	defer srv.Close()

	id, err := New(srv.URL).CreateDocument(context.Background(), CreateDocumentRequest{
		Title:    "Deal",
		FileHash: "QmDeal",
		Signers:  []string{"0x00000000000000000000000000000000000000a1"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, "Deal", got.Title)
	assert.Len(t, got.Signers, 1)
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "lease.pdf", hdr.Filename)
		w.WriteHeader(201)
		_ = json.NewEncoder(w).Encode(map[string]any{"file_hash": "QmUploaded"})
	}))
	defer srv.Close()

	cid, err := New(srv.URL).UploadFile(context.Background(), "lease.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "QmUploaded", cid)
}

func TestSessionLifecycle(t *testing.T) {
	var deleted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(201)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"address": "0x00000000000000000000000000000000000000a1",
				"created": []uint64{0, 2},
				"pending": []uint64{1},
			})
		case http.MethodDelete:
			deleted = true
			w.WriteHeader(204)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	idx, err := c.StartSession(context.Background(), "0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2}, idx.Created)
	assert.Equal(t, []uint64{1}, idx.Pending)

	require.NoError(t, c.EndSession(context.Background()))
	assert.True(t, deleted)
}
