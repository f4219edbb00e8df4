package main

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/Dayo-Adewuyi/Signe-le/internal/blob"
	"github.com/Dayo-Adewuyi/Signe-le/internal/feed"
	"github.com/Dayo-Adewuyi/Signe-le/internal/ingest"
	"github.com/Dayo-Adewuyi/Signe-le/internal/ledger"
	"github.com/Dayo-Adewuyi/Signe-le/internal/readmodel"
	"github.com/Dayo-Adewuyi/Signe-le/internal/recon"
	"github.com/Dayo-Adewuyi/Signe-le/internal/writer"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/ethabi"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 32 << 20

type api struct {
	store  *readmodel.Store
	reader ledger.ContractReader
	writes *writer.Coordinator
	recon  *recon.Reconciler
	ingest *ingest.Ingestor
	files  blob.Store
	hub    *feed.Hub
	log    *logrus.Logger

	mu      sync.Mutex
	session *ingest.Subscription
	address domain.Address
}

func newRouter(a *api) *chi.Mux {
	r := chi.NewRouter()
	r.Use(httpx.RequestID)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/signele/v1", func(v1 chi.Router) {
		v1.Get("/documents", a.listDocuments)
		v1.Post("/documents", a.createDocument)
		v1.Get("/documents/{id}", a.getDocument)
		v1.Get("/documents/{id}/signatures", a.getSignatures)
		v1.Post("/documents/{id}/sign", a.signDocument)
		v1.Get("/users/{address}/index", a.getUserIndex)
		v1.Post("/session", a.startSession)
		v1.Delete("/session", a.endSession)
		v1.Post("/resync", a.resync)
		v1.Post("/files", a.uploadFile)
		v1.Get("/files/{cid}", a.downloadFile)
		if a.hub != nil {
			v1.Get("/ws", a.hub.ServeWS)
		}
	})
	return r
}

func (a *api) listDocuments(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"documents":  a.store.Documents(),
	})
}

func (a *api) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}
	doc, found := a.store.Document(id)
	if !found {
		// Cache miss: the document may exist on the ledger but predate this
		// process. A targeted read fills the gap.
		fresh, err := a.reader.Document(r.Context(), id)
		if err != nil {
			if isRevert(err) {
				httpx.WriteError(w, 404, "NOT_FOUND", "document not found", nil)
				return
			}
			writeLedgerError(w, err)
			return
		}
		a.store.UpsertDocument(fresh)
		doc = fresh
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"document":   doc,
	})
}

func (a *api) getSignatures(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}
	if _, found := a.store.Document(id); !found {
		// Same cache-miss fallback as getDocument: the document and its
		// signatures may exist on the ledger but predate this process.
		doc, err := a.reader.Document(r.Context(), id)
		if err != nil {
			if isRevert(err) {
				httpx.WriteError(w, 404, "NOT_FOUND", "document not found", nil)
				return
			}
			writeLedgerError(w, err)
			return
		}
		a.store.UpsertDocument(doc)
		fresh, err := a.reader.DocumentSignatures(r.Context(), id)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		a.store.ReplaceSignatures(id, fresh)
	}
	sigs := a.store.Signatures(id)
	if sigs == nil {
		sigs = []domain.Signature{}
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"signatures": sigs,
	})
}

func (a *api) createDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		FileHash    string   `json:"file_hash"`
		Signers     []string `json:"signers"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.FileHash) == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "title and file_hash are required", nil)
		return
	}
	signers := make([]domain.Address, 0, len(req.Signers))
	for _, s := range req.Signers {
		if !isHexAddress(s) {
			httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid signer address: "+s, nil)
			return
		}
		signers = append(signers, domain.Address(s))
	}
	id, err := a.writes.CreateDocument(r.Context(), strings.TrimSpace(req.Title), req.Description, req.FileHash, signers)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id":  httpx.NewRequestID(),
		"document_id": id,
		"status":      "confirmed",
	})
}

func (a *api) signDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}
	var req struct {
		SignatureHash string `json:"signature_hash"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.SignatureHash) == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "signature_hash is required", nil)
		return
	}
	if err := a.writes.SignDocument(r.Context(), id, req.SignatureHash); err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id":  httpx.NewRequestID(),
		"document_id": id,
		"status":      "confirmed",
	})
}

func (a *api) getUserIndex(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	idx := a.store.UserIndex(addr)
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"address":    addr.Normalized(),
		"created":    idx.CreatedDocumentIDs,
		"pending":    idx.PendingDocumentIDs,
	})
}

// startSession binds the service to one wallet address: a full resync
// followed by continuous event polling. A new session replaces the previous
// one.
func (a *api) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if !isHexAddress(req.Address) {
		httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid wallet address", nil)
		return
	}
	addr := domain.Address(req.Address)

	if err := a.recon.ResyncUser(r.Context(), addr); err != nil {
		writeLedgerError(w, err)
		return
	}

	a.mu.Lock()
	if a.session != nil {
		a.session.Stop()
	}
	// The subscription must outlive this request.
	a.session = a.ingest.Subscribe(context.Background(), addr)
	a.address = addr
	a.mu.Unlock()

	idx := a.store.UserIndex(addr)
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id": httpx.NewRequestID(),
		"address":    addr.Normalized(),
		"created":    idx.CreatedDocumentIDs,
		"pending":    idx.PendingDocumentIDs,
	})
}

func (a *api) endSession(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	if a.session != nil {
		a.session.Stop()
		a.session = nil
		a.address = ""
	}
	a.mu.Unlock()
	w.WriteHeader(204)
}

func (a *api) resync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if !isHexAddress(req.Address) {
		httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid wallet address", nil)
		return
	}
	addr := domain.Address(req.Address)
	if err := a.recon.ResyncUser(r.Context(), addr); err != nil {
		writeLedgerError(w, err)
		return
	}
	idx := a.store.UserIndex(addr)
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.NewRequestID(),
		"address":    addr.Normalized(),
		"created":    idx.CreatedDocumentIDs,
		"pending":    idx.PendingDocumentIDs,
	})
}

func (a *api) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.WriteError(w, 400, "BAD_UPLOAD", err.Error(), nil)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, 400, "BAD_UPLOAD", "multipart field 'file' is required", nil)
		return
	}
	defer f.Close()
	cid, err := a.files.Upload(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), f, hdr.Size)
	if err != nil {
		a.log.WithError(err).Warn("file upload failed")
		httpx.WriteError(w, 502, "STORAGE_ERROR", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id": httpx.NewRequestID(),
		"file_hash":  cid,
	})
}

func (a *api) downloadFile(w http.ResponseWriter, r *http.Request) {
	cid := strings.TrimSpace(chi.URLParam(r, "cid"))
	if cid == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "cid is required", nil)
		return
	}
	obj, err := a.files.Download(r.Context(), cid)
	if err != nil {
		httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
		return
	}
	defer obj.Body.Close()
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.WriteHeader(200)
	_, _ = io.Copy(w, obj.Body)
}

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses.
// Contract revert reasons pass through verbatim so the UI can show the
// ledger's own words.
func writeLedgerError(w http.ResponseWriter, err error) {
	var rr *ledger.RemoteRejection
	if errors.As(err, &rr) {
		httpx.WriteError(w, 422, "LEDGER_REVERT", rr.Reason, nil)
		return
	}
	var se *ledger.SubmissionError
	if errors.As(err, &se) {
		httpx.WriteError(w, 502, "SUBMISSION_FAILED", se.Reason, nil)
		return
	}
	if errors.Is(err, ledger.ErrNoActiveAddress) {
		httpx.WriteError(w, 409, "NO_ACTIVE_WALLET", "no active wallet address", nil)
		return
	}
	var fe *ledger.FetchError
	if errors.As(err, &fe) {
		httpx.WriteError(w, 502, "LEDGER_UNAVAILABLE", fe.Error(), nil)
		return
	}
	var ee *ethabi.EncodingError
	var de *ethabi.DecodingError
	if errors.As(err, &ee) || errors.As(err, &de) {
		httpx.WriteError(w, 500, "CODEC_ERROR", err.Error(), nil)
		return
	}
	httpx.WriteError(w, 500, "INTERNAL", err.Error(), nil)
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "revert")
}

func parseDocumentID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid document id: "+raw, nil)
		return 0, false
	}
	return id, true
}

func parseAddress(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	raw := chi.URLParam(r, "address")
	if !isHexAddress(raw) {
		httpx.WriteError(w, 400, "BAD_ADDRESS", "invalid wallet address: "+raw, nil)
		return "", false
	}
	return domain.Address(raw), true
}

func isHexAddress(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}
