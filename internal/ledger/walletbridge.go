package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
)

// WalletBridge implements TxSigner against a wallet-provider sidecar. The
// sidecar holds the key material and the user session; this process never
// sees a private key.
type WalletBridge struct {
	BaseURL string
	HTTP    *http.Client
}

func NewWalletBridge(baseURL string) *WalletBridge {
	return &WalletBridge{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{}}
}

type bridgeReceipt struct {
	TxHash       string      `json:"tx_hash"`
	BlockNumber  uint64      `json:"block_number"`
	Status       uint64      `json:"status"`
	RevertReason string      `json:"revert_reason"`
	Logs         []bridgeLog `json:"logs"`
}

type bridgeLog struct {
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint64   `json:"log_index"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
}

func (w *WalletBridge) ActiveAddress(ctx context.Context) (domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.BaseURL+"/address", nil)
	if err != nil {
		return "", &SubmissionError{Reason: "wallet bridge unreachable", Err: err}
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return "", &SubmissionError{Reason: "wallet bridge unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoActiveAddress
	}
	if resp.StatusCode >= 300 {
		return "", &SubmissionError{Reason: fmt.Sprintf("wallet bridge returned %d", resp.StatusCode)}
	}
	var out struct {
		Address string `json:"address"`
		Active  bool   `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SubmissionError{Reason: "wallet bridge response malformed", Err: err}
	}
	if !out.Active || out.Address == "" {
		return "", ErrNoActiveAddress
	}
	return domain.Address(out.Address).Normalized(), nil
}

func (w *WalletBridge) SignAndSend(ctx context.Context, call CallMsg) (TxHandle, error) {
	body, _ := json.Marshal(map[string]string{
		"to":   call.To,
		"data": "0x" + hex.EncodeToString(call.Data),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return TxHandle{}, &SubmissionError{Reason: "wallet bridge unreachable", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return TxHandle{}, &SubmissionError{Reason: "wallet bridge unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var out struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		if out.Reason == "" {
			out.Reason = fmt.Sprintf("wallet bridge returned %d", resp.StatusCode)
		}
		return TxHandle{}, &SubmissionError{Reason: out.Reason}
	}
	var out struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TxHandle{}, &SubmissionError{Reason: "wallet bridge response malformed", Err: err}
	}
	return TxHandle{Hash: out.TxHash}, nil
}

// AwaitConfirmation blocks until the bridge reports the transaction mined.
// A reverted transaction comes back as *RemoteRejection carrying the
// contract's reason string.
func (w *WalletBridge) AwaitConfirmation(ctx context.Context, h TxHandle) (*Receipt, error) {
	u := w.BaseURL + "/transactions/" + url.PathEscape(h.Hash) + "/wait"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, &FetchError{Op: "await confirmation", Err: err}
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "await confirmation", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &FetchError{Op: "await confirmation", Err: fmt.Errorf("wallet bridge returned %d", resp.StatusCode)}
	}
	var out bridgeReceipt
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &FetchError{Op: "await confirmation", Err: err}
	}
	if out.Status != 1 {
		reason := out.RevertReason
		if reason == "" {
			reason = "transaction reverted"
		}
		return nil, &RemoteRejection{Reason: reason}
	}
	rec := &Receipt{TxHash: out.TxHash, BlockNumber: out.BlockNumber, Status: out.Status}
	for _, bl := range out.Logs {
		data, err := decodeHex(bl.Data)
		if err != nil {
			return nil, &FetchError{Op: "await confirmation", Err: fmt.Errorf("receipt log data: %w", err)}
		}
		rec.Logs = append(rec.Logs, Log{
			BlockNumber: bl.BlockNumber,
			TxHash:      bl.TxHash,
			LogIndex:    bl.LogIndex,
			Topics:      bl.Topics,
			Data:        data,
		})
	}
	return rec, nil
}
