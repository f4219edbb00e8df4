package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/ethabi"
)

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad rpc request: %v", err)
		}
		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_BlockNumber(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		if method != "eth_blockNumber" {
			t.Fatalf("unexpected method %s", method)
		}
		return "0x1a4", nil
	})
	defer srv.Close()

	c := NewClient(srv.URL, "0xc0ffee")
	n, err := c.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if n != 420 {
		t.Fatalf("block = %d, want 420", n)
	}
}

func TestClient_Call_SendsContractAddress(t *testing.T) {
	const contract = "0x336172f27e937e4810d1b4611d0d98e885f87095"
	srv := rpcServer(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		if method != "eth_call" {
			t.Fatalf("unexpected method %s", method)
		}
		var msg struct {
			To   string `json:"to"`
			Data string `json:"data"`
		}
		if err := json.Unmarshal(params[0], &msg); err != nil {
			t.Fatalf("bad call params: %v", err)
		}
		if msg.To != contract {
			t.Fatalf("to = %s", msg.To)
		}
		return "0x000000000000000000000000000000000000000000000000000000000000002a", nil
	})
	defer srv.Close()

	c := NewClient(srv.URL, contract)
	out, err := c.Call(context.Background(), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 32 || out[31] != 0x2a {
		t.Fatalf("unexpected result bytes: %x", out)
	}
}

func TestClient_Call_RPCErrorIsFetchError(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "execution reverted"}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "0xc0ffee")
	_, err := c.Call(context.Background(), []byte{0x01})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestClient_Logs_ParsesEntries(t *testing.T) {
	topic := ethabi.EventTopic(ethabi.DocumentSigned)
	srv := rpcServer(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		if method != "eth_getLogs" {
			t.Fatalf("unexpected method %s", method)
		}
		var filter struct {
			Topics    []string `json:"topics"`
			FromBlock string   `json:"fromBlock"`
			ToBlock   string   `json:"toBlock"`
		}
		if err := json.Unmarshal(params[0], &filter); err != nil {
			t.Fatalf("bad filter: %v", err)
		}
		if len(filter.Topics) != 1 || filter.Topics[0] != topic {
			t.Fatalf("unexpected topics %v", filter.Topics)
		}
		if filter.FromBlock != "0xa" || filter.ToBlock != "0x14" {
			t.Fatalf("unexpected range %s..%s", filter.FromBlock, filter.ToBlock)
		}
		return []map[string]any{{
			"blockNumber":     "0xb",
			"transactionHash": "0xt1",
			"logIndex":        "0x0",
			"topics":          []string{topic, ethabi.IDTopic(3)},
			"data":            "0x",
		}}, nil
	})
	defer srv.Close()

	c := NewClient(srv.URL, "0xc0ffee")
	logs, err := c.Logs(context.Background(), topic, 10, 20)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].BlockNumber != 11 || logs[0].LogIndex != 0 || logs[0].TxHash != "0xt1" {
		t.Fatalf("unexpected log: %+v", logs[0])
	}
}

// One client instance serves both the poll loop and request handlers, so
// request-ID allocation must be safe under the race detector.
func TestClient_ConcurrentBlockNumber(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		if method != "eth_blockNumber" {
			return nil, &rpcError{Code: -32601, Message: "unexpected method"}
		}
		return "0x10", nil
	})
	defer srv.Close()

	c := NewClient(srv.URL, "0xc0ffee")
	const goroutines = 8
	const callsEach = 50
	errs := make(chan error, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < callsEach; i++ {
				n, err := c.BlockNumber(context.Background())
				if err != nil {
					errs <- err
					return
				}
				if n != 16 {
					errs <- errors.New("unexpected block number")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		t.Fatalf("concurrent BlockNumber: %v", err)
	}
}

func TestClient_RetriesTransportFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "0x1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "0xc0ffee", WithRetry(RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	n, err := c.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber after retry: %v", err)
	}
	if n != 1 || calls != 2 {
		t.Fatalf("n=%d calls=%d", n, calls)
	}
}
