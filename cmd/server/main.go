package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dayo-Adewuyi/Signe-le/internal/blob"
	"github.com/Dayo-Adewuyi/Signe-le/internal/checkpoint"
	"github.com/Dayo-Adewuyi/Signe-le/internal/feed"
	"github.com/Dayo-Adewuyi/Signe-le/internal/ingest"
	"github.com/Dayo-Adewuyi/Signe-le/internal/ledger"
	"github.com/Dayo-Adewuyi/Signe-le/internal/readmodel"
	"github.com/Dayo-Adewuyi/Signe-le/internal/recon"
	"github.com/Dayo-Adewuyi/Signe-le/internal/writer"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/db"

	"github.com/sirupsen/logrus"
)

// The deployed Signele contract on Base Sepolia.
const defaultContractAddress = "0x336172f27e937e4810D1b4611D0d98E885f87095"

func main() {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		log.SetLevel(lvl)
	}

	rpcURL := strings.TrimSpace(os.Getenv("RPC_URL"))
	if rpcURL == "" {
		log.Fatal("RPC_URL is required")
	}
	contractAddr := strings.TrimSpace(os.Getenv("CONTRACT_ADDRESS"))
	if contractAddr == "" {
		contractAddr = defaultContractAddress
	}
	port := strings.TrimSpace(os.Getenv("SERVICE_PORT"))
	if port == "" {
		port = "8090"
	}
	bridgeURL := strings.TrimSpace(os.Getenv("WALLET_BRIDGE_URL"))
	if bridgeURL == "" {
		bridgeURL = "http://localhost:8091/wallet"
	}
	pollSeconds := envIntDefault("POLL_INTERVAL_SECONDS", 15)

	ctx := context.Background()

	client := ledger.NewClient(rpcURL, contractAddr)
	reader := ledger.NewReader(client)
	store := readmodel.New(log)
	reconciler := recon.New(reader, store, log)

	hub := feed.NewHub(log)
	go hub.Run(ctx)

	ingestOpts := []ingest.Option{
		ingest.WithPublisher(hub),
		ingest.WithInterval(time.Duration(pollSeconds) * time.Second),
	}
	pool, err := db.Connect(ctx)
	if err != nil {
		log.WithError(err).Fatal("database connect failed")
	}
	if pool != nil {
		cursors := checkpoint.NewPostgres(pool)
		if err := cursors.Init(ctx); err != nil {
			log.WithError(err).Fatal("cursor table init failed")
		}
		ingestOpts = append(ingestOpts, ingest.WithCursorStore(cursors))
		log.Info("ingest cursors persisted to postgres")
	}
	ingestor := ingest.New(client, reader, store, reconciler, log, ingestOpts...)

	bridge := ledger.NewWalletBridge(bridgeURL)
	writes := writer.New(bridge, reader, store, reconciler, contractAddr, log,
		writer.WithStatusFunc(func(st writer.TxStatus) {
			msg := map[string]any{"kind": "tx_status", "op": st.Op, "state": string(st.State), "tx_hash": st.TxHash}
			if st.Err != nil {
				msg["error"] = st.Err.Error()
			}
			hub.Publish(msg)
		}))

	files, err := buildBlobStore(ctx)
	if err != nil {
		log.WithError(err).Fatal("blob store init failed")
	}

	a := &api{
		store:  store,
		reader: reader,
		writes: writes,
		recon:  reconciler,
		ingest: ingestor,
		files:  files,
		hub:    hub,
		log:    log,
	}

	log.WithFields(logrus.Fields{
		"port":     port,
		"contract": contractAddr,
	}).Info("signele server listening")
	if err := http.ListenAndServe(":"+port, newRouter(a)); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// buildBlobStore picks the file backend: a MinIO bucket when MINIO_ENDPOINT
// is configured, the public IPFS pinning gateway otherwise.
func buildBlobStore(ctx context.Context) (blob.Store, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	if endpoint != "" {
		bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
		if bucket == "" {
			bucket = "signele-docs"
		}
		secure := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_SECURE")), "true")
		return blob.NewMinioStore(ctx, endpoint,
			strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY")),
			strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY")),
			bucket, secure)
	}
	return blob.NewGateway(strings.TrimSpace(os.Getenv("LIGHTHOUSE_API_KEY"))), nil
}

func envIntDefault(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
