package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/signelesdk"

	"github.com/spf13/cobra"
)

func NewDocCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Read documents from the synchronized cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all cached documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := signelesdk.New(opts.Server).Documents(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), docs)
			}
			for _, d := range docs {
				status := "pending"
				if d.Completed {
					status = "completed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d signer(s)\n", d.DocumentID, d.Title, status, len(d.Signers))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			doc, err := signelesdk.New(opts.Server).Document(cmd.Context(), id)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id:        %d\n", doc.DocumentID)
			fmt.Fprintf(w, "title:     %s\n", doc.Title)
			fmt.Fprintf(w, "file:      %s\n", doc.FileHash)
			fmt.Fprintf(w, "creator:   %s\n", doc.Creator)
			fmt.Fprintf(w, "completed: %v\n", doc.Completed)
			for _, s := range doc.Signers {
				fmt.Fprintf(w, "signer:    %s\n", s)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sigs <id>",
		Short: "List a document's signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			sigs, err := signelesdk.New(opts.Server).Signatures(cmd.Context(), id)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), sigs)
			}
			for _, s := range sigs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.Signer, s.SignatureHash, s.Timestamp)
			}
			return nil
		},
	})

	return cmd
}

func NewUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Per-address views",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "index <address>",
		Short: "Show an address's created and pending document IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := signelesdk.New(opts.Server).UserIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), idx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created: %v\npending: %v\n", idx.Created, idx.Pending)
			return nil
		},
	})

	return cmd
}

func NewCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		title       string
		description string
		fileHash    string
		signers     []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a document and wait for ledger confirmation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := signelesdk.New(opts.Server).CreateDocument(cmd.Context(), signelesdk.CreateDocumentRequest{
				Title:       title,
				Description: description,
				FileHash:    fileHash,
				Signers:     signers,
			})
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"document_id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed: document %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&description, "description", "", "document description")
	cmd.Flags().StringVar(&fileHash, "file-hash", "", "content hash of the uploaded file")
	cmd.Flags().StringArrayVar(&signers, "signer", nil, "authorized signer address (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("file-hash")
	_ = cmd.MarkFlagRequired("signer")
	return cmd
}

func NewSignCommand(opts *RootOptions) *cobra.Command {
	var signatureHash string
	cmd := &cobra.Command{
		Use:   "sign <id>",
		Short: "Sign a document and wait for ledger confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			if err := signelesdk.New(opts.Server).SignDocument(cmd.Context(), id, signatureHash); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"document_id": id, "status": "confirmed"})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed: signature on document %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&signatureHash, "signature-hash", "", "hash of the signature artifact")
	_ = cmd.MarkFlagRequired("signature-hash")
	return cmd
}

func NewResyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync <address>",
		Short: "Rebuild the cached state for an address from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := signelesdk.New(opts.Server).Resync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), idx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resynced %s\ncreated: %v\npending: %v\n", args[0], idx.Created, idx.Pending)
			return nil
		},
	}
}

func NewUploadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file and print its content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			cid, err := signelesdk.New(opts.Server).UploadFile(cmd.Context(), f.Name(), f)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"file_hash": cid})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cid)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
