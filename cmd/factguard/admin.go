package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <fact-hash> <superseded|withdrawn>",
		Short: "Move an active fact to a terminal status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := factguard.ParseFactHash(args[0])
			if err != nil {
				return err
			}
			status, err := factguard.ParseStatus(args[1])
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				receipt, err := d.Client.UpdateStatus(cmd.Context(), hash, status)
				if err != nil {
					return err
				}
				if d.Registry == nil {
					// the local registry already publishes into the projection
					event := domain.Event{
						Type:          domain.EventFactStatusChanged,
						EmittedAt:     time.Now().UTC(),
						StatusChanged: &domain.FactStatusChanged{FactHash: hash, Status: status},
					}
					if err := d.Projector.Publish(cmd.Context(), event); err != nil {
						slog.Warn("projection status update failed", slog.String("error", err.Error()), slog.String("module", "main"))
					}
				}
				return printJSON(cmd.OutOrStdout(), receipt)
			})
		},
	}
}

func newWriterCmd() *cobra.Command {
	var transfer string
	cmd := &cobra.Command{
		Use:   "writer",
		Short: "Show the registry writer, or hand the role to another identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				if transfer == "" {
					stats, err := d.Client.Stats(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), stats)
				}

				next, err := factguard.ParseIdentity(transfer)
				if err != nil {
					return domain.NewError(domain.CodeInvalidIdentity, "%v", err)
				}
				receipt, err := d.Client.TransferWriter(cmd.Context(), next)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), receipt)
			})
		},
	}
	cmd.Flags().StringVar(&transfer, "transfer", "", "Identity to transfer the writer role to")
	return cmd
}
