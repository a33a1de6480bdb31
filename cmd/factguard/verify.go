package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/client"
	"github.com/totegamma/factguard/internal/domain"
)

func newVerifyCmd() *cobra.Command {
	var hash, factID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a fact against the registry",
		Long:  "Looks a fact up by hash or by fact id and reports whether the registry holds an active entry for it. The hash wins when both are given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hash == "" && factID == "" {
				return errors.New("one of --hash or --id is required")
			}
			claim := domain.NormalizedClaim{FactID: factID}
			if hash != "" {
				h, err := factguard.ParseFactHash(hash)
				if err != nil {
					return err
				}
				claim.FactHash = h
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				return printJSON(cmd.OutOrStdout(), d.Verifier().Verify(cmd.Context(), claim))
			})
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "Canonical fact hash (0x + 64 hex)")
	cmd.Flags().StringVar(&factID, "id", "", "Publisher fact id")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "check <claim text>",
		Short: "Check a free text claim",
		Long:  "Answers a claim from the registry when the claim index resolves it to an active fact, and from the fallback analyzer otherwise.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withDeps(cmd.Context(), func(d *Deps) error {
				// a remote node has its own claim index and fallback
				if remote, ok := d.Client.(*client.Client); ok {
					result, err := remote.Check(cmd.Context(), text, channel)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				}

				result, err := d.Check().Check(cmd.Context(), text, channel)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "cli", "Channel the claim arrived on")
	return cmd
}
