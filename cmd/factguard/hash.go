package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/totegamma/factguard/internal/canonical"
)

type hashLine struct {
	FactID    string `json:"fact_id"`
	FactHash  string `json:"fact_hash"`
	Canonical string `json:"canonical,omitempty"`
}

func newHashCmd() *cobra.Command {
	var expect string
	var showCanonical bool
	cmd := &cobra.Command{
		Use:   "hash <file-or-dir>...",
		Short: "Compute canonical hashes without touching the registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, rejected, err := loadRecords(args)
			if err != nil {
				return err
			}
			if len(rejected) > 0 {
				return fmt.Errorf("%d records could not be decoded: %s", len(rejected), rejected[0].Reason)
			}

			if expect != "" {
				if len(records) != 1 {
					return fmt.Errorf("--expect needs exactly one record, got %d", len(records))
				}
				ok, err := canonical.Matches(records[0], expect)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("hash mismatch for %s", records[0].FactID)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}

			lines := make([]hashLine, 0, len(records))
			for _, record := range records {
				hash, data, err := canonical.HashRecord(record)
				if err != nil {
					return fmt.Errorf("%s: %w", record.FactID, err)
				}
				line := hashLine{FactID: record.FactID, FactHash: hash.Hex()}
				if showCanonical {
					line.Canonical = string(data)
				}
				lines = append(lines, line)
			}
			return printJSON(cmd.OutOrStdout(), lines)
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "Fail unless the record hashes to this value")
	cmd.Flags().BoolVar(&showCanonical, "canonical", false, "Include the canonical serialization")
	return cmd
}
