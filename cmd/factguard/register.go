package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/canonical"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/usecase"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <file-or-dir>...",
		Short: "Register fact records with the registry",
		Long:  "Reads fact records from JSON files (a single record or an array per file, directories are scanned for *.json) and registers each canonical hash. Already registered records are skipped, so a run can be repeated.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, rejected, err := loadRecords(args)
			if err != nil {
				return err
			}
			if len(records)+len(rejected) == 0 {
				return fmt.Errorf("no records found")
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				report := registerBatch(cmd.Context(), d.Registration(), records, rejected)
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d of %d records failed (retryable: %s)",
						len(report.Failed), report.Total(), strings.Join(report.Retryable(), ", "))
				}
				return nil
			})
		},
	}
}

// registerBatch registers the decoded records and reports the undecodable ones as failed.
func registerBatch(ctx context.Context, uc *usecase.RegistrationUsecase, records []factguard.FactRecord, rejected []domain.RegistrationItem) domain.RegistrationReport {
	report := uc.RegisterAll(ctx, records)
	if len(rejected) > 0 {
		report.Failed = append(append([]domain.RegistrationItem{}, rejected...), report.Failed...)
	}
	return report
}

// loadRecords decodes every path in order. Directory entries are read in name order.
// Unreadable paths abort the load. Records that do not decode come back as failed items.
func loadRecords(paths []string) ([]factguard.FactRecord, []domain.RegistrationItem, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}

	var records []factguard.FactRecord
	var rejected []domain.RegistrationItem
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, err
		}
		decoded, bad, err := canonical.DecodeAll(data)
		if err != nil {
			rejected = append(rejected, domain.RegistrationItem{FactID: file, Reason: fmt.Sprintf("%s: %v", file, err)})
			continue
		}
		for _, r := range bad {
			id := r.FactID
			if id == "" {
				id = fmt.Sprintf("%s[%d]", file, r.Index)
			}
			rejected = append(rejected, domain.RegistrationItem{FactID: id, Reason: fmt.Sprintf("%s: %v", file, r)})
		}
		records = append(records, decoded...)
	}
	return records, rejected, nil
}
