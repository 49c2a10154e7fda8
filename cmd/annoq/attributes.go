package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/USCbiostats/annoq-api-v2/internal/config"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
)

type attributeRow struct {
	APIName     string `json:"api_label"`
	StorageName string `json:"storage_label"`
	Label       string `json:"display_label"`
	Type        string `json:"data_type"`
	Searchable  bool   `json:"searchable"`
	Version     string `json:"version,omitempty"`
}

func newAttributesCmd(global *globalOptions) *cobra.Command {
	var (
		asJSON         bool
		searchableOnly bool
	)
	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "List the attribute registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			rows := make([]attributeRow, 0, reg.Len())
			for _, d := range reg.Descriptors() {
				if searchableOnly && !d.Searchable() {
					continue
				}
				rows = append(rows, attributeRow{
					APIName:     d.ExternalName(),
					StorageName: d.StorageName(),
					Label:       d.DisplayLabel(),
					Type:        string(d.Type()),
					Searchable:  d.Searchable(),
					Version:     d.Version(),
				})
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "API NAME\tSTORAGE NAME\tTYPE\tSEARCHABLE\tVERSION")
			for _, r := range rows {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.APIName, r.StorageName, r.Type, r.Searchable, r.Version)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&searchableOnly, "searchable", false, "only keyword-searchable attributes")
	return cmd
}

// loadRegistry reads the attribute tree without touching any backend.
func loadRegistry(cfg config.Config) (*attribute.Registry, error) {
	return attribute.LoadFile(cfg.Attributes.Path, nil)
}
