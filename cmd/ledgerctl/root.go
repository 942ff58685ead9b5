package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/domain/models"
	"github.com/mamadbah2/prodledger/internal/repository/csvstore"
	"github.com/mamadbah2/prodledger/internal/service/ledger"
	"github.com/mamadbah2/prodledger/internal/service/reporting"
	"github.com/mamadbah2/prodledger/pkg/logger"
)

// app carries the state shared by every subcommand.
type app struct {
	file    string
	verbose bool
	logger  *zap.Logger
	ledger  *ledger.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and edit the production ledger",
		Long: `ledgerctl works directly on the ledger CSV file used by the server.

Available subcommands:
  append  - Record one shift's production for a machine
  list    - Print the ledger, or its last records
  metrics - Print efficiency, totals and alerts
  export  - Write the ledger to another file
  import  - Replace the ledger with a CSV file`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	defaultFile := os.Getenv("LEDGER_CSV_PATH")
	if defaultFile == "" {
		defaultFile = csvstore.DefaultPath
	}
	rootCmd.PersistentFlags().StringVarP(&a.file, "file", "f", defaultFile, "Ledger CSV file (or set LEDGER_CSV_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		newAppendCmd(a),
		newListCmd(a),
		newMetricsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return rootCmd
}

func (a *app) open() error {
	log, err := logger.NewConsole(a.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = log

	store := csvstore.NewFileStore(a.file, logger.Named(log, "repo.csv"))
	a.ledger = ledger.NewService(store, logger.Named(log, "svc.ledger"))
	return nil
}

// load reads the ledger file. Subcommands that replace the ledger skip it, so
// a malformed file can still be overwritten by import.
func (a *app) load(ctx context.Context) error {
	err := a.ledger.Load(ctx)
	var formatErr *models.FormatError
	if errors.As(err, &formatErr) {
		return fmt.Errorf("%w (replace it with: ledgerctl --file %s import <csv-file>)", err, a.file)
	}
	return err
}

func newAppendCmd(a *app) *cobra.Command {
	var (
		req   models.AppendRecordRequest
		limit int
	)

	cmd := &cobra.Command{
		Use:     "append",
		Short:   "Record one shift's production for a machine",
		Example: `  ledgerctl append --date 2024-01-01 --machine "Prensa 2" --shift Manhã --total 100 --defective 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := req.ToRecord()
			if err != nil {
				return fmt.Errorf("warning: %w", err)
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}

			if _, err := a.ledger.Append(cmd.Context(), record); err != nil {
				if ledger.IsUserError(err) {
					return fmt.Errorf("warning: %w", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Record appended. Ledger now has %d records.\n", a.ledger.Len())
			return printRecords(out, a.ledger.Recent(limit))
		},
	}

	cmd.Flags().StringVar(&req.Date, "date", "", "Production date")
	cmd.Flags().StringVar(&req.Machine, "machine", "", "Machine identifier")
	cmd.Flags().StringVar(&req.Shift, "shift", "", "Shift (Manhã, Tarde, Noite)")
	cmd.Flags().IntVar(&req.TotalPieces, "total", 0, "Total pieces produced")
	cmd.Flags().IntVar(&req.DefectivePieces, "defective", 0, "Defective pieces")
	cmd.Flags().IntVar(&limit, "recent", ledger.DefaultRecentLimit, "How many recent records to print")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the ledger, or its last records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			records := a.ledger.Recent(limit)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No records.")
				return nil
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only print the last n records (0 prints all)")
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print efficiency, totals and alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			metrics, err := reporting.ComputeMetrics(a.ledger.Records())
			if errors.Is(err, models.ErrNoData) {
				if asJSON {
					return json.NewEncoder(out).Encode(map[string]string{"status": "no_data"})
				}
				fmt.Fprintln(out, "No data available.")
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(metrics)
			}
			fmt.Fprintln(out, reporting.FormatSummary(metrics))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print metrics as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [filename]",
		Short: "Write the ledger to another file",
		Long:  "Write the ledger to filename, or rewrite the ledger file itself when no filename is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filename string
			if len(args) == 1 {
				filename = args[0]
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}

			path, err := a.ledger.Export(cmd.Context(), filename)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", a.ledger.Len(), path)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Replace the ledger with a CSV file",
		Long:  "Replace the ledger with a CSV file. The current ledger file is not read, so a malformed one can be replaced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			n, err := a.ledger.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records from %s\n", n, args[0])
			return nil
		},
	}
}

func printRecords(w io.Writer, records []models.ProductionRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tMACHINE\tSHIFT\tTOTAL\tDEFECTIVE\tEFFICIENCY")
	for _, r := range records {
		eff := "n/a"
		if value, ok := r.Efficiency(); ok {
			eff = fmt.Sprintf("%.2f%%", value*100)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.Date, r.Machine, r.Shift.Label(), r.TotalPieces, r.DefectivePieces, eff)
	}
	return tw.Flush()
}
