package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/frahmantamala/church-cms/internal/audit"
	auditPostgres "github.com/frahmantamala/church-cms/internal/audit/postgres"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/pkg/logger"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Activity log tools",
}

var (
	exportDays   int
	exportFormat string
	exportOut    string
)

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the activity log report to a file",
	Long:  `Render the activity logs of the last --days days as CSV or XLSX, the same report served by the export endpoint.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		svc := audit.NewService(auditPostgres.NewAuditRepository(db, retry.NewPolicy(cfg.Persistence, lg)), cfg.Audit, lg)
		file, err := svc.Export(context.Background(), exportDays, exportFormat)
		if err != nil {
			log.Fatalf("export failed: %v", err)
		}

		out := exportOut
		if out == "" {
			out = file.Filename
		} else if info, err := os.Stat(out); err == nil && info.IsDir() {
			out = filepath.Join(out, file.Filename)
		}
		if err := os.WriteFile(out, file.Body, 0o644); err != nil {
			log.Fatalf("failed to write %s: %v", out, err)
		}
		fmt.Printf("Wrote %d entries to %s\n", file.Rows, out)
	},
}

func init() {
	auditExportCmd.Flags().IntVar(&exportDays, "days", 0, "number of days to include (default from audit.default_export_days)")
	auditExportCmd.Flags().StringVar(&exportFormat, "format", audit.FormatCSV, "csv or xlsx")
	auditExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file or directory")

	auditCmd.AddCommand(auditExportCmd)
}
