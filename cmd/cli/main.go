package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/budgetbook/budgetbook/internal/config"
	"github.com/budgetbook/budgetbook/internal/csvimport"
	"github.com/budgetbook/budgetbook/internal/gcsuploader"
	infraBQ "github.com/budgetbook/budgetbook/internal/infra/bigquery"
	"github.com/budgetbook/budgetbook/internal/logger"
	"github.com/budgetbook/budgetbook/internal/notionsync"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "budgetbook",
	Short: "Budgetbook command-line interface",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print a sample import CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			fmt.Print(csvimport.SampleCSV)
			return nil
		}
		if err := os.WriteFile(out, []byte(csvimport.SampleCSV), 0o644); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
		fmt.Printf("Wrote sample CSV to %s\n", out)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <csv_file>",
	Short: "Import a CSV file of transactions in one shot",
	Long: `Import parses the file, auto-detects the column mapping, validates every
row and commits the valid ones. Rows that fail validation are skipped and
reported; there is no interactive correction step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		noHeader, _ := cmd.Flags().GetBool("no-header")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		ctx = logger.WithContext(ctx, log)

		repo, err := infraBQ.NewRepository(ctx)
		if err != nil {
			return fmt.Errorf("creating BigQuery repository: %w", err)
		}
		defer repo.Close()

		committer := csvimport.NewCommitter(repo, log, cfg.Import.UserID)

		state := &csvimport.State{
			RawCSV:    string(data),
			HasHeader: !noHeader,
		}
		pipeline := csvimport.NewPipeline(
			csvimport.ParseStep{},
			csvimport.CreateSessionStep{Loader: repo},
			csvimport.ValidateStep{},
			csvimport.CommitStep{Committer: committer},
		)

		if err := pipeline.Run(ctx, state); err != nil {
			return err
		}

		if state.Session != nil && state.Session.Warning != "" {
			fmt.Println("Warning:", state.Session.Warning)
		}
		fmt.Println(state.Result.Summary)
		for _, rowErr := range state.Result.Errors {
			fmt.Printf("  row %d: %s\n", rowErr.RowIndex, rowErr.Message)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <csv_file>",
	Short: "Upload a CSV file to Cloud Storage for a later import session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket is required for uploads")
		}
		if ext := strings.ToLower(filepath.Ext(args[0])); ext != ".csv" && ext != ".txt" {
			return fmt.Errorf("only .csv and .txt files can be uploaded, got %q", filepath.Base(args[0]))
		}

		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", args[0], err)
		}
		if info.Size() > cfg.Import.MaxUploadBytes {
			return fmt.Errorf("%s exceeds the %d byte upload limit", args[0], cfg.Import.MaxUploadBytes)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		ctx = logger.WithContext(ctx, log)

		gcs, err := gcsuploader.NewService(ctx, cfg.GCS.Bucket)
		if err != nil {
			return fmt.Errorf("creating GCS uploader: %w", err)
		}

		gcsURI, err := gcs.Upload(ctx, filepath.Base(args[0]), file)
		if err != nil {
			return fmt.Errorf("uploading: %w", err)
		}

		repo, err := infraBQ.NewRepository(ctx)
		if err != nil {
			return fmt.Errorf("creating BigQuery repository: %w", err)
		}
		defer repo.Close()

		uploadID, err := repo.RecordUpload(ctx, &infraBQ.UploadRow{
			UserID:      cfg.Import.UserID,
			Filename:    filepath.Base(args[0]),
			GCSURI:      gcsURI,
			SizeBytes:   info.Size(),
			ContentType: "text/csv",
		})
		if err != nil {
			return fmt.Errorf("recording upload: %w", err)
		}

		fmt.Printf("Uploaded %s\n  upload_id: %s\n  gcs_uri:   %s\n", args[0], uploadID, gcsURI)
		return nil
	},
}

var exportNotionCmd = &cobra.Command{
	Use:   "export-notion",
	Short: "Mirror a date range of transactions into a Notion database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.NotionEnabled() {
			return fmt.Errorf("notion.token and notion.database_id are required")
		}

		startStr, _ := cmd.Flags().GetString("start-date")
		endStr, _ := cmd.Flags().GetString("end-date")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		startDate, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return fmt.Errorf("invalid --start-date %q, expected YYYY-MM-DD", startStr)
		}
		endDate, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return fmt.Errorf("invalid --end-date %q, expected YYYY-MM-DD", endStr)
		}
		if endDate.Before(startDate) {
			return fmt.Errorf("--end-date must not be before --start-date")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		ctx = logger.WithContext(ctx, log)

		repo, err := infraBQ.NewRepository(ctx)
		if err != nil {
			return fmt.Errorf("creating BigQuery repository: %w", err)
		}
		defer repo.Close()

		notionClient := notionsync.NewNotionClient(cfg.Notion.Token)

		return notionsync.SyncTransactions(ctx, repo, notionClient, cfg.Notion.DatabaseID, startDate, endDate, dryRun)
	},
}

// loadConfig reads the config file, sets up the logger and points the
// BigQuery helpers at the configured project.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	if cfg.BigQuery.ProjectID == "" {
		return nil, log, fmt.Errorf("bigquery.project_id is required (or set BUDGETBOOK_BIGQUERY_PROJECT_ID)")
	}
	infraBQ.Configure(cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	return cfg, log, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "Path to the YAML config file")

	sampleCmd.Flags().StringP("output", "o", "", "Write the sample to a file instead of stdout")
	importCmd.Flags().Bool("no-header", false, "Treat the first row as data, not column headers")
	exportNotionCmd.Flags().String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	exportNotionCmd.Flags().String("end-date", "", "End date in YYYY-MM-DD format (required)")
	exportNotionCmd.Flags().Bool("dry-run", false, "Preview changes without touching Notion")
	_ = exportNotionCmd.MarkFlagRequired("start-date")
	_ = exportNotionCmd.MarkFlagRequired("end-date")

	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(exportNotionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
