package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/biomarker-engine/internal/application/reference"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/storage/minio"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// ImportLockName is the Redis lock serializing specification imports.
const ImportLockName = "spec-import"

// NewSpecCmd creates the spec command group.
func NewSpecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Inspect, import and publish the biomarker specification",
	}
	cmd.AddCommand(newSpecStatsCmd(), newSpecImportCmd(), newSpecPushCmd())
	return cmd
}

func newSpecStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the configured specification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			rt, err := NewRuntime(ctx, cliCtx.Config, cliCtx.Logger, RequireSpecification(), WithoutStores())
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.Service.SpecificationStats(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, statsOutput{stats})
		},
	}
}

type statsOutput struct {
	*biomarker.SpecificationStats
}

func (o statsOutput) TableHeaders() []string {
	return []string{"VERSION", "UPDATED", "BIOMARKERS", "SYNONYMS", "CATEGORIES"}
}

func (o statsOutput) TableRows() [][]string {
	return [][]string{{
		o.Version, o.UpdatedAt,
		strconv.Itoa(o.TotalBiomarkers), strconv.Itoa(o.TotalSynonyms), strconv.Itoa(o.TotalCategories),
	}}
}

func (o statsOutput) String() string {
	return fmt.Sprintf("version %s (updated %s): %d biomarkers, %d synonyms, %d categories\n  %s",
		o.Version, o.UpdatedAt, o.TotalBiomarkers, o.TotalSynonyms, o.TotalCategories,
		strings.Join(o.Categories, ", "))
}

type specImportOptions struct {
	file string
}

func newSpecImportCmd() *cobra.Command {
	opts := &specImportOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the override tables with a specification",
		Long:  "Import writes categories, overrides and variations from --file, or from the\nconfigured reference source, into PostgreSQL and clears the shared cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.Database.Enabled() {
				return errors.New(errors.ErrCodeInvalidConfig, "spec import needs database.host")
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			rt, err := NewRuntime(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			var src reference.Source = rt.Source
			if opts.file != "" {
				src = reference.FileSource{Path: opts.file}
			}
			spec, err := src.Load(ctx)
			if err != nil {
				return err
			}

			importerOpts := []reference.ImporterOption{reference.WithOnImported(rt.Service.ClearCache)}
			if rt.Redis != nil {
				importerOpts = append(importerOpts, reference.WithLock(rt.Redis.NewMutex(ImportLockName)))
			}
			if rt.SharedCache != nil {
				importerOpts = append(importerOpts, reference.WithCacheInvalidator(rt.SharedCache))
			}
			writer := repositories.NewSpecImporter(rt.DB, cliCtx.Logger, repositories.WithMetrics(rt.Metrics))
			summary, err := reference.NewImporter(writer, cliCtx.Logger, importerOpts...).Import(ctx, spec)
			if err != nil {
				return err
			}
			cliCtx.Logger.Debug("import source", logging.String("source", src.Describe()))
			return PrintResult(cmd, importOutput{summary})
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "specification file (default: the configured reference source)")
	return cmd
}

type importOutput struct {
	*repositories.ImportSummary
}

func (o importOutput) String() string {
	return fmt.Sprintf("imported version %s: %d categories, %d overrides, %d variations",
		o.Version, o.Categories, o.Overrides, o.Variations)
}

type specPushOptions struct {
	file string
	key  string
}

func newSpecPushCmd() *cobra.Command {
	opts := &specPushOptions{}
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload a specification file to the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			key := opts.key
			if key == "" {
				key = cliCtx.Config.Reference.Object
			}
			if key == "" {
				return errors.InvalidParam("object key is required").WithDetail("set --key or reference.object")
			}

			data, err := os.ReadFile(opts.file)
			if err != nil {
				return errors.Wrapf(err, errors.ErrCodeBadRequest, "read %s", opts.file)
			}
			if _, err := reference.Decode(data); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			client, err := minio.NewClient(ctx, cliCtx.Config.MinIO, cliCtx.Logger)
			if err != nil {
				return err
			}
			if err := client.EnsureBucket(ctx); err != nil {
				return err
			}
			info, err := client.Put(ctx, key, data, "application/json")
			if err != nil {
				return err
			}
			return PrintResult(cmd, pushOutput{Bucket: client.Bucket(), Key: info.Key, ETag: info.ETag, Size: info.Size})
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "specification file to upload (required)")
	cmd.Flags().StringVar(&opts.key, "key", "", "object key (default: reference.object)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type pushOutput struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	ETag   string `json:"etag"`
	Size   int64  `json:"size"`
}

func (o pushOutput) String() string {
	return fmt.Sprintf("uploaded %s/%s (%d bytes, etag %s)", o.Bucket, o.Key, o.Size, o.ETag)
}
