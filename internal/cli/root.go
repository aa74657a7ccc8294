// Package cli implements the genomedesigner command line.
package cli

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"genomedesigner/internal/config"
)

// options carries the persistent flags and the resolved configuration.
type options struct {
	storage    string
	sqlitePath string
	blobDriver string
	mediaRoot  string
	logLevel   string
	logFormat  string

	cfg config.Config
}

// New builds the root command.
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "genomedesigner",
		Short: "Genome engineering backend",
		Long: `genomedesigner manages reference genomes, alignment groups, experiment samples,
variant sets and the dataset files that back them.

Settings come from GENOMEDESIGNER_* environment variables; flags override them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: o.loadConfig,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.storage, "storage", "", "entity store driver: memory, sqlite or postgres")
	flags.StringVar(&o.sqlitePath, "sqlite-path", "", "sqlite database file")
	flags.StringVar(&o.blobDriver, "blob-driver", "", "media store driver: fs, s3 or memory")
	flags.StringVar(&o.mediaRoot, "media-root", "", "media root directory for the fs driver")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&o.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(
		newServeCommand(o),
		newProjectCommand(o),
		newVariantSetCommand(o),
		newRenameContigsCommand(o),
		newDatasetCommand(o),
		newImportReferenceCommand(o),
	)
	return cmd
}

func (o *options) loadConfig(cmd *cobra.Command, _ []string) error {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	flags := cmd.Flags()
	override := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	override("storage", &cfg.Storage.Driver, o.storage)
	override("sqlite-path", &cfg.Storage.SQLitePath, o.sqlitePath)
	override("blob-driver", &cfg.Media.Driver, o.blobDriver)
	override("media-root", &cfg.Media.Root, o.mediaRoot)
	override("log-level", &cfg.Log.Level, o.logLevel)
	override("log-format", &cfg.Log.Format, o.logFormat)
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// withApp builds the application for one command and closes it afterwards.
func (o *options) withApp(cmd *cobra.Command, fn func(*App) error) (err error) {
	app, err := Build(cmd.Context(), o.cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.Close(cmd.Context()))
	}()
	return fn(app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
