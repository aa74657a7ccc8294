package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"genomedesigner/internal/adapters/datasets"
	"genomedesigner/internal/assembly"
	"genomedesigner/internal/core"
	"genomedesigner/internal/dataset"
	"genomedesigner/internal/genome"
	"genomedesigner/internal/variantset"
)

func newServeCommand(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				o.cfg.HTTP.Addr = addr
			}
			return o.withApp(cmd, func(app *App) error {
				ln, err := net.Listen("tcp", app.Config.HTTP.Addr)
				if err != nil {
					return fmt.Errorf("listen: %w", err)
				}
				var jobs datasets.Scheduler
				if app.Config.HTTP.AsyncCompression {
					worker := datasets.NewWorker(app.Service, core.LoggerAuditRecorder{Logger: app.Logger})
					worker.Start()
					defer func() {
						ctx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
						defer cancel()
						if err := worker.Stop(ctx); err != nil {
							app.Logger.Warn("compression worker did not stop", "error", err)
						}
					}()
					jobs = worker
				}
				return Serve(cmd.Context(), ln, NewMux(app, jobs), app.Config.HTTP.ShutdownTimeout, app.Logger)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides GENOMEDESIGNER_HTTP_ADDR)")
	return cmd
}

func newProjectCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	var title string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(app *App) error {
				project, _, err := app.Service.CreateProject(cmd.Context(), core.Project{Title: title})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), project)
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "project title")
	_ = create.MarkFlagRequired("title")
	cmd.AddCommand(create)
	return cmd
}

func newVariantSetCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{Use: "variant-set", Short: "Manage variant set membership"}
	var setID string
	for _, action := range []variantset.Action{variantset.ActionAdd, variantset.ActionRemove} {
		sub := &cobra.Command{
			Use:   string(action) + " <variant uid>...",
			Short: fmt.Sprintf("%s variants to or from a set", action),
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withApp(cmd, func(app *App) error {
					out, err := app.Service.AddOrRemoveVariantsFromSet(cmd.Context(), variantset.Request{
						VariantIDs: args,
						Action:     action,
						SetID:      setID,
					})
					if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
						return perr
					}
					if err == nil && out.Level == variantset.LevelError {
						err = errors.New(out.Message)
					}
					return err
				})
			},
		}
		sub.Flags().StringVar(&setID, "set", "", "variant set uid")
		_ = sub.MarkFlagRequired("set")
		cmd.AddCommand(sub)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the variants in a set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(app *App) error {
				ids, err := app.Service.VariantSetMembers(cmd.Context(), setID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"variant_uids": ids})
			})
		},
	}
	list.Flags().StringVar(&setID, "set", "", "variant set uid")
	_ = list.MarkFlagRequired("set")

	var genomeID, label string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty variant set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(app *App) error {
				set, _, err := app.Service.CreateVariantSet(cmd.Context(), core.VariantSet{ReferenceGenomeID: genomeID, Label: label})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), set)
			})
		},
	}
	create.Flags().StringVar(&genomeID, "genome", "", "reference genome uid")
	create.Flags().StringVar(&label, "label", "", "set label")
	_ = create.MarkFlagRequired("genome")
	_ = create.MarkFlagRequired("label")

	cmd.AddCommand(list, create)
	return cmd
}

func newRenameContigsCommand(o *options) *cobra.Command {
	var groupID string
	var opts assembly.Options
	cmd := &cobra.Command{
		Use:   "rename-contigs",
		Short: "Copy each sample's velvet contigs to a file named after the sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(app *App) error {
				plan, err := assembly.RenameContigs(cmd.Context(), app.Service, app.Blobs, groupID, opts)
				for _, r := range plan {
					app.Logger.Info("contigs", "from", r.From, "to", r.To, "contigs", r.Contigs, "missing", r.Missing, "copied", r.Copied)
				}
				if perr := printJSON(cmd.OutOrStdout(), plan); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "alignment-group", "", "alignment group uid")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report the plan without copying")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "parallel copies")
	_ = cmd.MarkFlagRequired("alignment-group")
	return cmd
}

func newDatasetCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{Use: "dataset", Short: "Inspect and maintain dataset files"}

	var suffix string
	compress := &cobra.Command{
		Use:   "compress <dataset uid>",
		Short: "Write a gzip copy of a dataset and record it alongside the original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *App) error {
				ds, err := app.Service.CompressDataset(cmd.Context(), args[0], suffix)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ds)
			})
		},
	}
	compress.Flags().StringVar(&suffix, "suffix", ".gz", "compressed file suffix")

	show := &cobra.Command{
		Use:   "show <dataset uid>",
		Short: "Show a dataset, its owners and its shell argument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				ds, err := app.Service.Dataset(ctx, args[0])
				if err != nil {
					return err
				}
				owners, err := app.Service.DatasetOwners(ctx, args[0])
				if err != nil {
					return err
				}
				arg, err := app.Service.DatasetShellArg(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"dataset": ds, "owners": owners, "shell_arg": arg})
			})
		},
	}

	cleanPath := &cobra.Command{
		Use:   "clean-path <path>",
		Short: "Strip everything up to the media root from a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, err := dataset.CleanFilesystemLocation(args[0], o.cfg.Media.Root)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), clean)
			return err
		},
	}

	cmd.AddCommand(compress, show, cleanPath)
	return cmd
}

func newImportReferenceCommand(o *options) *cobra.Command {
	var projectID, label, format string
	cmd := &cobra.Command{
		Use:   "import-reference <fasta file | ->",
		Short: "Import a reference genome from FASTA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return o.withApp(cmd, func(app *App) error {
				start := time.Now()
				g, err := genome.Import(cmd.Context(), app.Service, app.Blobs, projectID, label, genome.Format(format), r)
				if err != nil {
					return err
				}
				app.Logger.Info("reference imported", "genome", g.ID, "chromosomes", g.NumChromosomes, "bases", g.NumBases, "took", time.Since(start))
				return printJSON(cmd.OutOrStdout(), g)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project uid")
	cmd.Flags().StringVar(&label, "label", "", "reference genome label")
	cmd.Flags().StringVar(&format, "format", string(genome.FormatFASTA), "input format: fasta or genbank")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}
