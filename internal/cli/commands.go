package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Fetch every submission and run a full sync pass",
		Long: `Fetch every submission from the configured form and apply all of them.

Entities already stored are updated in place; the pass commits as a whole
or not at all.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(rootOpts, cmd, func(ctx context.Context, f *OutputFormatter, svc *core.Service) error {
				result, err := svc.FullSync(ctx)
				if err != nil {
					return err
				}
				return f.Success(result)
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run an incremental sync pass",
		Long: `Fetch submissions and apply only those submitted after the newest
stored survey. With an empty store every submission is applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(rootOpts, cmd, func(ctx context.Context, f *OutputFormatter, svc *core.Service) error {
				result, err := svc.IncrementalSync(ctx)
				if err != nil {
					return err
				}
				return f.Success(result)
			})
		},
	}
}

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	File string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a data-quality check and record the issues found",
		Long: `Validate submissions and append every issue found to the audit log.

Without --file the submissions are fetched from the configured form. With
--file the raw records are read from a JSON array or a {"results": [...]}
page; use "-" for stdin.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []record.Record
			if opts.File != "" {
				var err error
				if recs, err = readRecords(cmd, opts.File); err != nil {
					return commandError(rootOpts, cmd, err)
				}
			}
			return withService(rootOpts, cmd, func(ctx context.Context, f *OutputFormatter, svc *core.Service) error {
				f.VerboseLog("checking %d supplied record(s)", len(recs))
				result, err := svc.CheckQuality(ctx, recs)
				if err != nil {
					return err
				}
				return f.Success(result)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "raw records to check instead of fetching (- for stdin)")

	return cmd
}

// IssuesOptions holds flags for the issues command.
type IssuesOptions struct {
	EntityType string
	IssueType  string
	EntityID   string
	Limit      int
	Offset     int
	Export     string
}

// NewIssuesCommand creates the issues command.
func NewIssuesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IssuesOptions{}

	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List recorded data-quality issues, newest first",
		Long: `List recorded data-quality issues, newest first.

With --export the matching issues are written to an XLSX workbook instead;
--limit and --offset are ignored for exports.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.IssueFilter{
				EntityType: opts.EntityType,
				IssueType:  opts.IssueType,
				EntityID:   opts.EntityID,
				Limit:      opts.Limit,
				Offset:     opts.Offset,
			}
			return withService(rootOpts, cmd, func(ctx context.Context, f *OutputFormatter, svc *core.Service) error {
				if opts.Export != "" {
					n, err := exportIssues(ctx, svc, filter, opts.Export)
					if err != nil {
						return err
					}
					return f.Success(ExportResult{Path: opts.Export, Issues: n})
				}

				page, err := svc.ListIssues(ctx, filter)
				if err != nil {
					return err
				}
				return f.Success(page)
			})
		},
	}

	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "only issues for this entity (survey, location, client, surveyor, response)")
	cmd.Flags().StringVar(&opts.IssueType, "issue-type", "", "only issues of this type, e.g. invalid_age")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "only issues for this entity id")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultIssueLimit, "page size")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().StringVarP(&opts.Export, "export", "o", "", "write matching issues to this .xlsx file")

	return cmd
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "summary",
		Short:         "Summarize recorded data-quality issues by type and entity",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(rootOpts, cmd, func(ctx context.Context, f *OutputFormatter, svc *core.Service) error {
				summary, err := svc.IssueSummary(ctx)
				if err != nil {
					return err
				}
				return f.Success(summary)
			})
		},
	}
}

// withService opens the application, runs fn with a CLI-triggered context
// and renders any failure as a mapped user message.
func withService(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *OutputFormatter, *core.Service) error) error {
	f := newFormatter(opts, cmd)

	a, err := opts.Open(cmd.Context(), opts)
	if err != nil {
		return commandError(opts, cmd, err)
	}
	defer a.Close()

	ctx := core.ContextWithTrigger(cmd.Context(), core.TriggerCLI)
	if err := fn(ctx, f, a.Service); err != nil {
		msg := core.MapError(err)
		f.Error(msg)
		return WrapExitError(ExitFailure, msg.Message, err)
	}
	return nil
}

// commandError reports a failure that happened before any pass started.
func commandError(opts *RootOptions, cmd *cobra.Command, err error) error {
	newFormatter(opts, cmd).Error(core.UserMessage{
		Message: err.Error(),
		Action:  "Check the command flags and environment configuration",
		Code:    "CMD001",
	})
	return WrapExitError(ExitCommandError, "command failed", err)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func readRecords(cmd *cobra.Command, path string) ([]record.Record, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open records: %w", err)
		}
		defer file.Close()
		r = file
	}

	recs, err := record.DecodeBatch(r)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []record.Record{}
	}
	return recs, nil
}

func exportIssues(ctx context.Context, svc *core.Service, filter store.IssueFilter, path string) (n int, err error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close export: %w", cerr)
		}
	}()
	return svc.ExportIssues(ctx, filter, file)
}
