package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/biomarker-engine/internal/application/validation"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// SourceCLI labels validations run from bioctl in metrics.
const SourceCLI = "cli"

// ErrNeedsReview is returned by validate --strict when any entry was
// rejected.
var ErrNeedsReview = errors.New(errors.ErrCodeValidation, "submission requires review")

type validateOptions struct {
	file   string
	strict bool
}

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an extracted exam payload",
		Long:  "Validate reads a payload (English or Portuguese keys) from --file, or stdin\nwhen --file is \"-\", and prints the normalized result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "payload file, - for stdin")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any entry is rejected")
	return cmd
}

func runValidate(cmd *cobra.Command, opts *validateOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	payload, err := readPayload(cmd, opts.file)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	rt, err := NewRuntime(ctx, cliCtx.Config, cliCtx.Logger, RequireSpecification())
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Service.Validate(ctx, &validation.ValidateInput{Payload: payload, Source: SourceCLI})
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("payload validated",
		logging.Int("processed", result.Stats.Processed),
		logging.Int("rejected", result.Stats.Rejected))

	if err := PrintResult(cmd, validationOutput{result}); err != nil {
		return err
	}
	if opts.strict && !result.Success {
		return ErrNeedsReview
	}
	return nil
}

func readPayload(cmd *cobra.Command, file string) (biomarker.Payload, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return biomarker.Payload{}, errors.Wrap(err, errors.ErrCodeBadRequest, "read payload")
	}

	var payload biomarker.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return biomarker.Payload{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode payload")
	}
	return payload, nil
}

// validationOutput renders a ValidationResult.
type validationOutput struct {
	*biomarker.ValidationResult
}

func (o validationOutput) TableHeaders() []string {
	return []string{"ORIGINAL", "NORMALIZED", "CATEGORY", "MATCH", "CONFIDENCE", "REASON"}
}

func (o validationOutput) TableRows() [][]string {
	rows := make([][]string, 0, len(o.ProcessedBiomarkers)+len(o.RejectedBiomarkers))
	for _, m := range o.ProcessedBiomarkers {
		rows = append(rows, []string{
			m.OriginalName, m.NormalizedName, m.Category, string(m.MatchType),
			strconv.FormatFloat(m.Confidence, 'f', 2, 64), "",
		})
	}
	for _, r := range o.RejectedBiomarkers {
		rows = append(rows, []string{r.OriginalName, "", "", "rejected", "", r.Reason})
	}
	return rows
}

func (o validationOutput) String() string {
	var sb strings.Builder
	s := o.Stats
	fmt.Fprintf(&sb, "success=%t total=%d processed=%d rejected=%d (exact=%d synonym=%d fuzzy=%d)\n",
		o.Success, s.Total, s.Processed, s.Rejected, s.ExactMatches, s.SynonymMatches, s.FuzzyMatches)
	for _, m := range o.ProcessedBiomarkers {
		fmt.Fprintf(&sb, "  ok      %s -> %s [%s, %s %.2f]\n",
			m.OriginalName, m.NormalizedName, m.Category, m.MatchType, m.Confidence)
	}
	for _, r := range o.RejectedBiomarkers {
		line := fmt.Sprintf("  reject  %s: %s", r.OriginalName, r.Reason)
		if len(r.Suggestions) > 0 {
			line += " (did you mean: " + strings.Join(r.Suggestions, ", ") + ")"
		}
		sb.WriteString(line + "\n")
	}
	for _, d := range o.Duplicates {
		fmt.Fprintf(&sb, "  dup     %s: %s, %d values\n", d.BiomarkerName, d.ConflictType, len(d.Values))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Resolve biomarker names to their standard form",
		Args:  cobra.MinimumNArgs(1),
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

			results, err := rt.Service.ResolveBatch(ctx, args)
			if err != nil {
				return err
			}
			return PrintResult(cmd, resolutionOutput{Names: args, Results: results})
		},
	}
}

// resolutionOutput renders ResolveBatch results next to their inputs.
type resolutionOutput struct {
	Names   []string                `json:"-"`
	Results []normalizer.Resolution `json:"results"`
}

func (o resolutionOutput) TableHeaders() []string {
	return []string{"NAME", "RESULT", "MATCH", "CONFIDENCE", "SUGGESTIONS"}
}

func (o resolutionOutput) TableRows() [][]string {
	rows := make([][]string, 0, len(o.Results))
	for i, r := range o.Results {
		if r.Match != nil {
			rows = append(rows, []string{o.Names[i], r.Match.NormalizedName, string(r.Match.MatchType),
				strconv.FormatFloat(r.Match.Confidence, 'f', 2, 64), ""})
			continue
		}
		rows = append(rows, []string{o.Names[i], r.Rejection.Reason, "", "",
			strings.Join(r.Rejection.Suggestions, ", ")})
	}
	return rows
}

func (o resolutionOutput) String() string {
	lines := make([]string, 0, len(o.Results))
	for i, r := range o.Results {
		if r.Match != nil {
			lines = append(lines, fmt.Sprintf("%s -> %s (%s %.2f)", o.Names[i], r.Match.NormalizedName, r.Match.MatchType, r.Match.Confidence))
			continue
		}
		line := fmt.Sprintf("%s: %s", o.Names[i], r.Rejection.Reason)
		if len(r.Rejection.Suggestions) > 0 {
			line += " (did you mean: " + strings.Join(r.Rejection.Suggestions, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

type categoryOptions struct {
	fallback string
	list     bool
}

// NewCategoryCmd creates the category command.
func NewCategoryCmd() *cobra.Command {
	opts := &categoryOptions{}
	cmd := &cobra.Command{
		Use:   "category [NAME]",
		Short: "Classify a biomarker name, or list the category keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.list || len(args) == 0 {
				return PrintResult(cmd, categoryList(normalizer.SimplifiedCategories))
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			rt, err := NewRuntime(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			res := rt.Service.GetCategoryWithSource(ctx, args[0], opts.fallback)
			return PrintResult(cmd, categoryOutput{
				Name:           args[0],
				CategoryResult: res,
				DisplayName:    normalizer.CategoryDisplayNames[res.Category],
			})
		},
	}
	cmd.Flags().StringVar(&opts.fallback, "fallback", "", "category reported by the extractor")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list the category keys")
	return cmd
}

type categoryOutput struct {
	Name string `json:"name"`
	normalizer.CategoryResult
	DisplayName string `json:"display_name,omitempty"`
}

func (o categoryOutput) String() string {
	return fmt.Sprintf("%s: %s (%s)", o.Name, o.Category, o.Source)
}

type categoryList []string

func (l categoryList) TableHeaders() []string { return []string{"ORDER", "KEY", "DISPLAY NAME"} }

func (l categoryList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, key := range l {
		rows = append(rows, []string{strconv.Itoa(normalizer.CategoryOrder(key)), key, normalizer.CategoryDisplayNames[key]})
	}
	return rows
}

func (l categoryList) String() string {
	lines := make([]string, 0, len(l))
	for _, key := range l {
		lines = append(lines, fmt.Sprintf("%-26s %s", key, normalizer.CategoryDisplayNames[key]))
	}
	return strings.Join(lines, "\n")
}
