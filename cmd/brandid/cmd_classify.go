package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/FrenchMajesty/brand-identifier/pkg/submission"
	"github.com/spf13/cobra"
)

// classifyOutput is the --json rendering of one outcome
type classifyOutput struct {
	SubmissionID string `json:"submission_id"`
	Text         string `json:"text"`
	Label        string `json:"label"`
	Error        string `json:"error,omitempty"`
	LatencyMS    int64  `json:"latency_ms"`
}

func newClassifyCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify [description...]",
		Short: "Identify the brand of one product description",
		Long: `Sends one description to the brand API and prints the brand.
Arguments are joined with spaces. Delay hints are printed to stderr while
the request is pending.

Example:
  brandid classify Dove Promises, Sea Salt And Caramel Dark Chocolate Candy`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runClassify(cmd, strings.Join(args, " "), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full outcome as JSON")
	return cmd
}

func (a *app) runClassify(cmd *cobra.Command, text string, asJSON bool) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	controller, err := a.newController()
	if err != nil {
		return err
	}
	defer controller.Close()

	hints := &hintPrinter{w: cmd.ErrOrStderr()}
	unsubscribe := controller.Subscribe(hints)

	controller.SetInput(text)
	out, err := controller.Submit(ctx)
	unsubscribe()

	if out == nil {
		return err
	}

	if asJSON {
		if jerr := writeJSON(cmd.OutOrStdout(), text, out); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Result.Label)
	return nil
}

func writeJSON(w io.Writer, text string, out *submission.Outcome) error {
	res := classifyOutput{
		SubmissionID: out.SubmissionID.String(),
		Text:         text,
		LatencyMS:    out.Latency.Milliseconds(),
	}
	if out.Result != nil {
		res.Label = out.Result.Label
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// hintPrinter writes each delay hint once, dropping snapshots that arrive out of order
type hintPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	lastSeq uint64
	last    submission.DelayHint
}

func (h *hintPrinter) OnChange(s submission.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.Seq <= h.lastSeq {
		return
	}
	h.lastSeq = s.Seq

	if s.Hint != submission.HintNone && s.Hint != h.last {
		fmt.Fprintln(h.w, s.Hint.Message())
	}
	h.last = s.Hint
}
