package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ingredient-corrector/internal/corrector"
	"ingredient-corrector/pkg/options"
)

var (
	correctDetails bool
	similarityOnly bool
)

var correctCmd = &cobra.Command{
	Use:   "correct [tokens...]",
	Short: "Correct tokens given as arguments or one per line on stdin",
	RunE:  runCorrect,
}

func init() {
	correctCmd.Flags().BoolVar(&correctDetails, "details", false, "print stage, candidate and score as JSON")
	correctCmd.Flags().BoolVar(&similarityOnly, "similarity-only", false, "use the similarity-only preset")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if similarityOnly {
		o := options.Resolve(options.SimilarityOnly())
		cfg.Correction.SimilarityThreshold = o.SimilarityThreshold
		cfg.Correction.EditFallback = o.EditFallback
	}
	c, model, err := openCorrector(cfg, log)
	if err != nil {
		return err
	}
	defer model.Close()

	tokens := args
	if len(tokens) == 0 {
		if tokens, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	res, err := c.CorrectBatch(cmd.Context(), tokens)
	if err != nil {
		return err
	}
	return printCorrections(cmd.OutOrStdout(), res, correctDetails)
}

func printCorrections(w io.Writer, res []corrector.Correction, details bool) error {
	if details {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, r := range res {
		if _, err := fmt.Fprintln(w, r.Corrected); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		out = append(out, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}
