package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ingredient-corrector/internal/embedding"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect model artifacts",
}

var buildFlags struct {
	vectors, ngrams, vocab, out string
	minn, maxn                  int
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a model artifact from .vec text, n-gram buckets and a vocabulary list",
	RunE:  runIndexBuild,
}

var indexInspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "Print artifact metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexInspect,
}

func init() {
	f := indexBuildCmd.Flags()
	f.StringVar(&buildFlags.vectors, "vectors", "", "word vectors in .vec text format (jamo-encoded keys)")
	f.StringVar(&buildFlags.ngrams, "ngrams", "", "n-gram bucket vectors, one per line")
	f.StringVar(&buildFlags.vocab, "vocab", "", "ingredient names, one per line")
	f.IntVar(&buildFlags.minn, "minn", 1, "shortest n-gram in runes")
	f.IntVar(&buildFlags.maxn, "maxn", 4, "longest n-gram in runes")
	f.StringVarP(&buildFlags.out, "out", "o", "models/ingredients.jvec", "artifact path")

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInspectCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	if buildFlags.vectors == "" && buildFlags.vocab == "" {
		return errors.New("need --vectors or --vocab")
	}
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	open := func(path string) (io.Reader, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		closers = append(closers, f)
		return f, nil
	}

	src := embedding.Sources{MinN: buildFlags.minn, MaxN: buildFlags.maxn}
	var err error
	if src.Vectors, err = open(buildFlags.vectors); err != nil {
		return err
	}
	if src.Ngrams, err = open(buildFlags.ngrams); err != nil {
		return err
	}
	if src.Vocabulary, err = open(buildFlags.vocab); err != nil {
		return err
	}

	a, err := embedding.Build(src)
	if err != nil {
		return err
	}
	if err := embedding.WriteFile(buildFlags.out, a); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d keys, dim %d, %d buckets\n",
		buildFlags.out, len(a.Keys), a.Dim, len(a.Ngrams))
	return nil
}

func runIndexInspect(cmd *cobra.Command, args []string) error {
	m, err := embedding.Load(args[0])
	if err != nil {
		return err
	}
	defer m.Close()
	minn, maxn := m.NgramRange()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "keys:        %d\n", m.Len())
	fmt.Fprintf(w, "dim:         %d\n", m.Dim())
	fmt.Fprintf(w, "buckets:     %d\n", m.Buckets())
	fmt.Fprintf(w, "ngrams:      %d..%d\n", minn, maxn)
	fmt.Fprintf(w, "fingerprint: %016x\n", m.Fingerprint())
	return nil
}
