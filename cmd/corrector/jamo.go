package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ingredient-corrector/internal/jamo"
)

var jamoCmd = &cobra.Command{
	Use:   "jamo",
	Short: "Convert between Hangul text and the fixed-width jamo encoding",
}

var jamoEncodeCmd = &cobra.Command{
	Use:   "encode [text...]",
	Short: "Encode text, one result per argument or stdin line",
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachInput(cmd, args, func(s string) (string, error) {
			return jamo.Encode(s), nil
		})
	},
}

var jamoDecodeCmd = &cobra.Command{
	Use:   "decode [encoded...]",
	Short: "Decode jamo strings, one result per argument or stdin line",
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachInput(cmd, args, jamo.Decode)
	},
}

func init() {
	jamoCmd.AddCommand(jamoEncodeCmd)
	jamoCmd.AddCommand(jamoDecodeCmd)
}

func eachInput(cmd *cobra.Command, args []string, fn func(string) (string, error)) error {
	inputs := args
	if len(inputs) == 0 {
		var err error
		if inputs, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	for _, in := range inputs {
		out, err := fn(in)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}
