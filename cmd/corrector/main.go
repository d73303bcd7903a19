// corrector fixes OCR noise in Korean cosmetic ingredient names.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ingredient-corrector/internal/config"
	"ingredient-corrector/internal/corrector"
	"ingredient-corrector/internal/embedding"
	"ingredient-corrector/internal/logging"
)

var (
	configPath string
	modelPath  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "corrector",
	Short:         "Korean OCR ingredient name corrector",
	Long:          "Maps noisy OCR tokens of cosmetic ingredient lists onto a known vocabulary using jamo embeddings and edit distance.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", "", "model artifact (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(jamoCmd)
	rootCmd.AddCommand(indexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}

// openCorrector loads the model and builds a corrector from cfg. The caller
// closes the returned model.
func openCorrector(cfg *config.Config, log logrus.FieldLogger) (*corrector.Corrector, *embedding.Model, error) {
	m, err := embedding.Load(cfg.Model.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", cfg.Model.Path, err)
	}
	c, err := corrector.New(m, log, cfg.Correction.Options()...)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"model":      cfg.Model.Path,
		"vocabulary": m.Len(),
		"dim":        m.Dim(),
		"buckets":    m.Buckets(),
	}).Info("model loaded")
	return c, m, nil
}
