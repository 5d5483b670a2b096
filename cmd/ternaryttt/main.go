// Command ternaryttt is the CLI front end for the ternary-weight /
// test-time-training inference core: load a weight file, run generation
// against it, and surface the typed error taxonomy as process exit codes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet"
	bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/logging"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ternaryttt",
		Short: "Run inference against a ternary-weight, test-time-training model",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML file with default flag values")
	root.AddCommand(newLoadCommand(), newGenerateCommand(), newResetCommand())

	if err := root.Execute(); err != nil {
		logging.Errorf("%v", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if code := bitneterrors.ExitCode(err); code != 0 {
		return code
	}
	return 1
}

func newLoadCommand() *cobra.Command {
	var path string
	var acceleratorCapacityBytes int64
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Open a weight file and report its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(configPath)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.ModelPath
			}
			if path == "" {
				return bitneterrors.ErrBadPath
			}
			if acceleratorCapacityBytes == 0 {
				acceleratorCapacityBytes = cfg.AcceleratorCapacityBytes
			}

			h, err := bitnet.Load(path, bitnet.LoadOptions{AcceleratorCapacityBytes: acceleratorCapacityBytes})
			if err != nil {
				return err
			}
			defer h.Free()

			fmt.Printf("loaded %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "path to a .bitt weight file")
	cmd.Flags().Int64Var(&acceleratorCapacityBytes, "accelerator-capacity-bytes", 0, "usable accelerator memory budget for layer auto-placement; 0 keeps every layer on host")
	return cmd
}

func newGenerateCommand() *cobra.Command {
	var path, prompt string
	var maxNew, topK int
	var temperature, topP float32
	var seed int64
	var acceleratorCapacityBytes int64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate text continuing a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(configPath)
			if err != nil {
				return err
			}
			path = firstNonEmpty(path, cfg.ModelPath)
			prompt = firstNonEmpty(prompt, cfg.Prompt)
			flags := cmd.Flags()
			if !flags.Changed("max-new-tokens") && cfg.MaxNewTokens != 0 {
				maxNew = cfg.MaxNewTokens
			}
			if !flags.Changed("temperature") && cfg.Temperature != 0 {
				temperature = cfg.Temperature
			}
			if !flags.Changed("top-k") && cfg.TopK != 0 {
				topK = cfg.TopK
			}
			if !flags.Changed("top-p") && cfg.TopP != 0 {
				topP = cfg.TopP
			}
			if !flags.Changed("seed") && cfg.Seed != 0 {
				seed = cfg.Seed
			}
			if path == "" {
				return bitneterrors.ErrBadPath
			}
			if acceleratorCapacityBytes == 0 {
				acceleratorCapacityBytes = cfg.AcceleratorCapacityBytes
			}

			h, err := bitnet.Load(path, bitnet.LoadOptions{AcceleratorCapacityBytes: acceleratorCapacityBytes})
			if err != nil {
				return err
			}
			defer h.Free()

			seq := bitnet.NewSequence(h)
			defer seq.Free()

			promptIDs, err := encodePrompt(h, prompt)
			if err != nil {
				return err
			}

			var out strings.Builder
			result, err := seq.Generate(promptIDs, maxNew, bitnet.SamplingConfig{
				Temperature: temperature, TopK: topK, TopP: topP, Seed: seed,
			}, nil, func(id int) bool {
				out.WriteString(fmt.Sprintf("%d ", id))
				return true
			})
			if err != nil {
				return err
			}

			fmt.Println(strings.TrimSpace(out.String()))
			if result.Cancelled {
				logging.Infof("generation stopped early by callback")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "path to a .bitt weight file")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text")
	cmd.Flags().IntVar(&maxNew, "max-new-tokens", 32, "maximum tokens to generate")
	cmd.Flags().Float32Var(&temperature, "temperature", 1.0, "sampling temperature; 0 means greedy")
	cmd.Flags().IntVar(&topK, "top-k", 0, "top-k filter; 0 disables it")
	cmd.Flags().Float32Var(&topP, "top-p", 1.0, "nucleus filter threshold")
	cmd.Flags().Int64Var(&seed, "seed", 0, "sampling RNG seed")
	cmd.Flags().Int64Var(&acceleratorCapacityBytes, "accelerator-capacity-bytes", 0, "usable accelerator memory budget for layer auto-placement; 0 keeps every layer on host")
	return cmd
}

func newResetCommand() *cobra.Command {
	var path string
	var acceleratorCapacityBytes int64
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Load a model and reset a fresh sequence's TTT state to zero",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(configPath)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.ModelPath
			}
			if path == "" {
				return bitneterrors.ErrBadPath
			}
			if acceleratorCapacityBytes == 0 {
				acceleratorCapacityBytes = cfg.AcceleratorCapacityBytes
			}

			h, err := bitnet.Load(path, bitnet.LoadOptions{AcceleratorCapacityBytes: acceleratorCapacityBytes})
			if err != nil {
				return err
			}
			defer h.Free()

			seq := bitnet.NewSequence(h)
			defer seq.Free()
			seq.Reset()

			fmt.Printf("reset sequence state for %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "path to a .bitt weight file")
	cmd.Flags().Int64Var(&acceleratorCapacityBytes, "accelerator-capacity-bytes", 0, "usable accelerator memory budget for layer auto-placement; 0 keeps every layer on host")
	return cmd
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func encodePrompt(h *bitnet.ModelHandle, prompt string) ([]int, error) {
	ids, err := h.Tokenizer().Encode(prompt)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
