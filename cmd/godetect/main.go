package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/argus-vision/go-detect/cmd/godetect/commands"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "godetect",
		Short: "godetect - YOLO-family detection decode and box rendering",
		Long: `godetect runs images through an ONNX detection model, decodes the
selected candidates and writes annotated copies.

Point it at a model artifact (local path, https:// or s3://):
  godetect run --image street.jpg --model yolov3-10.onnx --output out.png

Or configure once and reuse:
  export GODETECT_MODEL_URL=s3://models/yolov3-10.onnx
  godetect run --image street.jpg`,
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level")

	rootCmd.AddCommand(commands.NewRunCmd())
	rootCmd.AddCommand(commands.NewFetchCmd())
	rootCmd.AddCommand(commands.NewLabelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
