package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/koscakluka/ema-prompter/core/segmentation"
	"github.com/spf13/cobra"
)

var flagSegmentWords bool

var segmentCmd = &cobra.Command{
	Use:   "segment [script-file]",
	Short: "Print the segments and buckets of a script",
	Long: `Split a script the same way a live session does and print the result
as YAML. The script is read from stdin when no file is given or the file is "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().BoolVar(&flagSegmentWords, "words", false, "split long sentences into word-bounded segments")
}

type segmentOutput struct {
	SentenceMode bool                   `yaml:"sentence_mode"`
	Segments     []segmentation.Segment `yaml:"segments"`
	Buckets      [][]int                `yaml:"buckets"`
}

func runSegment(cmd *cobra.Command, args []string) error {
	script, err := readScript(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	options := segmentation.New(segmentation.WithSentenceMode(!flagSegmentWords))
	segments, buckets := options.Split(script)

	data, err := yaml.Marshal(segmentOutput{
		SentenceMode: options.SentenceMode,
		Segments:     segments,
		Buckets:      buckets,
	})
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func readScript(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read script from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}
