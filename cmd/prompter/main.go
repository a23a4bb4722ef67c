// prompter follows a speaker through a script and prompts them with the
// current segment when they stall.
//
// Usage:
//
//	prompter run speech.txt            # Follow along with the default backend
//	prompter run speech.txt --words    # Highlight word-level segments
//	prompter segment speech.txt        # Print segments and buckets
//	prompter settings get              # Show backend settings
//	prompter settings set vad_long_ms=2000
//	prompter settings schema           # Print the settings JSON schema
//
// Configuration is read from ~/.ema/prompter/config.yaml
package main

import (
	"os"

	"github.com/koscakluka/ema-prompter/cmd/prompter/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
