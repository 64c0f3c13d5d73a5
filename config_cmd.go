package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# VOICEVOX engine
engine:
  url: "http://127.0.0.1:50021"
  timeout: "30s"
  # 0 disables rate limiting
  requests_per_minute: 0

# default voice
voice:
  # VOICEVOX style id, see "seitai speakers"
  speaker: "1"
  # 0.5 to 2.0
  speed: 1.0

# audio cache for repeated utterances such as code blocks and links
cache:
  # share one synthesis between concurrent requests for the same audio
  coalesce: false
  # e.g. "64MB", empty for unbounded
  max_size: ""
  # zstd level, 1 to 22
  compression_level: 3
  # synthesize cached utterances at startup
  warmup: false
  # WAV files stored at startup instead of synthesizing
  # seed:
  #   - text: "CODE"
  #     file: "~/.local/share/seitai/code.wav"

# NATS responder for "seitai serve"
nats:
  url: "nats://127.0.0.1:4222"
  subject: "seitai.speak"
  queue: "seitai"
  concurrency: 8
  timeout: "30s"

# message handling
message:
  # truncate utterances longer than this many characters, 0 to disable
  max_length: 200
  # clips waiting for playback before new ones are dropped
  queue_size: 16
  # mention ids spoken as names
  # names:
  #   "123456789": "alice"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the seitai config file",
	Long:    paragraph(fmt.Sprintf("\n%s the seitai config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("seitai config\nseitai config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Seitai", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if configFile == "" {
			return errors.New("no configuration file path")
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
