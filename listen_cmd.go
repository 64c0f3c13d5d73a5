package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/seitai/internal/audio"
	"github.com/dgnsrekt/seitai/internal/config"
	"github.com/dgnsrekt/seitai/internal/playback"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Speak each line read from stdin",
	Long: paragraph(fmt.Sprintf("\n%s to stdin and speak every line as a chat message. The default voice follows edits to the config file.", keyword("Listen"))),
	Example: paragraph("tail -f chat.log | seitai listen"),
	Args:    cobra.NoArgs,
	RunE:    runListen,
}

func init() {
	listenCmd.Flags().StringVarP(&outputDir, "output", "o", "", "write WAV files to a directory instead of playing, or - for stdout")
	listenCmd.Flags().BoolVar(&showStats, "stats", false, "print cache and playback statistics on exit")
}

// watchVoice keeps voice in sync with the config file. Invalid edits are
// logged and ignored.
func watchVoice(voice *atomic.Pointer[config.VoiceConfig]) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			log.Warn("Ignoring invalid configuration change", "file", e.Name, "err", err)
			return
		}
		voice.Store(&cfg.Voice)
		log.Info("Reloaded voice", "speaker", cfg.Voice.Speaker, "speed", cfg.Voice.Speed)
	})
	viper.WatchConfig()
}

func runListen(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if err := a.start(ctx); err != nil {
		return err
	}

	sink, err := newSink(outputDir)
	if err != nil {
		return err
	}

	var voice atomic.Pointer[config.VoiceConfig]
	voice.Store(&cfg.Voice)
	watchVoice(&voice)

	q := playback.NewQueue(sink, cfg.Message.QueueSize, log.Default().WithPrefix("playback"))
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error("Failed to read stdin", "err", err)
		}
	}()

read:
	for {
		select {
		case <-ctx.Done():
			break read
		case line, ok := <-lines:
			if !ok {
				break read
			}
			speakLine(ctx, a, q, *voice.Load(), line)
		}
	}

	q.Close()
	err = <-done
	if showStats {
		printStats(cmd.ErrOrStderr(), a.repo.Stats(), q.Stats())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func speakLine(ctx context.Context, a *app, q *playback.Queue, voice config.VoiceConfig, line string) {
	for _, segment := range a.segmenter.Segment(line) {
		fp, err := a.fingerprint(segment, voice)
		if err != nil {
			log.Error("Skipping utterance", "text", segment, "err", err)
			continue
		}
		err = q.Enqueue(ctx, func(ctx context.Context) (*audio.Raw, error) {
			return a.repo.Get(ctx, fp)
		})
		if err != nil {
			log.Warn("Dropping utterance", "text", segment, "err", err)
		}
	}
}
