package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/seitai/internal/audio"
	"github.com/dgnsrekt/seitai/internal/playback"
)

var (
	outputDir string
	showStats bool

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT...]",
		Short: "Speak text",
		Long: paragraph(fmt.Sprintf("\n%s each TEXT, or stdin when none is given. Code blocks and links are read as short cached cues.", keyword("Speak"))),
		Example: paragraph("seitai speak 'おはよう'\n" +
			"echo 'see https://example.com' | seitai speak\n" +
			"seitai speak --output clips 'hello'\n" +
			"seitai speak --output - 'hello' | aplay"),
		RunE: runSpeak,
	}
)

func init() {
	speakCmd.Flags().StringVarP(&outputDir, "output", "o", "", "write WAV files to a directory instead of playing, or - for stdout")
	speakCmd.Flags().BoolVar(&showStats, "stats", false, "print cache and playback statistics")
}

func readMessages(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
		return nil, errors.New("no text given: pass TEXT or pipe it on stdin")
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("unable to read from stdin: %w", err)
	}
	return []string{string(b)}, nil
}

// newSink picks where audio goes: a directory, stdout, or the speaker.
func newSink(dir string) (playback.Sink, error) {
	switch dir {
	case "":
		return playback.NewSpeaker(playback.DefaultFormat,
			playback.WithSpeakerLogger(log.Default().WithPrefix("speaker")))
	case "-":
		if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
			return nil, errors.New("refusing to write audio to a terminal: redirect stdout")
		}
		return playback.NewWriterSink(os.Stdout), nil
	default:
		return playback.NewFileSink(dir)
	}
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	messages, err := readMessages(args)
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

	var segments []string
	for _, m := range messages {
		segments = append(segments, a.segmenter.Segment(m)...)
	}
	if len(segments) == 0 {
		return errors.New("nothing to speak")
	}

	sink, err := newSink(outputDir)
	if err != nil {
		return err
	}

	// Every segment is fetched at once; the queue must hold them all.
	q := playback.NewQueue(sink, max(len(segments), cfg.Message.QueueSize), log.Default().WithPrefix("playback"))
	for _, segment := range segments {
		fp, err := a.fingerprint(segment, cfg.Voice)
		if err != nil {
			return err
		}
		if err := q.Enqueue(ctx, func(ctx context.Context) (*audio.Raw, error) {
			return a.repo.Get(ctx, fp)
		}); err != nil {
			return err
		}
	}
	q.Close()

	if err := q.Run(ctx); err != nil {
		return err
	}

	qs := q.Stats()
	if showStats {
		printStats(cmd.ErrOrStderr(), a.repo.Stats(), qs)
	}
	if qs.Failed > 0 {
		return fmt.Errorf("%d of %d clips failed", qs.Failed, qs.Enqueued)
	}
	return nil
}

func printStats(w io.Writer, rs audio.Stats, qs playback.QueueStats) {
	_, _ = fmt.Fprintf(w, "%s %s hits, %s misses, %.0f%% hit rate\n",
		keyword("cache   "),
		humanize.Comma(rs.Hits), humanize.Comma(rs.Misses), rs.HitRate()*100)
	_, _ = fmt.Fprintf(w, "%s %d entries, %s encoded, %d encode failures\n",
		keyword("store   "),
		rs.Entries, humanize.Bytes(uint64(rs.EncodedBytes)), rs.EncodeFailures) //nolint:gosec
	_, _ = fmt.Fprintf(w, "%s %d played, %d failed, %d dropped %s\n",
		keyword("playback"),
		qs.Played, qs.Failed, qs.Dropped, faint(fmt.Sprintf("(%d synthesized)", rs.Generated)))
}
