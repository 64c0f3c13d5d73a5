package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "List VOICEVOX speakers and their style ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		speakers, err := a.engine.Speakers(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, sp := range speakers {
			styles := make([]string, 0, len(sp.Styles))
			for _, st := range sp.Styles {
				styles = append(styles, fmt.Sprintf("%s %s", keyword(fmt.Sprint(st.ID)), st.Name))
			}
			_, _ = fmt.Fprintf(w, "%s %s\n  %s\n", sp.Name, faint(sp.Version), strings.Join(styles, ", "))
		}
		return nil
	},
}
