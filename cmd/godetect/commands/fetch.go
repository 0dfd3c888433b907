package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewFetchCmd creates the fetch command, which pre-warms the artifact
// cache so later runs start without a download.
func NewFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [url...]",
		Short: "Download model artifacts into the local cache",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadSetup(cmd)
			if err != nil {
				return err
			}

			urls := args
			if len(urls) == 0 {
				if cfg.Model.URL == "" {
					return errors.New("nothing to fetch: pass URLs or configure model.url")
				}
				urls = []string{cfg.Model.URL}
				if cfg.Model.LabelsURL != "" {
					urls = append(urls, cfg.Model.LabelsURL)
				}
			}

			fc, err := newFetchClient(cfg, log)
			if err != nil {
				return err
			}
			for _, u := range urls {
				path, err := fc.Fetch(cmd.Context(), u)
				if err != nil {
					return errors.Wrapf(err, "fetch %s", u)
				}
				log.Info().Str("url", u).Str("path", path).Msg("artifact ready")
			}
			return nil
		},
	}
}
