package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/couchcryptid/disaster-alert-service/internal/feed"
)

// NewNormalizeCmd creates the normalize subcommand. It reads either a single
// feed payload (--feed) or a whole snapshot document (--snapshot) and prints
// the normalized records as JSON.
func NewNormalizeCmd() *cobra.Command {
	var (
		feedName string
		file     string
		snapshot bool
	)
	c := &cobra.Command{
		Use:          "normalize",
		Short:        "Normalize a feed payload or snapshot into alert records",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if snapshot {
				out, err := normalizeSnapshot(data)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			f := domain.FeedType(feedName)
			if !f.Valid() {
				return fmt.Errorf("unknown feed %q", feedName)
			}
			records, err := domain.Normalize(f, json.RawMessage(data))
			if err != nil {
				return err
			}
			if records == nil {
				records = []domain.AlertRecord{}
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	c.Flags().StringVar(&feedName, "feed", string(domain.FeedEarthquake), "feed type of the payload")
	c.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	c.Flags().BoolVar(&snapshot, "snapshot", false, "treat the input as a snapshot document covering every feed")
	return c
}

// normalizeSnapshot normalizes every feed in priority order. A malformed feed
// is reported in the output instead of failing the whole document.
func normalizeSnapshot(data []byte) (map[domain.FeedType]any, error) {
	snap, err := feed.ParseSnapshot(data)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.FeedType]any, len(domain.FeedPriority))
	for _, f := range domain.FeedPriority {
		payload, _ := snap.Get(f)
		records, err := domain.Normalize(f, payload)
		if err != nil {
			out[f] = map[string]string{"error": err.Error()}
			continue
		}
		if records == nil {
			records = []domain.AlertRecord{}
		}
		out[f] = records
	}
	return out, nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}
