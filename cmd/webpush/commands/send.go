package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pushwire/webpush"
)

func sendCmd(a *app) *cobra.Command {
	var subscriptionPath string
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a notification to a subscription",
		Long: "Send a notification to the subscription read from --subscription. " +
			"Without a message an empty push is sent.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			conf, err := cfg.WebPush(a.log)
			if err != nil {
				return err
			}
			sub, err := readSubscription(cmd.InOrStdin(), subscriptionPath)
			if err != nil {
				return err
			}

			var message []byte
			if len(args) == 1 {
				message = []byte(args[0])
			}

			resp, err := webpush.Send(cmd.Context(), message, sub, conf)
			if resp != nil && resp.Body != nil {
				defer resp.Body.Close()
			}
			if err != nil {
				var re *webpush.ResponseError
				if errors.As(err, &re) {
					a.log.WithFields(logrus.Fields{
						"status": re.StatusCode,
						"kind":   re.Kind.String(),
					}).Error("Push service rejected notification")
				}
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&subscriptionPath, "subscription", "s", "-", "subscription JSON file, - for stdin")
	flags.String("format", "", "content coding, aes128gcm or aesgcm")
	flags.Duration("ttl", 0, "time to live on the push service")
	flags.String("topic", "", "topic replacing pending messages")
	flags.String("urgency", "", "very-low, low, normal or high")
	return cmd
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "format":
			cfg.Format = f.Value.String()
		case "ttl":
			cfg.TTL, err = fs.GetDuration("ttl")
		case "topic":
			cfg.Topic = f.Value.String()
		case "urgency":
			cfg.Urgency = f.Value.String()
		}
	})
	return err
}

func readSubscription(stdin io.Reader, path string) (*webpush.Subscription, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read subscription: %w", err)
	}
	var sub webpush.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &sub, nil
}
