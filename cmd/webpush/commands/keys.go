package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pushwire/webpush"
)

func keysCmd(a *app) *cobra.Command {
	var dotenv bool
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate a VAPID key pair",
		Long: "Generate a VAPID key pair. Store the private key securely and " +
			"hand the public key to browsers as the applicationServerKey.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := webpush.GenerateVAPIDKey()
			if err != nil {
				return err
			}
			key, err := webpush.ParseVAPIDKey(encoded)
			if err != nil {
				return err
			}
			public, private, err := webpush.EncodeVAPIDKeys(key)
			if err != nil {
				return err
			}
			a.log.WithField("public_key", public).Debug("Generated VAPID key")

			if dotenv {
				out, err := godotenv.Marshal(map[string]string{
					envPrefix + "VAPID_PUBLIC_KEY":  public,
					envPrefix + "VAPID_PRIVATE_KEY": private,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(&Config{
				VAPID: VAPIDConfig{PublicKey: public, PrivateKey: private},
			})
		},
	}
	cmd.Flags().BoolVar(&dotenv, "dotenv", false, "print as dotenv variables instead of YAML")
	return cmd
}
