// @title           retrolock API
// @version         1.0
// @description     Authenticated control of a single door actuator.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the shared secret.
package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "retrolock/docs"
	"retrolock/internal/config"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	rootCmd = &cobra.Command{
		Use:   "retrolock",
		Short: "Door actuator control server.",
		Long: `Serves an authenticated HTTP API that drives one relay-controlled door line.

Without a subcommand it behaves like "retrolock serve".`,
		SilenceUsage: true,
		RunE:         runServe,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default configs/config.yml)")
	addServeFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd(), newTokenCmd())
}

// addServeFlags registers the flags listed in config.FlagKeys.
func addServeFlags(c *cobra.Command) {
	c.Flags().String("listen", "", "listen address, e.g. :5000")
	c.Flags().String("token-file", "", "path to the bearer secret file")
	c.Flags().String("driver", "", "actuator driver: periph, rpio or sim")
	c.Flags().String("log-level", "", "log level: debug, info, warn or error")
}

// loadConfig reads configuration with the command's flags bound on top.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	return config.Load(configPath, c.Flags())
}
