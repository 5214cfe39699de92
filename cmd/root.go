package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
)

// newRootCommand builds the scan-collector command. Flags override values
// from the config file and the environment.
func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "scan-collector",
		Short: "Collect network and host scan reports over TCP",
		Long: `scan-collector listens for scan reports sent as JSON over TCP, classifies
each one as a network scan or a host scan and logs a status line for it.
After the listener is up it starts one sweep of the configured subnets.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.String("host", "", "report listener host")
	flags.Int("port", 0, "report listener port")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	bindings := map[string]string{
		"listener.host": "host",
		"listener.port": "port",
		"logging.level": "log-level",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
		}
	}

	return cmd
}
