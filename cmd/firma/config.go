package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/config"
	"github.com/fhwedel/firma/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Inspect configuration",
	Long: `Configuration is read from config.yaml in ./.firma or the user config
directory (e.g. ~/.config/firma), overridden by FIRMA_* environment
variables, overridden by command-line flags.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configuration key with its effective value",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		settings := config.Settings()
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"config_file": config.ConfigFileUsed(),
				"settings":    settings,
			})
			return
		}
		rows := make([][]string, len(settings))
		for i, s := range settings {
			rows[i] = []string{s.Key, s.Value, s.EnvVar}
		}
		fmt.Println(ui.RenderTable([]string{"key", "value", "env"}, rows))
		if f := config.ConfigFileUsed(); f != "" {
			fmt.Println(ui.RenderMuted("config file: " + f))
		} else {
			fmt.Println(ui.RenderMuted("no config file found"))
		}
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of one key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		k := config.LookupKey(args[0])
		if k == nil {
			fail(config.ValidateKey(args[0], ""))
		}
		value := config.GetString(k.Key)
		if jsonOutput {
			outputJSON(map[string]string{"key": k.Key, "value": value})
			return
		}
		fmt.Println(value)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every effective value",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := config.Validate(); err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(map[string]bool{"valid": true})
			return
		}
		fmt.Println(ui.RenderPass(ui.IconPass + " configuration is valid"))
	},
}

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
