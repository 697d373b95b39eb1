package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"llm-jukebox/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration and where each value comes from",
	Args:  cobra.NoArgs,
	RunE:  runConfigPrint,
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	cfg, opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	path := opts.ConfigPath
	if path == "" {
		if p, perr := config.Path(); perr == nil {
			path = p
		}
	}
	printFields(out, newStyles(out), path, config.EffectiveFields(*cfg, opts))
	return nil
}

func printFields(w io.Writer, st styles, configPath string, fields []config.FieldInfo) {
	fmt.Fprintln(w, st.sectionHeader("llm-jukebox configuration"))
	if configPath != "" {
		fmt.Fprintln(w, st.dim("config file: "+configPath))
	}
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = `""`
		}
		fmt.Fprintf(w, "%s %s\n", st.kv(f.Key, value), st.dim(fmt.Sprintf("(%s, %s)", f.Source, f.EnvVar)))
	}
}
