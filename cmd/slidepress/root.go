package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slidepress/internal/config"
	"slidepress/internal/errs"
)

var (
	vp         = config.New()
	configFile string
	verbosity  int
)

var rootCmd = &cobra.Command{
	Use:   "slidepress",
	Short: "HTML presentation renderer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true, // don't print help when subcommands return an error
	SilenceErrors: true,
}

// Execute runs the command line and exits with status 1 on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml, then ~/.config/slidepress, then /etc/slidepress)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity; can be given more than once")
	rootCmd.PersistentFlags().String("cache.dir", "~/.cache/slidepress", "renderer cache directory")
	rootCmd.PersistentFlags().String("cache.backend", config.BackendFiles, "renderer cache backend (files or bolt)")
	rootCmd.PersistentFlags().Bool("cache.disabled", false, "render everything without using the cache")
	rootCmd.PersistentFlags().String("db.path", "~/.local/share/slidepress/slidepress.db", "database holding the build history and cache index")

	vp.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newTOCCmd())
	rootCmd.AddCommand(newMetadataCmd())
	rootCmd.AddCommand(newHashCmd())
	rootCmd.AddCommand(newStyleOptsCmd())
	rootCmd.AddCommand(newBuildsCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newAcronymsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if configFile != "" {
		vp.SetConfigFile(configFile)
	}
	if err := config.ReadInConfig(vp); err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	if verbosity > 0 && vp.ConfigFileUsed() != "" {
		log.Printf("Using config file: %s", vp.ConfigFileUsed())
	}
}

// loadConfig decodes the configuration after the flags of cmd named in
// keys have been bound to their configuration keys.
func loadConfig(cmd *cobra.Command, keys map[string]string) (*config.Config, error) {
	if err := bindFlags(vp, cmd, keys); err != nil {
		return nil, err
	}
	cfg, err := config.Load(vp)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfigConflict, err, "invalid configuration")
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "binding flag %s", flag)
		}
	}
	return nil
}

// printError writes the one-line summary of err. With -vv the complete
// chain is printed as well.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)

	if verbosity > 1 {
		fmt.Fprintf(w, "%+v\n", err)
	}
}

// warnf prints a non-fatal problem in yellow.
func warnf(format string, args ...any) {
	printer := color.New(color.FgYellow)
	printer.Fprintf(os.Stderr, "[WARNING] "+format+"\n", args...)
}
