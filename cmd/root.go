package cmd

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "berrycam",
	Short: "Phone camera stream ingest tool.",
	Long:  ``,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		fileCfg = config.Default()
		if configPath != "" {
			if fileCfg, err = config.Load(configPath); err != nil {
				return err
			}
		}
		level, asJSON := fileCfg.Log.Level, fileCfg.Log.JSON
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		if cmd.Flags().Changed("log-json") {
			asJSON = logJSON
		}
		initLogger(level, asJSON)
		return nil
	},
	Version:          "v1.0.0",
	TraverseChildren: true, // parses flags on all parents before executing child command
	SilenceUsage:     true, // silence usage when an error occurs
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		return cmd.Help()
	},
}

var (
	logLevel   string
	logJSON    bool
	duration   time.Duration
	configPath string

	fileCfg = config.Default()
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() int {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "INFO", "set log level")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "set log to json format (default colorized console)")
	rootCmd.PersistentFlags().DurationVarP(&duration, "duration", "d", 60*time.Second, "set duration")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "yaml config file")

	err := rootCmd.Execute()
	if err != nil {
		return 1
	}
	return 0
}

func initLogger(logLevel string, logJSON bool) {
	// Error Logging with Stacktrace
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	// set log timestamp precise to milliseconds
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z0700"

	var writer io.Writer
	if !logJSON {
		noColor := false
		if runtime.GOOS == "windows" {
			noColor = true
		}

		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
			NoColor:    noColor,
		}
	} else {
		writer = os.Stderr
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	level := strings.ToUpper(logLevel)
	switch level {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "FATAL":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "PANIC":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	}
	log.Info().Str("log_level", level).Bool("json", logJSON).Msg("set global log level")
}
