package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/beacon/internal/logging"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/pipeline"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	verbose bool
	jsonLog bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Beacon - retrieval ranking and content-opportunity intelligence",
	Long: `Beacon ranks evidence for questions about NYC construction and zoning rules
and mines the questions your team asks for content worth writing.

Live path:  rank, classify, serve
Batch path: analyze (cluster the question log, score content opportunities)
Admin:      correct, ingest, config`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logging.Options{
			Verbose: viper.GetBool("output.verbose"),
			JSON:    viper.GetBool("output.json_log"),
		})
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("beacon %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.beacon/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log as JSON lines")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.json_log", rootCmd.PersistentFlags().Lookup("json-log"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper(), model.DefaultConfig())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.beacon")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match BEACON_*, e.g. BEACON_ANALYSIS_WINDOW_DAYS
	viper.SetEnvPrefix("BEACON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every field of cfg as a viper default so env overrides reach Unmarshal
func setDefaults(v *viper.Viper, cfg *model.Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for key, value := range node {
			if child, ok := value.(map[string]any); ok {
				walk(prefix+key+".", child)
				continue
			}
			v.SetDefault(prefix+key, value)
		}
	}
	walk("", tree)

	// Fields the YAML form omits
	for _, tier := range []string{"fast", "capable"} {
		for _, key := range []string{"api_key", "base_url", "http_proxy", "https_proxy", "no_proxy"} {
			v.SetDefault("llm."+tier+"."+key, "")
		}
	}
}

// loadConfig resolves flags > env > file > defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openPipeline loads the configuration and wires every component
func openPipeline(ctx context.Context) (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(ctx, cfg, pipeline.Options{})
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
