package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/pkg/bytesize"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for inspecting renditiond configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all available configuration options with their current values.
Redirect the output to a file to create a configuration template:

  renditiond config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .renditiond.yaml, /etc/renditiond/config.yaml)
  - Environment variables (RENDITIOND_SERVER_PORT, RENDITIOND_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the RENDITIOND_ prefix and underscores for nesting.
Example: server.port -> RENDITIOND_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations and byte sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		case config.ByteSize:
			result[key] = bytesize.Size(v).String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# renditiond Configuration File")
	fmt.Println("# =============================")
	fmt.Println("#")
	fmt.Println("# Duration format: 30s, 5m, 2h")
	fmt.Println("# Size format: 5MB, 8GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   RENDITIOND_SERVER_HOST, RENDITIOND_SERVER_PORT")
	fmt.Println("#   RENDITIOND_DATABASE_DRIVER, RENDITIOND_DATABASE_DSN")
	fmt.Println("#   RENDITIOND_STORAGE_BASE_DIR")
	fmt.Println("#   RENDITIOND_LOGGING_LEVEL, RENDITIOND_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
