package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "markermap.cfg.json"

// ViewConfig holds map view settings
type ViewConfig struct {
	Zoom    int `json:"zoom" mapstructure:"zoom"`
	MaxZoom int `json:"maxZoom" mapstructure:"maxZoom"`
	Width   int `json:"width" mapstructure:"width"`
	Height  int `json:"height" mapstructure:"height"`
}

// TileConfig holds the base tile layer
type TileConfig struct {
	URLTemplate string `json:"urlTemplate" mapstructure:"urlTemplate"`
	Attribution string `json:"attribution" mapstructure:"attribution"`
}

// InfluxConfig holds the optional filter statistics sink
type InfluxConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// GraylogConfig holds the optional GELF log sink
type GraylogConfig struct {
	Enabled bool
	Address string
}

// SetDefaults registers default values for every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./markermaplogs")

	viper.SetDefault("dataPath", "../markers_data.json")
	viper.SetDefault("httpTimeout", "30s")

	viper.SetDefault("view.zoom", 7)
	viper.SetDefault("view.maxZoom", 18)
	viper.SetDefault("view.width", 800)
	viper.SetDefault("view.height", 600)

	viper.SetDefault("tiles.urlTemplate", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	viper.SetDefault("tiles.attribution", `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`)

	viper.SetDefault("icons.fallbackTemplate", "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-{color}.png")

	viper.SetDefault("filter.default", "all")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "markermap")
	viper.SetDefault("influx.bucket", "marker_view")
	viper.SetDefault("influx.timeout", "5s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file cannot be read.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetViewConfig returns the map view settings.
func GetViewConfig() ViewConfig {
	return ViewConfig{
		Zoom:    viper.GetInt("view.zoom"),
		MaxZoom: viper.GetInt("view.maxZoom"),
		Width:   viper.GetInt("view.width"),
		Height:  viper.GetInt("view.height"),
	}
}

// GetTileConfig returns the base tile layer settings.
func GetTileConfig() TileConfig {
	return TileConfig{
		URLTemplate: viper.GetString("tiles.urlTemplate"),
		Attribution: viper.GetString("tiles.attribution"),
	}
}

// GetInfluxConfig returns the InfluxDB statistics settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL:     viper.GetString("influx.url"),
		Token:   viper.GetString("influx.token"),
		Org:     viper.GetString("influx.org"),
		Bucket:  viper.GetString("influx.bucket"),
		Timeout: viper.GetDuration("influx.timeout"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
