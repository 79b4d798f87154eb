package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophjournal/internal/flagx"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals
// may be strings like "15m" or integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DataDir            string         `json:"data_dir"`
	MediaDir           string         `json:"media_dir"`
	LogLevel           string         `json:"log_level"`
	PushInterval       timex.Duration `json:"push_interval"`
	DispatcherLimit    int            `json:"dispatcher_limit"`
}

// parseJson overlays Config with the non-empty values of the JSON file
// given with -c or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.MediaDir != "" {
		cfg.MediaDir = jc.MediaDir
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.PushInterval.Duration > 0 {
		cfg.PushInterval = jc.PushInterval.Duration
	}
	if jc.DispatcherLimit > 0 {
		cfg.DispatcherLimit = jc.DispatcherLimit
	}
}
