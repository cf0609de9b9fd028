package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/casevault/internal/flagx"
	"github.com/dmitrijs2005/casevault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// Absent fields leave the current value alone.
type JsonConfig struct {
	ServerEndpointAddr string          `json:"server_endpoint_addr"`
	Retries            *uint64         `json:"retries"`
	RetryBase          *timex.Duration `json:"retry_base"`
	RetryMax           *timex.Duration `json:"retry_max"`
	JournalPath        string          `json:"journal_path"`
}

// parseJson overlays cfg with the file given via -c or -config in args.
// It panics on read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	jsonConfigFile := flagx.LookupString(args, "c", "config")
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
	if jc.Retries != nil {
		cfg.Retries = *jc.Retries
	}
	if jc.RetryBase != nil {
		cfg.RetryBase = jc.RetryBase.Duration
	}
	if jc.RetryMax != nil {
		cfg.RetryMax = jc.RetryMax.Duration
	}
	if jc.JournalPath != "" {
		cfg.JournalPath = jc.JournalPath
	}
}
