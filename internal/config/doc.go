// Package config loads tether.yaml, tether.yml or tether.json files for the
// tether command.
//
// YAML keys are snake_case and JSON keys are camelCase. Durations are
// written as strings ("100ms", "5m").
//
//	address: ":8080"
//	title: Counter
//	mode: shared          # or per-browser
//	max_sessions: 1000
//	session:
//	  update_interval: 100ms
//	  idle_timeout: 5m    # 0s disables eviction
//	cookie:
//	  secure: true
//	metrics:
//	  enabled: true
//	log:
//	  level: debug
//	  json: true
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    errors.PrintError(os.Stderr, err)
//	    os.Exit(1)
//	}
//	sc, err := cfg.ToServerConfig()
package config
