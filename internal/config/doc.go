// Package config loads the TOML configuration shared by the jamie terminal
// client and the jamie-seo renderer.
//
// # Configuration Discovery
//
// Load follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/jamie/config.toml
//  3. If the file doesn't exist, return Default()
//  4. If the file exists but fields are blank, keep the defaults for them
//
// ApplyEnv then lets JAMIE_* variables (and a .env file in the working
// directory) override selected fields. The SEO server calls it; the terminal
// client does not.
//
// # TOML Format
//
//	api_base = "https://www.pullthatupjamie.ai"
//	session_path = "~/.config/jamie/session.toml"
//	log_path = "~/.local/state/jamie/jamie.log"
//	log_level = "info"
//	request_timeout = "20s"
//	poll_interval = "15s"
//	poll_max_attempts = 100
//	theme = "Jamie"
//	metrics_listen = ""          # e.g. "127.0.0.1:9464"
//
//	[analytics]
//	kafka_brokers = []           # empty disables the Kafka sink
//	kafka_topic = "jamie.quota-modal"
//
//	[seo]
//	listen = ":8787"
//	content_api = "https://www.pullthatupjamie.ai"
//	spa_url = "https://www.pullthatupjamie.ai"
//	redis_addr = ""              # empty uses an in-process cache
//	cache_ttl = "10m"
//	site_name = "Pull That Up Jamie"
//	default_image = "https://www.pullthatupjamie.ai/jamie-og.png"
//
// Durations use time.ParseDuration syntax and must be positive. Paths accept
// a leading ~ and are made absolute.
package config
