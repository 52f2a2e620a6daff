package config

const redactedPlaceholder = "[REDACTED]"

// RedactedConfig returns a deep copy of cfg safe for logging. All secret
// material is replaced with a placeholder; non-secret fields are preserved
// so a startup log line still shows the effective configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Bitfinex = redactVenue(cfg.Bitfinex)
	out.Bittrex = redactVenue(cfg.Bittrex)

	if cfg.Postgres.DSN != "" {
		out.Postgres.DSN = redactedPlaceholder
	}
	if cfg.Postgres.Password != "" {
		out.Postgres.Password = redactedPlaceholder
	}
	if cfg.Redis.Password != "" {
		out.Redis.Password = redactedPlaceholder
	}

	out.Fees = make(map[string]FeeConfig, len(cfg.Fees))
	for venue, fee := range cfg.Fees {
		fc := fee
		fc.Withdrawal = make(map[string]string, len(fee.Withdrawal))
		for asset, amount := range fee.Withdrawal {
			fc.Withdrawal[asset] = amount
		}
		out.Fees[venue] = fc
	}

	return out
}

func redactVenue(vc VenueConfig) VenueConfig {
	out := vc
	if vc.ApiKey != "" {
		out.ApiKey = redactedPlaceholder
	}
	if vc.ApiSecret != "" {
		out.ApiSecret = redactedPlaceholder
	}
	if vc.CredsPassword != "" {
		out.CredsPassword = redactedPlaceholder
	}
	out.Deposits = make(map[string]string, len(vc.Deposits))
	for asset, addr := range vc.Deposits {
		out.Deposits[asset] = addr
	}
	return out
}
