// Package config handles loading and validating cloudlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and operational bounds
//   - Default value handling
//
// Security Considerations:
//   - The private key should be set via CLOUDLINK_PRIVATE_KEY, not committed to the file
//   - The config file should have restricted permissions (0600)
//
// Operational bounds are checked at load time, never at first use:
//   - poll.interval_ms must be in (0, 9000]
//   - credentials.jwt.exp_secs must not exceed 86400
//
// Usage:
//
//	cfg, err := config.Load("configs/cloudlink.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.DeviceID)
package config
