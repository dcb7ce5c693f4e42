// Package config handles loading and validating Area Fans configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (AREAFANS_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Fans.DomainPrefix)
package config
