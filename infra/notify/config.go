package notify

import "fmt"

// Config defines the MQTT notification settings.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "rakeplan"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "rakeplan/jobs"
	}
	if c.QoS > 2 {
		c.QoS = 1
	}
}

// Validate checks mandatory fields when notification is enabled.
func (c Config) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("notify broker is required when enabled")
	}
	return nil
}
