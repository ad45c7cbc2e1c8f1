package cardano

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries everything a registration run needs. It is built once by
// the caller (defaults, then file, then environment/flags) and passed
// explicitly to NewRegistrar.
type Config struct {
	Network   Network `yaml:"network" json:"network"`
	ProjectID string  `yaml:"project_id" json:"-"`
	// BaseURL overrides the network's default chain context endpoint.
	BaseURL string `yaml:"base_url" json:"baseUrl,omitempty"`
	KeyPath string `yaml:"key_path" json:"keyPath"`

	// PaymentAmount is the lovelace value of the self-payment output that
	// carries the metadata.
	PaymentAmount uint64            `yaml:"payment_amount" json:"paymentAmount"`
	TtlOffset     uint64            `yaml:"ttl_offset" json:"ttlOffset"`
	Label         uint64            `yaml:"label" json:"label"`
	Registration  VoterRegistration `yaml:"registration" json:"registration"`

	DryRun         bool          `yaml:"dry_run" json:"dryRun"`
	WaitTimeout    time.Duration `yaml:"wait_timeout" json:"waitTimeout"`
	WaitInterval   time.Duration `yaml:"wait_interval" json:"waitInterval"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"requestTimeout"`
	LogLevel       string        `yaml:"log_level" json:"logLevel,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Network:        NetworkPreProd,
		KeyPath:        "winning_voter.skey",
		PaymentAmount:  2_000_000,
		TtlOffset:      7200,
		Label:          DefaultRegistrationLabel,
		Registration:   DefaultVoterRegistration(),
		WaitInterval:   10 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// LoadConfigFile overlays the YAML file at path onto the defaults.
func LoadConfigFile(path string) (config *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(ErrInvalidConfig, "failed to read config file %s: %v", path, err)
		return
	}

	config = DefaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		err = errors.Wrapf(ErrInvalidConfig, "failed to parse config file %s: %v", path, err)
		return nil, err
	}

	return
}

func (c *Config) Validate() (err error) {
	if err = c.Network.Validate(); err != nil {
		return
	}
	if c.KeyPath == "" {
		return errors.Wrap(ErrInvalidConfig, "key path is required")
	}
	if c.PaymentAmount == 0 {
		return errors.Wrap(ErrInvalidConfig, "payment amount must be positive")
	}
	if c.WaitTimeout > 0 && c.WaitInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "wait interval must be positive when waiting for confirmation")
	}
	if c.ProjectID == "" {
		return errors.Wrapf(ErrInvalidConfig, "a blockfrost project id is required for %s", c.Network)
	}
	if err = ValidateProjectID(c.ProjectID, c.Network); err != nil {
		return
	}
	if _, err = c.ChainURL(); err != nil {
		return
	}
	return
}

// ValidateProjectID rejects project ids issued for a different network.
// Blockfrost prefixes every id with the network it was issued for.
func ValidateProjectID(projectID string, network Network) error {
	for _, other := range AllNetworks {
		if other == network || other == NetworkPrivateNet {
			continue
		}
		if strings.HasPrefix(projectID, string(other)) {
			return errors.Wrapf(ErrInvalidConfig, "project id was issued for %s, not %s", other, network)
		}
	}
	return nil
}

// ChainURL is BaseURL, or the network default when unset.
func (c *Config) ChainURL() (string, error) {
	raw := c.BaseURL
	if raw == "" {
		params, err := c.Network.Params()
		if err != nil {
			return "", err
		}
		raw = params.BlockfrostURL
	}
	return ValidateBaseURL(raw)
}

// ValidateBaseURL requires an absolute http(s) URL and returns it without a
// trailing slash.
func ValidateBaseURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidConfig, "base url '%s': %v", raw, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", errors.Wrapf(ErrInvalidConfig, "base url '%s' must be an absolute http(s) url", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
