package client

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/cirrus-project/cirrus/pkg/logging"
	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// ConfigKey is the root configuration key (in Viper) for this module.
var ConfigKey = "client"

// Config holds the tunables of the client's resilience machinery.
type Config struct {
	// MaxBufferSize is the default write buffer size for uploads, rounded up
	// to the backend's chunk quantum. Zero selects the built-in default.
	MaxBufferSize uint64 `mapstructure:"maxBufferSize"`

	// RetryMaxFailures caps the transient failures tolerated per logical
	// operation. When zero, RetryMaxElapsed applies instead.
	RetryMaxFailures int `mapstructure:"retryMaxFailures"`

	// RetryMaxElapsed bounds the wall-clock time spent retrying one logical
	// operation. Defaults to 15m when neither retry knob is set.
	RetryMaxElapsed time.Duration `mapstructure:"retryMaxElapsed"`

	// BackoffInitialDelay is the first retry delay. Defaults to 10ms.
	BackoffInitialDelay time.Duration `mapstructure:"backoffInitialDelay"`

	// BackoffMaximumDelay caps the retry delay. Defaults to 5m.
	BackoffMaximumDelay time.Duration `mapstructure:"backoffMaximumDelay"`

	// BackoffScaling is the delay growth factor. Defaults to 2.0.
	BackoffScaling float64 `mapstructure:"backoffScaling"`
}

// Validate ensures the client Config is usable.
func (c *Config) Validate() error {
	if c.RetryMaxFailures < 0 {
		return fmt.Errorf("retryMaxFailures must be >= 0, not %d", c.RetryMaxFailures)
	}
	if c.RetryMaxElapsed < 0 {
		return fmt.Errorf("retryMaxElapsed must be >= 0, not %s", c.RetryMaxElapsed)
	}
	if c.BackoffScaling != 0 && c.BackoffScaling <= 1.0 {
		return fmt.Errorf("backoffScaling must be > 1.0, not %g", c.BackoffScaling)
	}
	return nil
}

// RetryPolicy builds the retry policy prototype from the configuration.
func (c *Config) RetryPolicy() transfer.RetryPolicy {
	if c.RetryMaxFailures > 0 {
		return transfer.NewLimitedErrorCountRetryPolicy(c.RetryMaxFailures)
	}
	if c.RetryMaxElapsed > 0 {
		return transfer.NewLimitedTimeRetryPolicy(c.RetryMaxElapsed)
	}
	return transfer.DefaultRetryPolicy()
}

// BackoffPolicy builds the backoff policy prototype from the configuration.
func (c *Config) BackoffPolicy() transfer.BackoffPolicy {
	if c.BackoffInitialDelay == 0 && c.BackoffMaximumDelay == 0 && c.BackoffScaling == 0 {
		return transfer.DefaultBackoffPolicy()
	}
	initial := c.BackoffInitialDelay
	if initial == 0 {
		initial = 10 * time.Millisecond
	}
	maximum := c.BackoffMaximumDelay
	if maximum == 0 {
		maximum = 5 * time.Minute
	}
	scaling := c.BackoffScaling
	if scaling == 0 {
		scaling = 2.0
	}
	return transfer.NewExponentialBackoffPolicy(initial, maximum, scaling)
}

// NewConfig reads the client configuration from Viper under ConfigKey.
func NewConfig(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.UnmarshalKey(ConfigKey, c); err != nil {
		return nil, fmt.Errorf("error reading client configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	return c, nil
}

// Module loads the client configuration from Viper and provides a *Client
// over the transport in the fx graph.
var Module fx.Option = fx.Provide(
	NewConfig,
	provideMetrics,
	provideClient,
)

func provideMetrics(reg prometheus.Registerer) *Metrics {
	return NewMetrics(reg)
}

func provideClient(config *Config, raw transfer.RawClient, logger logging.Interface, metrics *Metrics) *Client {
	return New(raw,
		WithLogger(logger),
		WithRetryPolicy(config.RetryPolicy()),
		WithBackoffPolicy(config.BackoffPolicy()),
		WithTransferMetrics(metrics),
		WithDefaultBufferSize(config.MaxBufferSize),
	)
}
