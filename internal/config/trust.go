package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TrustConfig holds the tunables of the trust propagation and payout
// engines. Values are read from trust.yml when present and can be changed
// without a restart; running computations keep the snapshot they started with.
type TrustConfig struct {
	// Propagation.
	DampingFactor float64 `mapstructure:"dampingFactor"`
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"maxIterations"`

	// Referral chains and payout splits.
	MaxChainDepth int     `mapstructure:"maxChainDepth"`
	DecayFactor   float64 `mapstructure:"decayFactor"`

	// Initial trust endowment per account tier, in ledger units (0-100).
	TierGrants map[string]int64 `mapstructure:"tierGrants"`

	// Invitation lifecycle.
	InvitationTTLHours int `mapstructure:"invitationTTLHours"`
}

func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		DampingFactor: 0.85,
		Tolerance:     1e-9,
		MaxIterations: 100,
		MaxChainDepth: 10,
		DecayFactor:   0.5,
		TierGrants: map[string]int64{
			"founding":  100,
			"standard":  50,
			"probation": 20,
		},
		InvitationTTLHours: 14 * 24,
	}
}

// GrantForTier resolves the initial endowment for a tier, falling back to the
// standard tier for unknown values.
func (c TrustConfig) GrantForTier(tier string) int64 {
	if amount, ok := c.TierGrants[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return amount
	}
	return c.TierGrants["standard"]
}

// TrustConfigHolder exposes the latest TrustConfig via an atomic swap so
// readers never observe a partially reloaded value.
type TrustConfigHolder struct {
	current atomic.Value // holds TrustConfig
}

func NewTrustConfigHolder() (*TrustConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("trust")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/vouchnet/config")
	v.AddConfigPath("/etc/vouchnet")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VOUCHNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	holder := &TrustConfigHolder{}
	if err := holder.reload(v); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := holder.reload(v); err != nil {
			log.Printf("trust config reload rejected: %v", err)
		}
	})
	v.WatchConfig()

	return holder, nil
}

func (h *TrustConfigHolder) reload(v *viper.Viper) error {
	cfg := DefaultTrustConfig()
	if err := v.UnmarshalKey("trust", &cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

// Current returns the active TrustConfig.
func (h *TrustConfigHolder) Current() TrustConfig {
	if cfg, ok := h.current.Load().(TrustConfig); ok {
		return cfg
	}
	return DefaultTrustConfig()
}

// Store replaces the active config. Used by tests.
func (h *TrustConfigHolder) Store(cfg TrustConfig) {
	h.current.Store(cfg)
}

func (c TrustConfig) validate() error {
	if c.DampingFactor <= 0 || c.DampingFactor >= 1 {
		return errors.New("dampingFactor must be in (0,1)")
	}
	if c.Tolerance <= 0 {
		return errors.New("tolerance must be positive")
	}
	if c.MaxIterations <= 0 {
		return errors.New("maxIterations must be positive")
	}
	if c.MaxChainDepth <= 0 {
		return errors.New("maxChainDepth must be positive")
	}
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		return errors.New("decayFactor must be in (0,1)")
	}
	return nil
}
