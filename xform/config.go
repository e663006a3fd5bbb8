package xform

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Config bounds an exploration pass and selects its rules. A zero budget
// means unlimited; exploration of a plan with two or more joins is only
// guaranteed to stop quickly when at least one budget is set.
type Config struct {
	// MaxSweeps is the maximum number of passes over the memo.
	MaxSweeps int `toml:"max-sweeps" json:"max-sweeps"`
	// MaxApplications is the maximum number of successful rule applications.
	MaxApplications int `toml:"max-applications" json:"max-applications"`
	// MaxGroups stops exploration once the memo holds this many groups.
	MaxGroups int `toml:"max-groups" json:"max-groups"`
	// Timeout is the maximum wall-clock duration of a pass.
	Timeout time.Duration `toml:"timeout" json:"timeout"`
	// CheckInvariants runs the memo's invariant checker after each sweep.
	CheckInvariants bool `toml:"check-invariants" json:"check-invariants"`
	// Rules lists the rules to apply by name. Empty means DefaultRules.
	Rules []string `toml:"rules" json:"rules"`
}

var defaultConf = Config{
	MaxSweeps:       32,
	MaxApplications: 10000,
	MaxGroups:       10000,
}

// DefaultConfig returns the default budgets.
func DefaultConfig() Config {
	return defaultConf
}

// ParseConfig decodes a TOML document on top of the default configuration
// and validates the result. Unknown keys are rejected.
func ParseConfig(s string) (Config, error) {
	c := DefaultConfig()
	md, err := toml.Decode(s, &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing explorer config")
	}
	return c, c.finish(md)
}

// LoadConfig reads the configuration from a TOML file.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading explorer config %s", path)
	}
	return c, c.finish(md)
}

func (c *Config) finish(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.Newf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return c.Validate()
}

// Validate checks that the budgets are non-negative and the rules exist.
func (c *Config) Validate() error {
	if c.MaxSweeps < 0 {
		return errors.Newf("max-sweeps must not be negative: %d", c.MaxSweeps)
	}
	if c.MaxApplications < 0 {
		return errors.Newf("max-applications must not be negative: %d", c.MaxApplications)
	}
	if c.MaxGroups < 0 {
		return errors.Newf("max-groups must not be negative: %d", c.MaxGroups)
	}
	if c.Timeout < 0 {
		return errors.Newf("timeout must not be negative: %s", c.Timeout)
	}
	for _, name := range c.Rules {
		if _, ok := RuleByName(name); !ok {
			return errors.Newf("unknown rule %q (known: %s)", name, strings.Join(RuleNames(), ", "))
		}
	}
	return nil
}

// rules returns the configured rules.
func (c *Config) rules() []Rule {
	if len(c.Rules) == 0 {
		return DefaultRules()
	}
	res := make([]Rule, 0, len(c.Rules))
	for _, name := range c.Rules {
		if r, ok := RuleByName(name); ok {
			res = append(res, r)
		}
	}
	return res
}
