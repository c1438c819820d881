package access

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

// Config is the trust configuration: who holds which bearer token and
// which access tags it unlocks.
type Config struct {
	Restricted              *RestrictedPolicy       `json:"restricted,omitempty"`
	DefaultPrivateAccessTag string                  `json:"default_private_access_tag,omitempty"`
	Tokens                  map[string]*TokenRecord `json:"tokens,omitempty"`
}

type RestrictedPolicy struct {
	Count   bool   `json:"count"`
	Message string `json:"message"`
}

type TokenRecord struct {
	Token      string   `json:"token,omitempty"`
	AccessTags []string `json:"access_tags,omitempty"`
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode trust configuration: %v", appErr.ErrConfig, err)
	}
	if err := cfg.checkUniqueTokens(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checkUniqueTokens rejects two users sharing one bearer token.
func (c *Config) checkUniqueTokens() error {
	owners := make(map[string]string, len(c.Tokens))
	for _, userID := range c.userIDs() {
		record := c.Tokens[userID]
		if record == nil || record.Token == "" {
			continue
		}
		if owner, ok := owners[record.Token]; ok {
			return fmt.Errorf("%w: users %s and %s share a token", appErr.ErrConfig, owner, userID)
		}
		owners[record.Token] = userID
	}
	return nil
}

func (c *Config) userIDs() []string {
	return slices.Sorted(maps.Keys(c.Tokens))
}

func (c *Config) policy() (bool, string) {
	if c == nil || c.Restricted == nil {
		return false, ""
	}
	return c.Restricted.Count, c.Restricted.Message
}
