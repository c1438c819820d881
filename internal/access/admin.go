package access

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

var unsafeUserChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// GenerateToken returns a fresh bearer token of the form sk_<user>_<random>.
func GenerateToken(userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	base := strings.ReplaceAll(base64.RawURLEncoding.EncodeToString(buf), "-", "_")
	safeUser := unsafeUserChars.ReplaceAllString(strings.ReplaceAll(userID, "@", "_at_"), "_")
	return "sk_" + safeUser + "_" + base, nil
}

// Grant makes sure userID has a token and the given tags (nil tags resets to
// the default private tag). An existing token is only replaced with force.
func (c *Config) Grant(userID string, tags []string, force bool) (string, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return "", false, fmt.Errorf("%w: user id is required", appErr.ErrInvalidRequest)
	}
	if c.Tokens == nil {
		c.Tokens = make(map[string]*TokenRecord)
	}
	record := c.Tokens[userID]
	if record == nil {
		record = &TokenRecord{}
		c.Tokens[userID] = record
	}
	changed := false
	if record.Token == "" || force {
		token, err := GenerateToken(userID)
		if err != nil {
			return "", false, err
		}
		record.Token = token
		changed = true
	}
	if len(tags) > 0 {
		if !slices.Equal(record.AccessTags, tags) {
			record.AccessTags = slices.Clone(tags)
			changed = true
		}
	} else if record.AccessTags != nil {
		record.AccessTags = nil
		changed = true
	}
	return record.Token, changed, nil
}

// Revoke removes userID's token. The user entry goes away once empty.
func (c *Config) Revoke(userID string, force bool) error {
	record, ok := c.Tokens[userID]
	if !ok || record == nil {
		return fmt.Errorf("%w: no user with id %s", appErr.ErrNotFound, userID)
	}
	if record.Token == "" {
		return fmt.Errorf("%w: %s had no token set", appErr.ErrNotFound, userID)
	}
	if !force {
		return fmt.Errorf("%w: force is required to remove a token", appErr.ErrInvalidRequest)
	}
	record.Token = ""
	if len(record.AccessTags) == 0 {
		delete(c.Tokens, userID)
	}
	return nil
}

// LoadConfigFile reads a trust configuration for editing; a missing file
// yields an empty configuration.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	return ParseConfig(data)
}

func SaveConfigFile(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
