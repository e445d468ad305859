// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passpoll.
//
// go-passpoll is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package webauthn

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	// DefaultTimeout is the ceremony timeout advertised to authenticators.
	DefaultTimeout = 5 * time.Minute

	// DefaultChallengeTTL is how long an unfinished ceremony is kept.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultCleanupInterval is how often expired ceremonies are swept.
	DefaultCleanupInterval = time.Minute
)

var (
	userVerifications = map[string]protocol.UserVerificationRequirement{
		"required":    protocol.VerificationRequired,
		"preferred":   protocol.VerificationPreferred,
		"discouraged": protocol.VerificationDiscouraged,
	}
	attestationPreferences = map[string]protocol.ConveyancePreference{
		"none":       protocol.PreferNoAttestation,
		"indirect":   protocol.PreferIndirectAttestation,
		"direct":     protocol.PreferDirectAttestation,
		"enterprise": protocol.PreferEnterpriseAttestation,
	}
	residentKeys = map[string]protocol.ResidentKeyRequirement{
		"required":    protocol.ResidentKeyRequirementRequired,
		"preferred":   protocol.ResidentKeyRequirementPreferred,
		"discouraged": protocol.ResidentKeyRequirementDiscouraged,
	}
	attachments = map[string]protocol.AuthenticatorAttachment{
		"platform":       protocol.Platform,
		"cross-platform": protocol.CrossPlatform,
	}
)

// Config configures the ceremony engine.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	RPID string `yaml:"id" json:"id" mapstructure:"id"`

	// RPDisplayName is shown by authenticators. Defaults to RPID.
	RPDisplayName string `yaml:"display_name" json:"display_name" mapstructure:"display_name"`

	// RPOrigins are the allowed origins, e.g. "https://polls.example.com".
	RPOrigins []string `yaml:"origins" json:"origins" mapstructure:"origins"`

	// Timeout is the ceremony timeout sent to the client.
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	// ChallengeTTL is how long a started ceremony may wait for its finish call.
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl" mapstructure:"challenge_ttl"`

	// CleanupInterval is how often expired ceremonies are swept.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" mapstructure:"cleanup_interval"`

	// UserVerification is "required", "preferred" or "discouraged".
	UserVerification string `yaml:"user_verification" json:"user_verification" mapstructure:"user_verification"`

	// AttestationPreference is "none", "indirect", "direct" or "enterprise".
	AttestationPreference string `yaml:"attestation" json:"attestation" mapstructure:"attestation"`

	// ResidentKeyRequirement is "required", "preferred" or "discouraged".
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key" mapstructure:"resident_key"`

	// AuthenticatorAttachment is "platform", "cross-platform" or empty for any.
	AuthenticatorAttachment string `yaml:"authenticator_attachment" json:"authenticator_attachment" mapstructure:"authenticator_attachment"`

	// Debug enables go-webauthn debug output.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.RPDisplayName == "" {
		c.RPDisplayName = c.RPID
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = DefaultChallengeTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
}

// Validate returns an error describing the first invalid field.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	for _, origin := range c.RPOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid origin: %q", origin)
		}
	}
	if c.ChallengeTTL < 0 || c.Timeout < 0 || c.CleanupInterval < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if _, ok := userVerifications[c.UserVerification]; c.UserVerification != "" && !ok {
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}
	if _, ok := attestationPreferences[c.AttestationPreference]; c.AttestationPreference != "" && !ok {
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}
	if _, ok := residentKeys[c.ResidentKeyRequirement]; c.ResidentKeyRequirement != "" && !ok {
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKeyRequirement)
	}
	if _, ok := attachments[c.AuthenticatorAttachment]; c.AuthenticatorAttachment != "" && !ok {
		return fmt.Errorf("invalid authenticator attachment: %s", c.AuthenticatorAttachment)
	}
	return nil
}

// ToWebAuthnConfig converts the Config to the go-webauthn library's configuration.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:                  c.RPID,
		RPDisplayName:         c.RPDisplayName,
		RPOrigins:             c.RPOrigins,
		Debug:                 c.Debug,
		AttestationPreference: attestationPreferences[c.AttestationPreference],
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			UserVerification:        userVerifications[c.UserVerification],
			ResidentKey:             residentKeys[c.ResidentKeyRequirement],
			AuthenticatorAttachment: attachments[c.AuthenticatorAttachment],
		},
	}

	if c.Timeout > 0 {
		timeout := webauthn.TimeoutConfig{
			Enforce:    true,
			Timeout:    c.Timeout,
			TimeoutUVD: c.Timeout,
		}
		cfg.Timeouts = webauthn.TimeoutsConfig{
			Login:        timeout,
			Registration: timeout,
		}
	}

	return cfg
}
