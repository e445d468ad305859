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
	"bytes"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passpoll/pkg/polling"
)

// ceremonyUser adapts a polling user to the go-webauthn User interface.
// The WebAuthn user handle is the 16 raw bytes of the user's UUID.
type ceremonyUser struct {
	id          uuid.UUID
	name        string
	credentials []webauthn.Credential
}

var _ webauthn.User = (*ceremonyUser)(nil)

func newCeremonyUser(id uuid.UUID, name string, keys []polling.Passkey) *ceremonyUser {
	creds := make([]webauthn.Credential, len(keys))
	for i := range keys {
		creds[i] = ToWebAuthnCredential(keys[i])
	}
	return &ceremonyUser{id: id, name: name, credentials: creds}
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return u.id[:]
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// ToWebAuthnCredential converts a stored passkey to the go-webauthn type.
func ToWebAuthnCredential(k polling.Passkey) webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, len(k.Transports))
	for i, t := range k.Transports {
		transports[i] = protocol.AuthenticatorTransport(t)
	}
	return webauthn.Credential{
		ID:              k.CredentialID,
		PublicKey:       k.PublicKey,
		AttestationType: k.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    k.Flags.UserPresent,
			UserVerified:   k.Flags.UserVerified,
			BackupEligible: k.Flags.BackupEligible,
			BackupState:    k.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       k.AAGUID,
			SignCount:    k.SignCount,
			CloneWarning: k.CloneWarning,
			Attachment:   protocol.AuthenticatorAttachment(k.Attachment),
		},
	}
}

// FromWebAuthnCredential converts a verified go-webauthn credential to a
// passkey created at now.
func FromWebAuthnCredential(c *webauthn.Credential, now time.Time) polling.Passkey {
	transports := make([]string, len(c.Transport))
	for i, t := range c.Transport {
		transports[i] = string(t)
	}
	return polling.Passkey{
		CredentialID:    bytes.Clone(c.ID),
		PublicKey:       bytes.Clone(c.PublicKey),
		AttestationType: c.AttestationType,
		Transports:      transports,
		AAGUID:          bytes.Clone(c.Authenticator.AAGUID),
		SignCount:       c.Authenticator.SignCount,
		CloneWarning:    c.Authenticator.CloneWarning,
		Attachment:      string(c.Authenticator.Attachment),
		Flags: polling.PasskeyFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		CreatedAt: now.UTC(),
	}
}

// updatePasskey applies the result of a verified assertion to k when the
// credential ids match. It reports whether k was the asserted credential.
func updatePasskey(k *polling.Passkey, c *webauthn.Credential, now time.Time) bool {
	if !bytes.Equal(k.CredentialID, c.ID) {
		return false
	}
	k.SignCount = c.Authenticator.SignCount
	k.CloneWarning = c.Authenticator.CloneWarning
	k.Flags.UserPresent = c.Flags.UserPresent
	k.Flags.UserVerified = c.Flags.UserVerified
	k.Flags.BackupState = c.Flags.BackupState
	k.LastUsedAt = now.UTC()
	return true
}
