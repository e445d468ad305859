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

package polling

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a poll.
type Status string

const (
	// StatusActive polls accept votes.
	StatusActive Status = "Active"
	// StatusClosed polls were closed by their owner.
	StatusClosed Status = "Closed"
	// StatusExpired polls passed their expiration date.
	StatusExpired Status = "Expired"
)

// User is a registered voter.
type User struct {
	// UserID is a string-encoded UUID assigned at registration.
	UserID string `json:"user_id" bson:"user_id"`

	// UserName is the unique handle chosen at registration.
	UserName string `json:"user_name" bson:"user_name"`

	// Keys are the passkeys registered for this user.
	Keys []Passkey `json:"keys" bson:"keys"`

	// OwnedPolls lists the polls this user created.
	OwnedPolls []int64 `json:"owned_polls" bson:"owned_polls"`

	// PollsVoted records where the user has voted, at most once per poll.
	PollsVoted []Vote `json:"polls_voted" bson:"polls_voted"`
}

// Passkey is a WebAuthn credential stored for a user.
type Passkey struct {
	CredentialID    []byte       `json:"credential_id" bson:"credential_id"`
	PublicKey       []byte       `json:"public_key" bson:"public_key"`
	AttestationType string       `json:"attestation_type" bson:"attestation_type"`
	Transports      []string     `json:"transports,omitempty" bson:"transports,omitempty"`
	AAGUID          []byte       `json:"aaguid,omitempty" bson:"aaguid,omitempty"`
	SignCount       uint32       `json:"sign_count" bson:"sign_count"`
	CloneWarning    bool         `json:"clone_warning" bson:"clone_warning"`
	Attachment      string       `json:"attachment,omitempty" bson:"attachment,omitempty"`
	Flags           PasskeyFlags `json:"flags" bson:"flags"`
	CreatedAt       time.Time    `json:"created_at" bson:"created_at"`
	LastUsedAt      time.Time    `json:"last_used_at,omitempty" bson:"last_used_at,omitempty"`
}

// PasskeyFlags mirrors the authenticator data flags captured for a passkey.
type PasskeyFlags struct {
	UserPresent    bool `json:"user_present" bson:"user_present"`
	UserVerified   bool `json:"user_verified" bson:"user_verified"`
	BackupEligible bool `json:"backup_eligible" bson:"backup_eligible"`
	BackupState    bool `json:"backup_state" bson:"backup_state"`
}

// Vote is an entry in a user's vote history.
type Vote struct {
	PollID   int64 `json:"poll_id" bson:"poll_id"`
	OptionID int64 `json:"option_id" bson:"option_id"`
}

// PollOption is a single choice of a poll with its tally.
type PollOption struct {
	OptionID int64  `json:"option_id" bson:"option_id"`
	Text     string `json:"text" bson:"text"`
	Votes    int32  `json:"votes" bson:"votes"`
}

// Poll is a question with a fixed set of options.
type Poll struct {
	PollID         int64        `json:"poll_id" bson:"poll_id"`
	Title          string       `json:"title" bson:"title"`
	Description    string       `json:"description" bson:"description"`
	Creator        string       `json:"creator" bson:"creator"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
	ExpirationDate *time.Time   `json:"expiration_date,omitempty" bson:"expiration_date,omitempty"`
	Status         Status       `json:"status" bson:"status"`
	Options        []PollOption `json:"options" bson:"options"`
	UsersVoted     []string     `json:"users_voted" bson:"users_voted"`
}

// OptionInput is the client-provided text of a new option.
type OptionInput struct {
	Text string `json:"text"`
}

// PollInput is the client-provided description of a new poll.
type PollInput struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Creator        string        `json:"creator"`
	ExpirationDate *time.Time    `json:"expiration_date,omitempty"`
	Options        []OptionInput `json:"options"`
}

// VoteRequest asks to record username's vote for option_id on poll_id.
type VoteRequest struct {
	PollID   int64  `json:"poll_id"`
	OptionID int64  `json:"option_id"`
	Username string `json:"username"`
}

// PollOp is an owner-initiated state change on a poll.
type PollOp string

const (
	// OpReset zeroes every counter and clears the voter list.
	OpReset PollOp = "reset"
	// OpClose moves the poll to Closed.
	OpClose PollOp = "close"
)

// NewPoll builds the initial state of a poll from its input.
// Option ids are assigned as 1-based indexes.
func NewPoll(id int64, input PollInput, now time.Time) *Poll {
	options := make([]PollOption, len(input.Options))
	for i, opt := range input.Options {
		options[i] = PollOption{
			OptionID: int64(i + 1),
			Text:     opt.Text,
		}
	}
	var expires *time.Time
	if input.ExpirationDate != nil {
		t := input.ExpirationDate.UTC()
		expires = &t
	}
	return &Poll{
		PollID:         id,
		Title:          input.Title,
		Description:    input.Description,
		Creator:        input.Creator,
		CreatedAt:      now.UTC(),
		ExpirationDate: expires,
		Status:         StatusActive,
		Options:        options,
		UsersVoted:     []string{},
	}
}

// HasOption reports whether optionID names one of the poll's options.
func (p *Poll) HasOption(optionID int64) bool {
	for _, opt := range p.Options {
		if opt.OptionID == optionID {
			return true
		}
	}
	return false
}

// HasVoter reports whether username already voted on the poll.
func (p *Poll) HasVoter(username string) bool {
	return slices.Contains(p.UsersVoted, username)
}

// TotalVotes returns the sum of all option counters.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, opt := range p.Options {
		total += int(opt.Votes)
	}
	return total
}

// AcceptsVotes reports whether the poll is Active and not past its expiration at now.
func (p *Poll) AcceptsVotes(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	return p.ExpirationDate == nil || p.ExpirationDate.After(now)
}

// Clone returns a deep copy of the poll.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	c := *p
	c.Options = slices.Clone(p.Options)
	c.UsersVoted = slices.Clone(p.UsersVoted)
	if c.UsersVoted == nil {
		c.UsersVoted = []string{}
	}
	if p.ExpirationDate != nil {
		t := *p.ExpirationDate
		c.ExpirationDate = &t
	}
	return &c
}

// HasVotedOn reports whether the user's history contains pollID.
func (u *User) HasVotedOn(pollID int64) bool {
	for _, v := range u.PollsVoted {
		if v.PollID == pollID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Keys = make([]Passkey, len(u.Keys))
	for i, k := range u.Keys {
		c.Keys[i] = k.Clone()
	}
	c.OwnedPolls = slices.Clone(u.OwnedPolls)
	if c.OwnedPolls == nil {
		c.OwnedPolls = []int64{}
	}
	c.PollsVoted = slices.Clone(u.PollsVoted)
	if c.PollsVoted == nil {
		c.PollsVoted = []Vote{}
	}
	return &c
}

// Clone returns a deep copy of the passkey.
func (k Passkey) Clone() Passkey {
	k.CredentialID = slices.Clone(k.CredentialID)
	k.PublicKey = slices.Clone(k.PublicKey)
	k.AAGUID = slices.Clone(k.AAGUID)
	k.Transports = slices.Clone(k.Transports)
	return k
}
