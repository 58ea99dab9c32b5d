package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidScope         = errors.New("organisation id is required")
	ErrInvalidAccountFilter = errors.New("invalid account filter")
)

const (
	MaxAccountCodes      = 50
	MaxAccountCodeLength = 64

	// AllAccountsSignature identifies the unfiltered view.
	AllAccountsSignature = "all"
)

// Scope is the tenant boundary every operation runs inside.
// A nil LocationID means organisation-wide.
type Scope struct {
	OrganisationID uuid.UUID  `json:"organisation_id" bson:"organisation_id"`
	LocationID     *uuid.UUID `json:"location_id,omitempty" bson:"location_id,omitempty"`
}

// NewScope builds a validated scope. A location pointing at uuid.Nil is treated as absent.
func NewScope(organisationID uuid.UUID, locationID *uuid.UUID) (Scope, error) {
	s := Scope{OrganisationID: organisationID}
	if locationID != nil && *locationID != uuid.Nil {
		loc := *locationID
		s.LocationID = &loc
	}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// Validate rejects scopes without an organisation
func (s Scope) Validate() error {
	if s.OrganisationID == uuid.Nil {
		return ErrInvalidScope
	}
	return nil
}

// HasLocation reports whether the scope is narrowed to one location
func (s Scope) HasLocation() bool {
	return s.LocationID != nil
}

// Key returns a stable textual form used for cache keys and lock names
func (s Scope) Key() string {
	if s.LocationID == nil {
		return s.OrganisationID.String() + ":*"
	}
	return s.OrganisationID.String() + ":" + s.LocationID.String()
}

func (s Scope) String() string {
	return s.Key()
}

// AccountFilter is a normalised set of account codes. The zero value matches every account.
type AccountFilter struct {
	codes []string
}

// NewAccountFilter trims, de-duplicates and sorts codes.
func NewAccountFilter(codes []string) (AccountFilter, error) {
	if len(codes) == 0 {
		return AccountFilter{}, nil
	}

	seen := make(map[string]struct{}, len(codes))
	normalised := make([]string, 0, len(codes))
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			return AccountFilter{}, fmt.Errorf("%w: empty account code", ErrInvalidAccountFilter)
		}
		if len(code) > MaxAccountCodeLength {
			return AccountFilter{}, fmt.Errorf("%w: account code longer than %d characters", ErrInvalidAccountFilter, MaxAccountCodeLength)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		normalised = append(normalised, code)
	}

	if len(normalised) > MaxAccountCodes {
		return AccountFilter{}, fmt.Errorf("%w: more than %d account codes", ErrInvalidAccountFilter, MaxAccountCodes)
	}

	sort.Strings(normalised)
	return AccountFilter{codes: normalised}, nil
}

// ParseAccountFilter parses a comma separated list. An empty string is the unfiltered view.
func ParseAccountFilter(raw string) (AccountFilter, error) {
	if strings.TrimSpace(raw) == "" {
		return AccountFilter{}, nil
	}
	return NewAccountFilter(strings.Split(raw, ","))
}

// Codes returns a copy of the normalised codes
func (f AccountFilter) Codes() []string {
	out := make([]string, len(f.codes))
	copy(out, f.codes)
	return out
}

func (f AccountFilter) IsEmpty() bool {
	return len(f.codes) == 0
}

// Signature is the hash stored alongside snapshot rows for this filter.
func (f AccountFilter) Signature() string {
	if f.IsEmpty() {
		return AllAccountsSignature
	}
	sum := sha256.Sum256([]byte(strings.Join(f.codes, ",")))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether a line with the given account code passes the filter
func (f AccountFilter) Matches(accountCode string) bool {
	if f.IsEmpty() {
		return true
	}
	code := strings.TrimSpace(accountCode)
	i := sort.SearchStrings(f.codes, code)
	return i < len(f.codes) && f.codes[i] == code
}
