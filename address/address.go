// Package address validates and classifies payment recipients. A recipient is
// either a direct account key (G..., 56 characters, CRC16 checksummed) or a
// federation alias of the form name*domain.tld that is resolved elsewhere.
package address

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stellar/go/strkey"

	"github.com/saif727/stellar-payroll-engine/failure"
)

// Kind classifies a validated recipient.
type Kind string

const (
	KindDirectKey Kind = "direct_key"
	KindAlias     Kind = "alias"
)

const (
	// KeyLength is the length of an encoded account ID.
	KeyLength = 56
	// KeyPrefix is the leading character of an encoded account ID.
	KeyPrefix = 'G'
	// AliasSeparator splits the name from the domain of a federation alias.
	AliasSeparator = "*"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var (
	labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	tldPattern   = regexp.MustCompile(`^[a-z]{2,63}$`)
)

// Recipient is a validated destination identifier.
type Recipient struct {
	Kind    Kind
	Address string
	Name    string
	Domain  string
}

// IsAlias reports whether the recipient still needs federation resolution.
func (r Recipient) IsAlias() bool {
	return r.Kind == KindAlias
}

// Validate trims the input and checks it as either a direct key or an alias.
// It performs no I/O.
func Validate(input string) (Recipient, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return Recipient{}, failure.InvalidAddress("empty address")
	}

	if strings.Contains(in, AliasSeparator) {
		return validateAlias(in)
	}

	err := ValidateKey(in)
	if err != nil {
		return Recipient{}, err
	}

	return Recipient{Kind: KindDirectKey, Address: in}, nil
}

// ValidateKey checks that the input is an encoded account ID.
func ValidateKey(key string) error {
	if len(key) != KeyLength {
		return failure.InvalidAddress(fmt.Sprintf("wrong length: %d", len(key)))
	}
	if key[0] != KeyPrefix {
		return failure.InvalidAddress("wrong prefix")
	}
	for _, c := range key {
		if !strings.ContainsRune(base32Alphabet, c) {
			return failure.InvalidAddress(fmt.Sprintf("invalid character: %q", c))
		}
	}
	_, err := strkey.Decode(strkey.VersionByteAccountID, key)
	if err != nil {
		return failure.InvalidAddress("checksum failed")
	}
	return nil
}

func validateAlias(in string) (Recipient, error) {
	name, domain, _ := strings.Cut(in, AliasSeparator)
	if name == "" {
		return Recipient{}, failure.InvalidAddress("missing username")
	}
	domain = strings.ToLower(domain)
	if !validDomain(domain) {
		return Recipient{}, failure.InvalidAddress("invalid domain")
	}

	r := Recipient{
		Kind:    KindAlias,
		Address: name + AliasSeparator + domain,
		Name:    name,
		Domain:  domain,
	}
	return r, nil
}

func validDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !labelPattern.MatchString(label) {
			return false
		}
	}
	return tldPattern.MatchString(labels[len(labels)-1])
}
