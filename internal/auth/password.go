// Package auth: password hashing.
//
// WHY BCRYPT?
// A password hash has to be slow on purpose. General-purpose digests such as
// SHA-256 run billions of times per second on a GPU, so a leaked table of
// them falls to a dictionary attack in an afternoon. bcrypt spends a tunable
// amount of work on every guess instead.
//
// What bcrypt does for us:
//   - a fresh random salt per hash, so equal passwords give different hashes
//   - the salt and cost are stored inside the hash string itself
//   - the work factor ("cost") doubles with every +1
//
// Stored format, exactly as bcrypt.GenerateFromPassword returns it:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost: 2^12 rounds
//	 algorithm version
//
// Accounts created through social login have no password at all; their
// stored hash is empty and Verify rejects every attempt against it.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// It is a struct rather than two free functions so that the cost can be
// injected. Production reads BCRYPT_COST (default 12, roughly a quarter of a
// second per hash on a server core). Tests use cost 4, the minimum bcrypt
// allows, so signing up a fixture user takes milliseconds.
//
// COST TUNING:
// pick the highest cost that keeps one hash around 200-300ms on production
// hardware. Lower makes offline cracking cheap; higher makes every login
// and signup burst pile up on bcrypt.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with bcrypt's minimum
// cost. Use this in tests in other packages.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is self-contained ($2a$<cost>$<salt><hash>) and is stored as is
// in users.password.
//
// bcrypt only looks at the first 72 bytes of its input. Anything longer is
// rejected here, otherwise two long passphrases sharing a 72-byte prefix
// would verify as each other.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// bcrypt re-hashes the plaintext with the salt and cost read from hash and
// compares the results in constant time, so response timing does not leak
// how many bytes matched. A wrong password is ErrPasswordMismatch; any other
// error means the stored hash itself is malformed.
//
// An empty hash (social-only account) never matches.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
