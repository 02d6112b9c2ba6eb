package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters.
type Params struct {
	// Memory is the memory cost in KiB.
	Memory uint32
	// Time is the number of iterations.
	Time uint32
	// Threads is the degree of parallelism.
	Threads uint8
}

// DefaultParams are the Argon2id reference defaults (m=19456 KiB, t=2, p=1).
// Existing vault files carry no parameters, so these must not change.
var DefaultParams = Params{
	Memory:  19 * 1024,
	Time:    2,
	Threads: 1,
}

// Validate reports whether p can be used for key derivation.
func (p Params) Validate() error {
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return fmt.Errorf("%w: zero cost parameter", ErrKeyDerivationFailed)
	}
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory below 8*threads KiB", ErrKeyDerivationFailed)
	}
	return nil
}

// DeriveKey derives a 256-bit key from a password using Argon2id with
// DefaultParams. The same password and salt always yield the same key.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, DefaultParams.Time, DefaultParams.Memory, DefaultParams.Threads, KeyLength)
}

// DeriveKeyWithParams is DeriveKey with explicit cost parameters.
// It never enforces password policy; an empty password is accepted.
func DeriveKeyWithParams(password, salt []byte, p Params) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrKeyDerivationFailed)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, KeyLength), nil
}
