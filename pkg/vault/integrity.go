package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/forest6511/passlocal/pkg/crypto"
)

// IntegrityCheckResult contains the results of a password-free vault check.
type IntegrityCheckResult struct {
	Valid            bool     `json:"valid"`
	FileExists       bool     `json:"file_exists"`
	ContainerValid   bool     `json:"container_valid"`
	SaltValid        bool     `json:"salt_valid"`
	TestValid        bool     `json:"test_valid"`
	DataValid        bool     `json:"data_valid"`
	PermissionsValid bool     `json:"permissions_valid"`
	Errors           []string `json:"errors,omitempty"`
}

func (r *IntegrityCheckResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// CheckIntegrity verifies the structure of the vault file without a password:
//  1. the file exists and parses as a container
//  2. the salt decodes to 16 bytes
//  3. test and data decode to at least a nonce and a GCM tag
//  4. the directory is 0700 and the file 0600
//
// Permission problems mark the vault invalid. Nothing is decrypted.
func (s *Store) CheckIntegrity() (*IntegrityCheckResult, error) {
	result := &IntegrityCheckResult{
		Valid:            true,
		PermissionsValid: true,
	}

	if info, err := os.Stat(s.Dir()); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			result.PermissionsValid = false
			result.fail("vault directory has insecure permissions: %04o (expected 0700)", perm)
		}
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			result.fail("vault file not found: %s", s.path)
			return result, nil
		}
		return nil, ioError("stat vault file", err)
	}
	result.FileExists = true
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		result.PermissionsValid = false
		result.fail("vault file has insecure permissions: %04o (expected 0600)", perm)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, ioError("read vault file", err)
	}
	var c container
	if err := json.Unmarshal(raw, &c); err != nil {
		result.fail("vault file is not a valid container: %v", err)
		return result, nil
	}
	result.ContainerValid = true

	if salt, err := base64.StdEncoding.DecodeString(c.Salt); err != nil {
		result.fail("salt is not valid base64")
	} else if len(salt) != crypto.SaltLength {
		result.fail("salt has incorrect size: expected %d, got %d", crypto.SaltLength, len(salt))
	} else {
		result.SaltValid = true
	}

	result.TestValid = checkSealed(result, "test", c.Test)
	result.DataValid = checkSealed(result, "data", c.Data)
	return result, nil
}

func checkSealed(r *IntegrityCheckResult, field, value string) bool {
	blob, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		r.fail("%s field is not valid base64", field)
		return false
	}
	if need := crypto.NonceLength + crypto.TagLength; len(blob) < need {
		r.fail("%s field is too short: %d bytes, need at least %d", field, len(blob), need)
		return false
	}
	return true
}

// checkAndWarnPermissions logs a warning when the vault directory or file is
// accessible by group or others. It never blocks the operation.
func (s *Store) checkAndWarnPermissions() {
	if info, err := os.Stat(s.Dir()); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			s.log.Warn().Str("path", s.Dir()).Str("perm", fmt.Sprintf("%04o", perm)).Msg("vault directory has insecure permissions (expected 0700)")
		}
	}
	if info, err := os.Stat(s.path); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			s.log.Warn().Str("path", s.path).Str("perm", fmt.Sprintf("%04o", perm)).Msg("vault file has insecure permissions (expected 0600)")
		}
	}
}
