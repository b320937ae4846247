package user

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Credential is the sealed set of authentication schemes. A user's role
// decides which scheme is authoritative; only Service.Authenticate dispatches
// on the concrete variant.
type Credential interface {
	// Verify compares a candidate secret against the stored material.
	Verify(secret string) error

	credential() // seals the interface
}

// PasswordCredential is the standard hashed-password scheme used by admins,
// teachers and parents.
type PasswordCredential struct {
	Hash []byte
}

func (c PasswordCredential) credential() {}

func (c PasswordCredential) Verify(secret string) error {
	if len(c.Hash) == 0 {
		return ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(c.Hash, []byte(secret)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}

// SurnameCredential is the student scheme: the candidate secret matches the
// stored paternal surname token after trimming and case-folding.
type SurnameCredential struct {
	Token string
}

func (c SurnameCredential) credential() {}

func (c SurnameCredential) Verify(secret string) error {
	if c.Token == "" {
		return ErrInvalidCredential
	}
	candidate := core.CleanString(secret, true /* lower */)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(c.Token)) == 0 {
		return ErrInvalidCredential
	}
	return nil
}

// Credential returns the authentication scheme authoritative for this user.
func (u *User) Credential() Credential {
	if u.IsStudent() {
		return SurnameCredential{Token: u.SurnameToken}
	}
	return PasswordCredential{Hash: u.PasswordHash}
}
