package services

import (
	"crypto/rand"
	"math/big"

	"github.com/carrymarket/backend/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// Alphabet excludes lookalike characters (0/O, 1/I/L) so codes survive
// being read over the phone.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const codeLength = 8

// GenerateConfirmationCode returns the plaintext code and its bcrypt hash.
// Only the hash is persisted; the plaintext goes to the sender once.
func GenerateConfirmationCode() (code string, hash string, err error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	code = string(buf)

	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return code, string(h), nil
}

// VerifyConfirmationCode checks a presented code against the stored hash.
func VerifyConfirmationCode(hash, code string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return apperr.ErrInvalidConfirmationCode
	}
	return nil
}
