// Path: pkg/utils/utils.go
package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AccountNumberDigits is the length of an account number without dashes.
const AccountNumberDigits = 16

// GenerateAccountNumber returns 16 random digits in four dash-separated groups.
func GenerateAccountNumber() (string, error) {
	var b strings.Builder
	limit := big.NewInt(10)
	for i := 0; i < AccountNumberDigits; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate account number: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// CreateHMAC creates an HMAC-SHA256 hash of the given data.
func CreateHMAC(data string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// CalculateBalanceHash binds a balance to its account. Balances are hashed at
// two decimal places so numerically equal values hash the same.
func CalculateBalanceHash(balance decimal.Decimal, accountID uint, secretKey string) string {
	return CreateHMAC(fmt.Sprintf("%s:%d", balance.StringFixed(2), accountID), []byte(secretKey))
}

// VerifyBalanceHash reports whether hash matches balance for accountID.
func VerifyBalanceHash(balance decimal.Decimal, accountID uint, hash, secretKey string) bool {
	expected := CalculateBalanceHash(balance, accountID, secretKey)
	return hmac.Equal([]byte(expected), []byte(hash))
}
