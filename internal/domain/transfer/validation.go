package transfer

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

const (
	// LamportsPerSOL is the number of smallest ledger units in one display unit
	LamportsPerSOL uint64 = 1_000_000_000

	// MaxAmount caps a single transfer at 1,000,000 SOL
	MaxAmount = 1_000_000 * LamportsPerSOL

	// DefaultFee is the flat fee estimate used when none is configured (0.000005 SOL)
	DefaultFee uint64 = 5000

	MaxMemoLength = 100

	amountDecimals = 9
)

var (
	memoPattern    = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?]*$`)
	addressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	// plain decimal notation only: no sign, no exponent
	amountPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

	maxAmountDecimal = decimal.NewFromBigInt(new(big.Int).SetUint64(MaxAmount), 0)
)

// ValidateAmount checks that amount is positive and below MaxAmount
func ValidateAmount(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return fmt.Errorf("%w: %s exceeds maximum of %s", ErrInvalidAmount, FormatAmount(amount), FormatAmount(MaxAmount))
	}
	return nil
}

// ValidateMemo checks memo length and character set. An empty memo is valid.
func ValidateMemo(memo string) error {
	if utf8.RuneCountInString(memo) > MaxMemoLength {
		return ErrInvalidMemo
	}
	if !memoPattern.MatchString(memo) {
		return ErrInvalidMemo
	}
	return nil
}

// ValidateAddress checks that address is a base58 encoded 32-byte public key
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return ErrInvalidAddress
	}
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return ErrInvalidAddress
	}
	return nil
}

// CheckBalance verifies that amount plus fee is covered by balance
func CheckBalance(amount, fee, balance uint64) error {
	if fee > balance || amount > balance-fee {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, FormatAmount(amount+fee), FormatAmount(balance))
	}
	return nil
}

// ParseAmount converts a decimal display amount ("1.5") into lamports
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, s)
	}
	if d.Exponent() < -amountDecimals {
		return 0, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, amountDecimals)
	}

	lamports := d.Shift(amountDecimals)
	if lamports.GreaterThan(maxAmountDecimal) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}

	amount := lamports.BigInt().Uint64()
	if err := ValidateAmount(amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// FormatAmount renders lamports as a decimal display amount without trailing zeros
func FormatAmount(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -amountDecimals).String()
}
