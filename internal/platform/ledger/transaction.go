package ledger

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

var ErrMalformedTransaction = errors.New("malformed transaction")

// BuildUnsignedTransfer builds a legacy transaction moving lamports from one
// account to another, with an optional memo instruction. The fee payer
// signature slot is zero-filled.
func BuildUnsignedTransfer(from, to string, lamports uint64, memo, anchor string) ([]byte, error) {
	fromKey, err := parseKey("from", from)
	if err != nil {
		return nil, err
	}
	toKey, err := parseKey("to", to)
	if err != nil {
		return nil, err
	}
	if fromKey.Equals(toKey) {
		return nil, fmt.Errorf("%w: sender and recipient are the same account", ErrMalformedTransaction)
	}
	blockhash, err := solana.HashFromBase58(anchor)
	if err != nil {
		return nil, fmt.Errorf("%w: anchor is not a 32-byte base58 hash", ErrMalformedTransaction)
	}

	instructions := []solana.Instruction{
		system.NewTransferInstruction(lamports, fromKey, toKey).Build(),
	}
	if memo != "" {
		instructions = append(instructions, solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{}, []byte(memo)))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(fromKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx.MarshalBinary()
}

// DecodeTransaction parses raw wire bytes. Every signature slot the header
// requires must be present, signed or not.
func DecodeTransaction(raw []byte) (*solana.Transaction, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedTransaction)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if len(tx.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signature slots", ErrMalformedTransaction)
	}
	if required := int(tx.Message.Header.NumRequiredSignatures); required != len(tx.Signatures) {
		return nil, fmt.Errorf("%w: header expects %d signatures, found %d slots", ErrMalformedTransaction, required, len(tx.Signatures))
	}
	return tx, nil
}

// FeePayer returns the first account key, which must sign in slot 0
func FeePayer(tx *solana.Transaction) (solana.PublicKey, error) {
	if len(tx.Message.AccountKeys) == 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: missing account keys", ErrMalformedTransaction)
	}
	return tx.Message.AccountKeys[0], nil
}

// Signed reports whether every signature slot is filled
func Signed(tx *solana.Transaction) bool {
	for _, sig := range tx.Signatures {
		if sig == (solana.Signature{}) {
			return false
		}
	}
	return len(tx.Signatures) > 0
}

// SignatureOf derives the transaction id, the fee payer signature, from signed wire bytes
func SignatureOf(raw []byte) (string, error) {
	tx, err := DecodeTransaction(raw)
	if err != nil {
		return "", err
	}
	if !Signed(tx) {
		return "", fmt.Errorf("%w: transaction is not signed", ErrMalformedTransaction)
	}
	return tx.Signatures[0].String(), nil
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is not a 32-byte base58 key", ErrMalformedTransaction, field)
	}
	return key, nil
}
