// internal/services/escrow_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/daemon"
)

const (
	escrowRequiredSignatures = 2
	maxConfirmations         = 9999999
)

// Wallet is the daemon surface used for escrow. Transaction contents are
// passed through without interpretation.
type Wallet interface {
	NewAddress(ctx context.Context, opts daemon.AddressOptions) (string, error)
	AddMultisigAddress(ctx context.Context, required int, keys []string, label string) (*daemon.MultisigAddress, error)
	CreateRawTransaction(ctx context.Context, inputs []daemon.Outpoint, outputs map[string]float64) (string, error)
	SignRawTransactionWithWallet(ctx context.Context, hex string) (*daemon.SignedTransaction, error)
	SendRawTransaction(ctx context.Context, hex string) (string, error)
	DecodeRawTransaction(ctx context.Context, hex string) (json.RawMessage, error)
	ListUnspent(ctx context.Context, minConf, maxConf int, addresses []string) ([]daemon.Unspent, error)
}

type EscrowService struct {
	wallet Wallet
}

type CreateMultisigRequest struct {
	PublicKeys []string `json:"public_keys" validate:"required,len=2,dive,required"`
	Label      string   `json:"label"`
}

type BuildTransactionRequest struct {
	Inputs  []daemon.Outpoint  `json:"inputs" validate:"required,min=1,dive"`
	Outputs map[string]float64 `json:"outputs" validate:"required,min=1"`
}

func NewEscrowService(wallet Wallet) *EscrowService {
	return &EscrowService{wallet: wallet}
}

// NewEscrowAddress reserves a fresh wallet address for one escrow.
func (s *EscrowService) NewEscrowAddress(ctx context.Context, label string) (string, error) {
	address, err := s.wallet.NewAddress(ctx, daemon.AddressOptions{Label: label})
	if err != nil {
		return "", fmt.Errorf("failed to get escrow address: %w", err)
	}
	return address, nil
}

// CreateMultisig registers the 2-of-2 address buyer and seller lock funds in.
func (s *EscrowService) CreateMultisig(ctx context.Context, publicKeys []string, label string) (*daemon.MultisigAddress, error) {
	if len(publicKeys) != escrowRequiredSignatures {
		return nil, apperr.Malformed("escrow needs exactly %d public keys, got %d", escrowRequiredSignatures, len(publicKeys))
	}
	res, err := s.wallet.AddMultisigAddress(ctx, escrowRequiredSignatures, publicKeys, label)
	if err != nil {
		return nil, fmt.Errorf("failed to create escrow multisig: %w", err)
	}
	logrus.WithField("address", res.Address).Info("Escrow multisig address created")
	return res, nil
}

func (s *EscrowService) ListUnspent(ctx context.Context, addresses []string) ([]daemon.Unspent, error) {
	return s.wallet.ListUnspent(ctx, 1, maxConfirmations, addresses)
}

// BuildAndSign creates a raw transaction and signs what the wallet can.
func (s *EscrowService) BuildAndSign(ctx context.Context, inputs []daemon.Outpoint, outputs map[string]float64) (*daemon.SignedTransaction, error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, apperr.Malformed("transaction needs inputs and outputs")
	}
	hex, err := s.wallet.CreateRawTransaction(ctx, inputs, outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw transaction: %w", err)
	}
	signed, err := s.wallet.SignRawTransactionWithWallet(ctx, hex)
	if err != nil {
		return nil, fmt.Errorf("failed to sign raw transaction: %w", err)
	}
	return signed, nil
}

func (s *EscrowService) Broadcast(ctx context.Context, hex string) (string, error) {
	txid, err := s.wallet.SendRawTransaction(ctx, hex)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	logrus.WithField("txid", txid).Info("Transaction broadcast")
	return txid, nil
}

func (s *EscrowService) Decode(ctx context.Context, hex string) (json.RawMessage, error) {
	return s.wallet.DecodeRawTransaction(ctx, hex)
}
