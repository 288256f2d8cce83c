package ledger

import (
	"fmt"
	"strings"
)

// Receipt statuses reported by the gateway.
const (
	ReceiptStatusSuccess  = "success"
	ReceiptStatusReverted = "reverted"
)

// Log is a decoded contract event.
type Log struct {
	Event string            `json:"event"`
	Args  map[string]string `json:"args"`
}

// Receipt is the confirmation of a submitted transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Status      string `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	Logs        []Log  `json:"logs"`
	Error       string `json:"error,omitempty"`
}

// Succeeded reports whether the transaction was accepted by the contract.
func (r *Receipt) Succeeded() bool {
	return r != nil && strings.EqualFold(r.Status, ReceiptStatusSuccess)
}

// TokenIDFromReceipt extracts the minted token identifier from a mint receipt.
func TokenIDFromReceipt(r *Receipt) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil receipt")
	}
	if !r.Succeeded() {
		return "", fmt.Errorf("%w: %s", ErrReverted, r.Error)
	}
	for _, log := range r.Logs {
		if log.Event != EventCredentialMinted {
			continue
		}
		raw, ok := log.Args["tokenId"]
		if !ok {
			return "", fmt.Errorf("receipt %s: %s event without tokenId", r.TxHash, EventCredentialMinted)
		}
		return NormalizeTokenID(raw)
	}
	return "", fmt.Errorf("receipt %s has no %s event", r.TxHash, EventCredentialMinted)
}
