package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

// MemoryLedger is an in-process registry for local development and tests.
type MemoryLedger struct {
	mu       sync.Mutex
	nextID   int64
	txCount  uint64
	tokens   map[string]*TokenState
	byHash   map[[32]byte]string
	students map[[32]byte]StudentRecord
	reports  []SemesterReport
	failures []error
}

// NewMemoryLedger returns an empty registry whose first token id is 1.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		nextID:   1,
		tokens:   make(map[string]*TokenState),
		byHash:   make(map[[32]byte]string),
		students: make(map[[32]byte]StudentRecord),
	}
}

// FailNext makes the next write calls fail with err, once per queued error.
func (m *MemoryLedger) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Minted returns the number of tokens created so far.
func (m *MemoryLedger) Minted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// RegisterStudent implements Contract.
func (m *MemoryLedger) RegisterStudent(ctx context.Context, rec StudentRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return "", err
	}
	if !IsAddress(rec.Wallet) {
		return "", appErrors.Clone(appErrors.ErrValidation, "student wallet is not a valid address")
	}
	m.students[rec.StudentID] = rec
	return m.txHash(MethodRegisterStudent), nil
}

// SubmitSemesterReport implements Contract.
func (m *MemoryLedger) SubmitSemesterReport(ctx context.Context, report SemesterReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return "", err
	}
	if _, ok := m.students[report.StudentID]; !ok {
		return "", appErrors.External(ErrReverted, "student not registered on ledger")
	}
	m.reports = append(m.reports, report)
	return m.txHash(MethodSubmitSemesterReport), nil
}

// MintCredential implements Contract. A hash can only be minted once.
func (m *MemoryLedger) MintCredential(ctx context.Context, wallet string, documentHash [32]byte) (*MintResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return nil, err
	}
	if !IsAddress(wallet) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient wallet is not a valid address")
	}
	if _, exists := m.byHash[documentHash]; exists {
		return nil, appErrors.External(ErrReverted, "document hash already minted")
	}
	id := FormatTokenID(big.NewInt(m.nextID))
	m.nextID++
	tx := m.txHash(MethodMintCredential)
	m.tokens[id] = &TokenState{TokenID: id, Owner: wallet, DocumentHash: FormatBytes32(documentHash), MintTxHash: tx}
	m.byHash[documentHash] = id
	return &MintResult{TokenID: id, TxHash: tx}, nil
}

// RevokeCredential implements Contract.
func (m *MemoryLedger) RevokeCredential(ctx context.Context, tokenID, reason string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return "", err
	}
	id, err := NormalizeTokenID(tokenID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token id")
	}
	state, ok := m.tokens[id]
	if !ok {
		return "", appErrors.External(ErrTokenNotFound, "token not on ledger")
	}
	if state.Revoked {
		return "", appErrors.External(ErrReverted, "token already revoked")
	}
	state.Revoked = true
	state.RevokeReason = reason
	return m.txHash(MethodRevokeCredential), nil
}

// GetCredential implements Contract.
func (m *MemoryLedger) GetCredential(ctx context.Context, tokenID string) (*TokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := NormalizeTokenID(tokenID)
	if err != nil {
		return nil, ErrTokenNotFound
	}
	state, ok := m.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	clone := *state
	return &clone, nil
}

// TokenOfHash implements Contract.
func (m *MemoryLedger) TokenOfHash(ctx context.Context, documentHash [32]byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[documentHash]
	if !ok {
		return "", ErrTokenNotFound
	}
	return id, nil
}

func (m *MemoryLedger) popFailure() error {
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}

func (m *MemoryLedger) txHash(method string) string {
	m.txCount++
	return FormatBytes32(Keccak256([]byte(fmt.Sprintf("%s:%d", method, m.txCount))))
}
