package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/pkg/canonical"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

// GatewayConfig configures the HTTP transaction gateway.
type GatewayConfig struct {
	BaseURL         string
	ContractAddress string
	ChainID         int64
	Timeout         time.Duration
}

// GatewayClient submits signed contract calls to a ledger relay over HTTP.
// It keeps a local nonce; callers serialize writes, so the mutex only guards
// against misuse.
type GatewayClient struct {
	cfg    GatewayConfig
	http   *http.Client
	signer Signer
	logger *zap.Logger

	mu        sync.Mutex
	nonce     uint64
	nonceInit bool
}

// TxEnvelope is the signed body of a write call.
type TxEnvelope struct {
	Contract  string                 `json:"contract"`
	ChainID   int64                  `json:"chainId"`
	Method    string                 `json:"method"`
	Selector  string                 `json:"selector"`
	Args      map[string]interface{} `json:"args"`
	Nonce     uint64                 `json:"nonce"`
	From      string                 `json:"from"`
	Signature string                 `json:"signature,omitempty"`
}

type callRequest struct {
	Contract string                 `json:"contract"`
	Method   string                 `json:"method"`
	Selector string                 `json:"selector"`
	Args     map[string]interface{} `json:"args"`
}

type callResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// NewGatewayClient builds a client; httpClient may be nil.
func NewGatewayClient(cfg GatewayConfig, signer Signer, httpClient *http.Client, logger *zap.Logger) *GatewayClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GatewayClient{cfg: cfg, http: httpClient, signer: signer, logger: logger}
}

// RegisterStudent implements Contract.
func (c *GatewayClient) RegisterStudent(ctx context.Context, rec StudentRecord) (string, error) {
	if !IsAddress(rec.Wallet) {
		return "", appErrors.Clone(appErrors.ErrValidation, "student wallet is not a valid address")
	}
	receipt, err := c.transact(ctx, MethodRegisterStudent, map[string]interface{}{
		"studentId":      FormatBytes32(rec.StudentID),
		"wallet":         rec.Wallet,
		"programId":      FormatBytes32(rec.ProgramID),
		"enrollmentYear": rec.EnrollmentYear,
	})
	if err != nil {
		return "", err
	}
	return receipt.TxHash, nil
}

// SubmitSemesterReport implements Contract.
func (c *GatewayClient) SubmitSemesterReport(ctx context.Context, report SemesterReport) (string, error) {
	receipt, err := c.transact(ctx, MethodSubmitSemesterReport, map[string]interface{}{
		"studentId":    FormatBytes32(report.StudentID),
		"semester":     report.Semester,
		"academicYear": report.AcademicYear,
		"gpa":          strconv.FormatUint(report.GPA, 10),
		"credits":      strconv.FormatUint(report.Credits, 10),
		"reportHash":   FormatBytes32(report.ReportHash),
	})
	if err != nil {
		return "", err
	}
	return receipt.TxHash, nil
}

// MintCredential implements Contract.
func (c *GatewayClient) MintCredential(ctx context.Context, wallet string, documentHash [32]byte) (*MintResult, error) {
	if !IsAddress(wallet) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient wallet is not a valid address")
	}
	receipt, err := c.transact(ctx, MethodMintCredential, map[string]interface{}{
		"to":           wallet,
		"documentHash": FormatBytes32(documentHash),
	})
	if err != nil {
		return nil, err
	}
	tokenID, err := TokenIDFromReceipt(receipt)
	if err != nil {
		return nil, appErrors.External(err, "mint receipt unreadable")
	}
	return &MintResult{TokenID: tokenID, TxHash: receipt.TxHash}, nil
}

// RevokeCredential implements Contract.
func (c *GatewayClient) RevokeCredential(ctx context.Context, tokenID, reason string) (string, error) {
	id, err := ParseTokenID(tokenID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token id")
	}
	receipt, err := c.transact(ctx, MethodRevokeCredential, map[string]interface{}{
		"tokenId": FormatTokenID(id),
		"reason":  reason,
	})
	if err != nil {
		return "", err
	}
	return receipt.TxHash, nil
}

// GetCredential implements Contract.
func (c *GatewayClient) GetCredential(ctx context.Context, tokenID string) (*TokenState, error) {
	id, err := ParseTokenID(tokenID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token id")
	}
	var state TokenState
	if err := c.call(ctx, MethodGetCredential, map[string]interface{}{"tokenId": FormatTokenID(id)}, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// TokenOfHash implements Contract.
func (c *GatewayClient) TokenOfHash(ctx context.Context, documentHash [32]byte) (string, error) {
	var out struct {
		TokenID string `json:"tokenId"`
	}
	if err := c.call(ctx, MethodTokenOfHash, map[string]interface{}{"documentHash": FormatBytes32(documentHash)}, &out); err != nil {
		return "", err
	}
	if out.TokenID == "" || out.TokenID == "0" {
		return "", ErrTokenNotFound
	}
	return NormalizeTokenID(out.TokenID)
}

func (c *GatewayClient) transact(ctx context.Context, method string, args map[string]interface{}) (*Receipt, error) {
	if c.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "ledger signer not configured")
	}
	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return nil, err
	}
	env := TxEnvelope{
		Contract: c.cfg.ContractAddress,
		ChainID:  c.cfg.ChainID,
		Method:   method,
		Selector: Selector(method),
		Args:     args,
		Nonce:    nonce,
		From:     c.signer.Address(),
	}
	digest, err := EnvelopeDigest(env)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode ledger call")
	}
	sig, err := c.signer.Sign(digest)
	if err != nil {
		return nil, appErrors.External(err, "ledger signer failed")
	}
	env.Signature = "0x" + hex.EncodeToString(sig)

	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", env, &receipt); err != nil {
		c.resetNonce()
		return nil, err
	}
	if !receipt.Succeeded() {
		c.logger.Warn("ledger transaction reverted",
			zap.String("method", method),
			zap.String("tx_hash", receipt.TxHash),
			zap.String("reason", receipt.Error),
		)
		return nil, appErrors.External(fmt.Errorf("%w: %s", ErrReverted, receipt.Error), "ledger rejected "+method)
	}
	c.logger.Info("ledger transaction confirmed",
		zap.String("method", method),
		zap.String("tx_hash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber),
	)
	return &receipt, nil
}

func (c *GatewayClient) call(ctx context.Context, method string, args map[string]interface{}, dest interface{}) error {
	var resp callResponse
	req := callRequest{Contract: c.cfg.ContractAddress, Method: method, Selector: Selector(method), Args: args}
	if err := c.do(ctx, http.MethodPost, "/v1/calls", req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		if strings.Contains(strings.ToLower(resp.Error), "nonexistent token") {
			return ErrTokenNotFound
		}
		return appErrors.External(errors.New(resp.Error), "ledger call failed")
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		return appErrors.External(err, "ledger call returned malformed result")
	}
	return nil
}

func (c *GatewayClient) nextNonce(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.nonceInit {
		var out struct {
			Nonce uint64 `json:"nonce"`
		}
		if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+c.signer.Address()+"/nonce", nil, &out); err != nil {
			return 0, err
		}
		c.nonce = out.Nonce
		c.nonceInit = true
	}
	n := c.nonce
	c.nonce++
	return n, nil
}

// resetNonce forces a refetch after a failed submission, since the gateway may
// or may not have consumed the nonce.
func (c *GatewayClient) resetNonce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonceInit = false
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return appErrors.Internal(err, "failed to encode ledger request")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return appErrors.Internal(err, "failed to build ledger request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.External(err, "ledger gateway unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return appErrors.External(err, "failed to read ledger response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return appErrors.External(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), "ledger gateway error")
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return appErrors.External(err, "ledger gateway returned malformed body")
	}
	return nil
}

// EnvelopeDigest hashes the canonical form of an unsigned envelope.
func EnvelopeDigest(env TxEnvelope) ([]byte, error) {
	env.Signature = ""
	data, err := canonical.Marshal(env)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}
