// Package store journals operation receipts.
//
// A receipt records that an operation was attempted, how it ended, and
// whether an acknowledgment was attached. The acknowledgment text itself is
// never part of a receipt.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// ErrNotFound is returned when a receipt does not exist.
var ErrNotFound = errors.New("receipt not found")

// Receipt is one journaled execution.
type Receipt struct {
	ReceiptID        string                  `json:"receipt_id"`
	Kind             contracts.OperationKind `json:"kind"`
	SectorID         string                  `json:"sector_id"`
	PeriodStart      string                  `json:"period_start"`
	PeriodEnd        string                  `json:"period_end"`
	Outcome          string                  `json:"outcome"`
	Mode             string                  `json:"mode,omitempty"`
	AckAttached      bool                    `json:"ack_attached"`
	WarningCodes     []string                `json:"warning_codes"`
	AssignmentsCount int                     `json:"assignments_count"`
	ViolationsCount  int                     `json:"violations_count"`
	Message          string                  `json:"message,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	ContentHash      string                  `json:"content_hash,omitempty"`
}

// NewReceipt starts a receipt for kind/req stamped at now.
func NewReceipt(kind contracts.OperationKind, req contracts.ScaleRequest, now time.Time) *Receipt {
	return &Receipt{
		ReceiptID:    uuid.New().String(),
		Kind:         kind,
		SectorID:     req.Sector(),
		PeriodStart:  req.Period.StartString(),
		PeriodEnd:    req.Period.EndString(),
		WarningCodes: []string{},
		CreatedAt:    now.UTC().Truncate(time.Microsecond),
	}
}

// Hash computes the canonical content hash, excluding ContentHash itself.
func (r *Receipt) Hash() (string, error) {
	c := *r
	c.ContentHash = ""
	if c.WarningCodes == nil {
		c.WarningCodes = []string{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("receipt encode: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("receipt canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Seal sets ContentHash.
func (r *Receipt) Seal() error {
	h, err := r.Hash()
	if err != nil {
		return err
	}
	r.ContentHash = h
	return nil
}

// Verify reports whether ContentHash matches the receipt content.
func (r *Receipt) Verify() bool {
	h, err := r.Hash()
	return err == nil && h == r.ContentHash
}

// Journal persists receipts.
type Journal interface {
	Append(ctx context.Context, r *Receipt) error
	List(ctx context.Context, limit int) ([]*Receipt, error)
	Get(ctx context.Context, receiptID string) (*Receipt, error)
	Close() error
}

// MemoryJournal keeps receipts in memory.
type MemoryJournal struct {
	mu       sync.Mutex
	receipts []*Receipt
}

func NewMemoryJournal() *MemoryJournal { return &MemoryJournal{} }

func (m *MemoryJournal) Append(_ context.Context, r *Receipt) error {
	if r.ContentHash == "" {
		if err := r.Seal(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.receipts = append(m.receipts, &c)
	return nil
}

// List returns the newest receipts first.
func (m *MemoryJournal) List(_ context.Context, limit int) ([]*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Receipt
	for i := len(m.receipts) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		c := *m.receipts[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryJournal) Get(_ context.Context, receiptID string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receipts {
		if r.ReceiptID == receiptID {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryJournal) Close() error { return nil }
