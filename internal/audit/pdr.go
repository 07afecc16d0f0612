// Package audit provides PDR (Process Decision Record) writing for designboard.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/designboard/internal/models"
)

// Sink persists decision records.
type Sink interface {
	WritePDR(ctx context.Context, action, inputsHash, outcome, taskID, actorID, details string) (*models.PDREntry, error)
}

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	sink Sink
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(s Sink) *PDRWriter {
	return &PDRWriter{sink: s}
}

// Record writes a PDR entry for a mutation or a rejected transition.
func (w *PDRWriter) Record(ctx context.Context, action string, inputs any, outcome, taskID, actorID, details string) (*models.PDREntry, error) {
	if w == nil || w.sink == nil {
		return nil, nil
	}
	return w.sink.WritePDR(ctx, action, HashInputs(inputs), outcome, taskID, actorID, details)
}

// HashInputs creates a SHA256 hash of the inputs for reproducibility.
func HashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
