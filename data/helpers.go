package data

import (
	"github.com/google/uuid"
)

// NewTransactionID generates a time ordered identifier for an ingestion transaction.
func NewTransactionID() string {
	return uuid.Must(uuid.NewV7()).String()
}
