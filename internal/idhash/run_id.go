package idhash

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// runIDTimeLayout orders run IDs chronologically when sorted as strings.
const runIDTimeLayout = "20060102150405"

// ComputeRunID mints a run identifier from a timestamp and a random suffix.
// Format: run-<UTC yyyymmddHHMMSS>-<uuid prefix, 8 chars>.
func ComputeRunID(now time.Time) string {
	return fmt.Sprintf("run-%s-%s", now.UTC().Format(runIDTimeLayout), uuid.NewString()[:8])
}
