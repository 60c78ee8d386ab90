// Package audit keeps the append-only, hash-chained ledger of workflow
// transitions. Each entry's fingerprint covers its own content plus the
// previous entry's fingerprint, one chain per distribution, so editing any
// historical entry breaks verification from that point on.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"relieflink-backend/internal/events"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestChainID groups request-level actions that have no distribution.
var RequestChainID = primitive.ObjectID{}

type Ledger struct {
	store store.Store
	log   *logrus.Entry
}

func NewLedger(s store.Store) *Ledger {
	return &Ledger{
		store: s,
		log:   logrus.WithField("component", "audit"),
	}
}

// HandleEvent records one committed transition. Runs on the event bus
// worker, so appends land in commit order per chain.
func (l *Ledger) HandleEvent(ctx context.Context, event events.Event) error {
	entry, ok := l.entryFor(event)
	if !ok {
		return nil
	}
	return l.Append(ctx, entry)
}

// Append seals the entry into its chain: the previous fingerprint is read,
// the entry's fingerprint computed, and the entry stored.
func (l *Ledger) Append(ctx context.Context, entry *models.AuditEntry) error {
	last, err := l.store.LastAuditEntry(ctx, entry.ChainID)
	if err != nil {
		return fmt.Errorf("read chain head: %w", err)
	}
	if last != nil {
		entry.PrevFingerprint = last.Fingerprint
	}

	fingerprint, err := Fingerprint(entry)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	entry.Fingerprint = fingerprint

	if err := l.store.AppendAuditEntry(ctx, entry); err != nil {
		return err
	}
	return nil
}

// Verify recomputes the full chain and compares against stored
// fingerprints. A mismatch is an IntegrityError naming the first bad entry;
// it is surfaced loudly but must not block workflow operations.
func (l *Ledger) Verify(ctx context.Context, chainID primitive.ObjectID) error {
	entries, err := l.store.ListAuditEntries(ctx, chainID)
	if err != nil {
		return fmt.Errorf("list chain: %w", err)
	}

	prev := ""
	for i := range entries {
		entry := entries[i]
		if entry.PrevFingerprint != prev {
			l.log.WithFields(logrus.Fields{
				"chain_id": chainID.Hex(),
				"index":    i,
			}).Error("audit chain link broken")
			return &relieferr.IntegrityError{
				ChainID: chainID,
				Index:   i,
				Message: "previous fingerprint does not link",
			}
		}

		recomputed, err := Fingerprint(&entry)
		if err != nil {
			return fmt.Errorf("fingerprint entry %d: %w", i, err)
		}
		if recomputed != entry.Fingerprint {
			l.log.WithFields(logrus.Fields{
				"chain_id": chainID.Hex(),
				"index":    i,
			}).Error("audit fingerprint mismatch, possible tampering")
			return &relieferr.IntegrityError{
				ChainID: chainID,
				Index:   i,
				Message: "fingerprint mismatch",
			}
		}
		prev = entry.Fingerprint
	}
	return nil
}

// Entries returns the chain in chronological order for external reporting.
func (l *Ledger) Entries(ctx context.Context, chainID primitive.ObjectID) ([]models.AuditEntry, error) {
	return l.store.ListAuditEntries(ctx, chainID)
}

// fingerprintContent is the canonical serialization the hash covers. Field
// order is fixed by the struct, timestamps are UTC RFC3339Nano.
type fingerprintContent struct {
	ChainID   string              `json:"chain_id"`
	RequestID string              `json:"request_id,omitempty"`
	Action    string              `json:"action"`
	Payload   models.AuditPayload `json:"payload"`
	Timestamp string              `json:"timestamp"`
	Prev      string              `json:"prev"`
}

// Fingerprint computes the sha256 content hash of an entry, chained through
// PrevFingerprint.
func Fingerprint(entry *models.AuditEntry) (string, error) {
	content := fingerprintContent{
		ChainID:   entry.ChainID.Hex(),
		Action:    entry.Action,
		Payload:   entry.Payload,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Prev:      entry.PrevFingerprint,
	}
	if entry.RequestID != nil {
		content.RequestID = entry.RequestID.Hex()
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// entryFor translates a bus event into an audit entry, or reports that the
// event kind is not audited.
func (l *Ledger) entryFor(event events.Event) (*models.AuditEntry, bool) {
	switch event.Type {
	case events.TypeRequestApproved:
		return requestEntry(event, models.AuditRequestApproved), true
	case events.TypeRequestRejected:
		return requestEntry(event, models.AuditRequestRejected), true
	case events.TypeRequestCancelled:
		return requestEntry(event, models.AuditRequestCancelled), true
	case events.TypeRequestMatched:
		return requestEntry(event, models.AuditRequestMatched), true
	case events.TypeRequestNoMatch:
		return requestEntry(event, models.AuditRequestNoMatch), true
	case events.TypeDistributionCreated:
		return distributionEntry(event, models.AuditDistributionCreated), true
	case events.TypeDistributionAdvanced:
		action, ok := distributionAdvanceAction(event.Distribution.Status)
		if !ok {
			return nil, false
		}
		return distributionEntry(event, action), true
	}
	return nil, false
}

func distributionAdvanceAction(status string) (string, bool) {
	switch status {
	case models.DistributionStatusShipping:
		return models.AuditDistributionShipping, true
	case models.DistributionStatusDelivering:
		return models.AuditDistributionDelivering, true
	case models.DistributionStatusCompleted:
		return models.AuditDistributionCompleted, true
	case models.DistributionStatusCancelled:
		return models.AuditDistributionCancelled, true
	}
	return "", false
}

func requestEntry(event events.Event, action string) *models.AuditEntry {
	request := event.Request
	requestID := request.ID
	return &models.AuditEntry{
		ChainID:   RequestChainID,
		RequestID: &requestID,
		Action:    action,
		Timestamp: event.At,
		Payload: models.AuditPayload{
			Kind: models.AuditPayloadRequest,
			Request: &models.RequestSnapshot{
				RequestID:         request.ID,
				RequestType:       request.RequestType,
				Status:            request.Status,
				ApprovalStatus:    request.ApprovalStatus,
				MatchingStatus:    request.MatchingStatus,
				MatchedResourceID: request.MatchedResourceID,
				PriorityScore:     request.PriorityScore,
				RejectReason:      request.RejectReason,
				ActorID:           event.ActorID,
			},
		},
	}
}

func distributionEntry(event events.Event, action string) *models.AuditEntry {
	distribution := event.Distribution
	requestID := distribution.RequestID
	return &models.AuditEntry{
		ChainID:   distribution.ID,
		RequestID: &requestID,
		Action:    action,
		Timestamp: event.At,
		Payload: models.AuditPayload{
			Kind: models.AuditPayloadDistribution,
			Distribution: &models.DistributionSnapshot{
				DistributionID:  distribution.ID,
				RequestID:       distribution.RequestID,
				ResourceID:      distribution.ResourceID,
				VolunteerID:     distribution.VolunteerID,
				Quantity:        distribution.Quantity,
				Status:          distribution.Status,
				TransactionCode: distribution.TransactionCode,
			},
		},
	}
}
