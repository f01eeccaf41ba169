package service

import (
	"context"

	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/ledger"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/locker"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// LedgerService is the single write path to the append-only ledger. There is
// no update or delete operation at any layer; corrections are new entries.
type LedgerService interface {
	// RecordDebit appends a debit entry. Re-recording the same
	// (ref_type, ref_id) is a no-op returning the existing state.
	RecordDebit(ctx context.Context, entry *ledger.Entry) error

	// RecordCredit appends a credit entry with the same dedup semantics
	RecordCredit(ctx context.Context, entry *ledger.Entry) error

	// GetBalance returns sum(debit) - sum(credit) for the customer
	GetBalance(ctx context.Context, customerID string) (*dto.BalanceResponse, error)

	// ListEntries returns the customer's ledger, oldest first
	ListEntries(ctx context.Context, customerID string, filter *types.Filter) (*dto.ListLedgerResponse, error)
}

type ledgerService struct {
	ServiceParams
}

func NewLedgerService(params ServiceParams) LedgerService {
	return &ledgerService{
		ServiceParams: params,
	}
}

func (s *ledgerService) RecordDebit(ctx context.Context, entry *ledger.Entry) error {
	entry.EntryType = types.LedgerEntryTypeDebit
	entry.CreditCents = decimal.Zero
	return s.record(ctx, entry)
}

func (s *ledgerService) RecordCredit(ctx context.Context, entry *ledger.Entry) error {
	entry.EntryType = types.LedgerEntryTypeCredit
	entry.DebitCents = decimal.Zero
	return s.record(ctx, entry)
}

func (s *ledgerService) record(ctx context.Context, entry *ledger.Entry) error {
	if entry.ID == "" {
		entry.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_ENTRY)
	}
	if entry.BaseModel.Status == "" {
		entry.BaseModel = types.GetDefaultBaseModel(ctx)
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	// writes for the same customer are serialized so the balance invariant
	// holds at every observation point
	release := s.Locker.Lock(locker.CustomerKey(entry.CustomerID))
	defer release()

	exists, err := s.LedgerRepo.ExistsByRef(ctx, entry.RefType, entry.RefID, entry.EntryType)
	if err != nil {
		return err
	}
	if exists {
		s.Logger.Infow("ledger entry already recorded, skipping",
			"customer_id", entry.CustomerID,
			"ref_type", entry.RefType,
			"ref_id", entry.RefID,
			"entry_type", entry.EntryType,
		)
		return nil
	}

	if err := s.LedgerRepo.Insert(ctx, entry); err != nil {
		if ierr.IsAlreadyExists(err) {
			return nil
		}
		return err
	}

	return nil
}

func (s *ledgerService) GetBalance(ctx context.Context, customerID string) (*dto.BalanceResponse, error) {
	if _, err := s.CustomerRepo.Get(ctx, customerID); err != nil {
		return nil, err
	}

	balance, err := s.LedgerRepo.GetBalance(ctx, customerID)
	if err != nil {
		return nil, err
	}

	return &dto.BalanceResponse{
		CustomerID:   customerID,
		BalanceCents: balance,
	}, nil
}

func (s *ledgerService) ListEntries(ctx context.Context, customerID string, filter *types.Filter) (*dto.ListLedgerResponse, error) {
	if filter == nil {
		f := types.GetDefaultFilter()
		filter = &f
	}

	entries, err := s.LedgerRepo.ListByCustomer(ctx, customerID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.LedgerEntryResponse, len(entries))
	for i, entry := range entries {
		items[i] = &dto.LedgerEntryResponse{Entry: entry}
	}

	response := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &response, nil
}
