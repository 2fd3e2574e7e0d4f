package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// RegisterEntityRequest represents a request to register an entity.
type RegisterEntityRequest struct {
	Code           *string `json:"code,omitempty"   validate:"omitempty,max=64"`
	Kind           string  `json:"kind"             validate:"required,oneof=account item"`
	RejectNegative bool    `json:"reject_negative"`
}

// ToUseCaseInput converts to use case input.
func (r *RegisterEntityRequest) ToUseCaseInput() usecase.RegisterEntityInput {
	return usecase.RegisterEntityInput{
		Code:           r.Code,
		Kind:           domain.EntityKind(r.Kind),
		RejectNegative: r.RejectNegative,
	}
}

// ChangeCodeRequest replaces or, with a null code, clears an entity code.
type ChangeCodeRequest struct {
	Code *string `json:"code" validate:"omitempty,max=64"`
}

// SubmitTransactionRequest represents a request to record a draft.
type SubmitTransactionRequest struct {
	EntityRef string `json:"entity"  validate:"required,max=64"`
	Type      string `json:"type"    validate:"required,oneof=IN OUT"`
	Amount    string `json:"amount"  validate:"required,positive_amount"`
	RefNo     string `json:"ref_no"  validate:"required,max=96"`
}

// ToUseCaseInput converts to use case input.
func (r *SubmitTransactionRequest) ToUseCaseInput() (usecase.SubmitInput, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return usecase.SubmitInput{}, err
	}

	return usecase.SubmitInput{
		EntityRef: r.EntityRef,
		Type:      domain.TransactionType(r.Type),
		Amount:    amount,
		RefNo:     r.RefNo,
	}, nil
}

// AmendTransactionRequest changes a draft's type and amount.
type AmendTransactionRequest struct {
	Type   string `json:"type"   validate:"required,oneof=IN OUT"`
	Amount string `json:"amount" validate:"required,positive_amount"`
}

// ToUseCaseInput converts to use case input.
func (r *AmendTransactionRequest) ToUseCaseInput(id string) (usecase.AmendInput, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return usecase.AmendInput{}, err
	}

	return usecase.AmendInput{
		ID:     id,
		Type:   domain.TransactionType(r.Type),
		Amount: amount,
	}, nil
}

// TransferRequest represents a request to move value between two entities.
type TransferRequest struct {
	From   string `json:"from"   validate:"required,max=64"`
	To     string `json:"to"     validate:"required,max=64,nefield=From"`
	Amount string `json:"amount" validate:"required,positive_amount"`
	RefNo  string `json:"ref_no" validate:"required,max=96"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput() (usecase.TransferInput, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return usecase.TransferInput{}, err
	}

	return usecase.TransferInput{
		FromRef: r.From,
		ToRef:   r.To,
		Amount:  amount,
		RefNo:   r.RefNo,
	}, nil
}

// ListTransactionsParams holds the query string of a transaction listing.
type ListTransactionsParams struct {
	Statuses []string
	From     string
	To       string
}

// ToUseCaseInput converts to use case input.
func (p ListTransactionsParams) ToUseCaseInput(entityRef string) (usecase.ListTransactionsInput, error) {
	input := usecase.ListTransactionsInput{EntityRef: entityRef}

	for _, s := range p.Statuses {
		status, err := domain.ParseStatus(s)
		if err != nil {
			return input, err
		}
		input.Statuses = append(input.Statuses, status)
	}

	var err error
	if input.From, err = parseTime("from", p.From); err != nil {
		return input, err
	}
	if input.To, err = parseTime("to", p.To); err != nil {
		return input, err
	}

	return input, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a decimal", domain.ErrValidation, s)
	}
	return amount, nil
}

func parseTime(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339", domain.ErrValidation, name)
	}
	return &t, nil
}
