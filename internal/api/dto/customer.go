package dto

import (
	"context"

	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
)

type CreateCustomerRequest struct {
	ExternalID string                `json:"external_id" validate:"required"`
	Name       string                `json:"name" validate:"required"`
	Email      string                `json:"email" validate:"omitempty,email"`
	Provider   types.PaymentProvider `json:"provider" validate:"required"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
}

type UpdateCustomerRequest struct {
	Name     *string           `json:"name"`
	Email    *string           `json:"email" validate:"omitempty,email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type CustomerResponse struct {
	*customer.Customer
}

// ListCustomersResponse represents the response for listing customers
type ListCustomersResponse = types.ListResponse[*CustomerResponse]

func (r *CreateCustomerRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Provider.Validate()
}

func (r *CreateCustomerRequest) ToCustomer(ctx context.Context) *customer.Customer {
	return &customer.Customer{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Email:      r.Email,
		Provider:   r.Provider,
		Metadata:   r.Metadata,
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
}

func (r *UpdateCustomerRequest) Validate() error {
	return validator.ValidateRequest(r)
}
