package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"gorm.io/gorm"
)

// --- Customer DTOs ---

type CustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Supplier DTOs ---

type CreateSupplierRequest struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	TaxID       string `json:"tax_id"`
	Notes       string `json:"notes"`
}

type UpdateSupplierRequest struct {
	Name        *string `json:"name"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	TaxID       *string `json:"tax_id"`
	Notes       *string `json:"notes"`
	IsActive    *bool   `json:"is_active"`
}

type SupplierListRequest struct {
	Search         string
	ActiveOnly     bool
	IncludeDeleted bool
	Page           int
	Limit          int
}

type SupplierResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	TaxID       string    `json:"tax_id"`
	Notes       string    `json:"notes"`
	IsActive    bool      `json:"is_active"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Interfaces ---

type CustomerService interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (CustomerResponse, error)
	UpdateCustomer(ctx context.Context, id string, req CustomerRequest) (CustomerResponse, error)
	DeleteCustomer(ctx context.Context, id string) error
	GetCustomer(ctx context.Context, id string) (CustomerResponse, error)
	ListCustomers(ctx context.Context, search string, page, limit int) ([]CustomerResponse, int64, error)
}

type SupplierService interface {
	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (SupplierResponse, error)
	UpdateSupplier(ctx context.Context, id string, req UpdateSupplierRequest) (SupplierResponse, error)
	DeleteSupplier(ctx context.Context, id string) error
	RestoreSupplier(ctx context.Context, id string) (SupplierResponse, error)
	GetSupplier(ctx context.Context, id string) (SupplierResponse, error)
	ListSuppliers(ctx context.Context, req SupplierListRequest) ([]SupplierResponse, int64, error)
}

// --- Validation helpers ---

func normalizeEmail(raw string, required bool) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		if required {
			return "", apperror.Validation("email is required")
		}
		return "", nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperror.Validation("invalid email format")
	}
	return email, nil
}

// --- Customers ---

type customerService struct {
	repo repository.CustomerRepository
}

func NewCustomerService(repo repository.CustomerRepository) CustomerService {
	return &customerService{repo: repo}
}

func (s *customerService) ensureEmailFree(ctx context.Context, email string, current *model.Customer) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && (current == nil || existing.ID != current.ID):
		return apperror.Validation("email %s is already used by another customer", email)
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("check customer email: %w", err)
	}
	return nil
}

func (s *customerService) CreateCustomer(ctx context.Context, req CustomerRequest) (CustomerResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return CustomerResponse{}, apperror.Validation("name is required")
	}
	email, err := normalizeEmail(req.Email, true)
	if err != nil {
		return CustomerResponse{}, err
	}
	if err := s.ensureEmailFree(ctx, email, nil); err != nil {
		return CustomerResponse{}, err
	}

	customer := &model.Customer{
		Name:    strings.TrimSpace(req.Name),
		Email:   email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return CustomerResponse{}, fmt.Errorf("failed to create customer: %w", err)
	}
	return toCustomerResponse(*customer), nil
}

func (s *customerService) find(ctx context.Context, id string) (*model.Customer, error) {
	cid, err := parseID("customer", id)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.FindByID(ctx, cid, repository.VisibleOnly)
	if err != nil {
		return nil, lookupErr(err, "customer", id)
	}
	return customer, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, id string, req CustomerRequest) (CustomerResponse, error) {
	customer, err := s.find(ctx, id)
	if err != nil {
		return CustomerResponse{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return CustomerResponse{}, apperror.Validation("name cannot be empty")
	}
	email, err := normalizeEmail(req.Email, true)
	if err != nil {
		return CustomerResponse{}, err
	}
	if email != customer.Email {
		if err := s.ensureEmailFree(ctx, email, customer); err != nil {
			return CustomerResponse{}, err
		}
	}

	customer.Name = strings.TrimSpace(req.Name)
	customer.Email = email
	customer.Phone = req.Phone
	customer.Address = req.Address
	if err := s.repo.Update(ctx, customer); err != nil {
		return CustomerResponse{}, fmt.Errorf("failed to update customer: %w", err)
	}
	return toCustomerResponse(*customer), nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, id string) error {
	customer, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, customer.ID)
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (CustomerResponse, error) {
	customer, err := s.find(ctx, id)
	if err != nil {
		return CustomerResponse{}, err
	}
	return toCustomerResponse(*customer), nil
}

func (s *customerService) ListCustomers(ctx context.Context, search string, page, limit int) ([]CustomerResponse, int64, error) {
	page, limit = normalizePage(page, limit)
	customers, total, err := s.repo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch customers: %w", err)
	}

	res := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		res = append(res, toCustomerResponse(c))
	}
	return res, total, nil
}

// --- Suppliers ---

type supplierService struct {
	repo repository.SupplierRepository
}

func NewSupplierService(repo repository.SupplierRepository) SupplierService {
	return &supplierService{repo: repo}
}

func (s *supplierService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (SupplierResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return SupplierResponse{}, apperror.Validation("name is required")
	}
	email, err := normalizeEmail(req.Email, false)
	if err != nil {
		return SupplierResponse{}, err
	}

	supplier := &model.Supplier{
		Name:        strings.TrimSpace(req.Name),
		ContactName: req.ContactName,
		Email:       email,
		Phone:       req.Phone,
		Address:     req.Address,
		City:        req.City,
		Country:     req.Country,
		TaxID:       req.TaxID,
		Notes:       req.Notes,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		return SupplierResponse{}, fmt.Errorf("failed to create supplier: %w", err)
	}
	return toSupplierResponse(*supplier), nil
}

func (s *supplierService) find(ctx context.Context, id string, vis repository.Visibility) (*model.Supplier, error) {
	sid, err := parseID("supplier", id)
	if err != nil {
		return nil, err
	}
	supplier, err := s.repo.FindByID(ctx, sid, vis)
	if err != nil {
		return nil, lookupErr(err, "supplier", id)
	}
	return supplier, nil
}

func (s *supplierService) UpdateSupplier(ctx context.Context, id string, req UpdateSupplierRequest) (SupplierResponse, error) {
	supplier, err := s.find(ctx, id, repository.VisibleOnly)
	if err != nil {
		return SupplierResponse{}, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return SupplierResponse{}, apperror.Validation("name cannot be empty")
		}
		supplier.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email, false)
		if err != nil {
			return SupplierResponse{}, err
		}
		supplier.Email = email
	}
	if req.ContactName != nil {
		supplier.ContactName = *req.ContactName
	}
	if req.Phone != nil {
		supplier.Phone = *req.Phone
	}
	if req.Address != nil {
		supplier.Address = *req.Address
	}
	if req.City != nil {
		supplier.City = *req.City
	}
	if req.Country != nil {
		supplier.Country = *req.Country
	}
	if req.TaxID != nil {
		supplier.TaxID = *req.TaxID
	}
	if req.Notes != nil {
		supplier.Notes = *req.Notes
	}
	if req.IsActive != nil {
		supplier.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, supplier); err != nil {
		return SupplierResponse{}, fmt.Errorf("failed to update supplier: %w", err)
	}
	return toSupplierResponse(*supplier), nil
}

func (s *supplierService) DeleteSupplier(ctx context.Context, id string) error {
	supplier, err := s.find(ctx, id, repository.VisibleOnly)
	if err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, supplier.ID)
}

func (s *supplierService) RestoreSupplier(ctx context.Context, id string) (SupplierResponse, error) {
	supplier, err := s.find(ctx, id, repository.IncludeDeleted)
	if err != nil {
		return SupplierResponse{}, err
	}
	if !supplier.IsDeleted {
		return SupplierResponse{}, apperror.InvalidState("supplier %s is not deleted", supplier.Name)
	}
	if err := s.repo.Restore(ctx, supplier.ID); err != nil {
		return SupplierResponse{}, lookupErr(err, "supplier", id)
	}
	return s.GetSupplier(ctx, id)
}

func (s *supplierService) GetSupplier(ctx context.Context, id string) (SupplierResponse, error) {
	supplier, err := s.find(ctx, id, repository.VisibleOnly)
	if err != nil {
		return SupplierResponse{}, err
	}
	return toSupplierResponse(*supplier), nil
}

func (s *supplierService) ListSuppliers(ctx context.Context, req SupplierListRequest) ([]SupplierResponse, int64, error) {
	page, limit := normalizePage(req.Page, req.Limit)
	filter := repository.SupplierFilter{Search: req.Search, ActiveOnly: req.ActiveOnly, Page: page, Limit: limit}
	if req.IncludeDeleted {
		filter.Visibility = repository.IncludeDeleted
	}
	suppliers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch suppliers: %w", err)
	}

	res := make([]SupplierResponse, 0, len(suppliers))
	for _, sp := range suppliers {
		res = append(res, toSupplierResponse(sp))
	}
	return res, total, nil
}

// --- Response mappers ---

func toCustomerResponse(c model.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toSupplierResponse(sp model.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:          sp.ID.String(),
		Name:        sp.Name,
		ContactName: sp.ContactName,
		Email:       sp.Email,
		Phone:       sp.Phone,
		Address:     sp.Address,
		City:        sp.City,
		Country:     sp.Country,
		TaxID:       sp.TaxID,
		Notes:       sp.Notes,
		IsActive:    sp.IsActive,
		IsDeleted:   sp.IsDeleted,
		CreatedAt:   sp.CreatedAt,
		UpdatedAt:   sp.UpdatedAt,
	}
}
