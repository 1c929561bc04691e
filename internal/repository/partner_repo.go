package repository

import (
	"context"
	"time"

	"erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *model.Customer) error
	Update(ctx context.Context, customer *model.Customer) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.Customer, error)
	FindByEmail(ctx context.Context, email string) (*model.Customer, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error)
	Count(ctx context.Context) (int64, error)
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) error {
	return GetDB(ctx, r.db).Create(customer).Error
}

func (r *customerRepository) Update(ctx context.Context, customer *model.Customer) error {
	return GetDB(ctx, r.db).Model(customer).Select("name", "email", "phone", "address").Updates(customer).Error
}

func (r *customerRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return softDelete(GetDB(ctx, r.db), &model.Customer{}, id)
}

func (r *customerRepository) FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.Customer, error) {
	var customer model.Customer
	if err := GetDB(ctx, r.db).Scopes(visible(vis)).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByEmail looks at deleted rows too, since the email column is unique.
func (r *customerRepository) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var customer model.Customer
	if err := GetDB(ctx, r.db).First(&customer, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) List(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error) {
	var customers []model.Customer
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Customer{}).Scopes(visible(VisibleOnly))
	if search != "" {
		p := likePattern(search)
		db = db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", p, p)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("name asc").Scopes(paginate(page, limit)).Find(&customers).Error; err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (r *customerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Customer{}).Scopes(visible(VisibleOnly)).Count(&n).Error
	return n, err
}

type SupplierFilter struct {
	Search     string
	ActiveOnly bool
	Visibility Visibility
	Page       int
	Limit      int
}

type SupplierRepository interface {
	Create(ctx context.Context, supplier *model.Supplier) error
	Update(ctx context.Context, supplier *model.Supplier) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.Supplier, error)
	List(ctx context.Context, filter SupplierFilter) ([]model.Supplier, int64, error)
}

type supplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

func (r *supplierRepository) Create(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Create(supplier).Error
}

func (r *supplierRepository) Update(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Model(supplier).
		Select("name", "contact_name", "email", "phone", "address", "city", "country", "tax_id", "is_active", "notes").
		Updates(supplier).Error
}

func (r *supplierRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return softDelete(GetDB(ctx, r.db), &model.Supplier{}, id)
}

func (r *supplierRepository) Restore(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Model(&model.Supplier{}).
		Where("id = ? AND is_deleted = ?", id, true).
		Updates(map[string]interface{}{"is_deleted": false, "deleted_at": nil, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).Scopes(visible(vis)).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) List(ctx context.Context, filter SupplierFilter) ([]model.Supplier, int64, error) {
	var suppliers []model.Supplier
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Supplier{}).Scopes(visible(filter.Visibility))
	if filter.Search != "" {
		p := likePattern(filter.Search)
		db = db.Where("LOWER(name) LIKE ? OR LOWER(contact_name) LIKE ? OR LOWER(email) LIKE ?", p, p, p)
	}
	if filter.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("name asc").Scopes(paginate(filter.Page, filter.Limit)).Find(&suppliers).Error; err != nil {
		return nil, 0, err
	}
	return suppliers, total, nil
}

func softDelete(db *gorm.DB, m interface{}, id uuid.UUID) error {
	now := time.Now()
	res := db.Model(m).Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type ProductSupplierRepository interface {
	Create(ctx context.Context, link *model.ProductSupplier) error
	Update(ctx context.Context, link *model.ProductSupplier) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductSupplier, error)
	Exists(ctx context.Context, productID, supplierID uuid.UUID) (bool, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]model.ProductSupplier, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductSupplier, error)
	// ClearPreferred unsets the preferred flag on every offer for the product
	// except keep.
	ClearPreferred(ctx context.Context, productID, keep uuid.UUID) error
	FindPreferred(ctx context.Context, productIDs []uuid.UUID) ([]model.ProductSupplier, error)
}

type productSupplierRepository struct {
	db *gorm.DB
}

func NewProductSupplierRepository(db *gorm.DB) ProductSupplierRepository {
	return &productSupplierRepository{db: db}
}

func (r *productSupplierRepository) Create(ctx context.Context, link *model.ProductSupplier) error {
	return GetDB(ctx, r.db).Omit("Product", "Supplier").Create(link).Error
}

func (r *productSupplierRepository) Update(ctx context.Context, link *model.ProductSupplier) error {
	res := GetDB(ctx, r.db).Model(&model.ProductSupplier{}).Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"supplier_price":         link.SupplierPrice,
			"supplier_sku":           link.SupplierSKU,
			"is_preferred":           link.IsPreferred,
			"lead_time_days":         link.LeadTimeDays,
			"minimum_order_quantity": link.MinimumOrderQuantity,
			"updated_at":             time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productSupplierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.ProductSupplier{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductSupplier, error) {
	var link model.ProductSupplier
	if err := GetDB(ctx, r.db).Preload("Product").Preload("Supplier").First(&link, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *productSupplierRepository) Exists(ctx context.Context, productID, supplierID uuid.UUID) (bool, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.ProductSupplier{}).
		Where("product_id = ? AND supplier_id = ?", productID, supplierID).Count(&n).Error
	return n > 0, err
}

func (r *productSupplierRepository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]model.ProductSupplier, error) {
	var links []model.ProductSupplier
	err := GetDB(ctx, r.db).Preload("Product").Preload("Supplier").
		Where("supplier_id = ?", supplierID).Order("created_at asc").Find(&links).Error
	return links, err
}

func (r *productSupplierRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductSupplier, error) {
	var links []model.ProductSupplier
	err := GetDB(ctx, r.db).Preload("Product").Preload("Supplier").
		Where("product_id = ?", productID).
		Order("is_preferred desc").Order("supplier_price asc").Find(&links).Error
	return links, err
}

func (r *productSupplierRepository) ClearPreferred(ctx context.Context, productID, keep uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ProductSupplier{}).
		Where("product_id = ? AND id <> ? AND is_preferred = ?", productID, keep, true).
		Updates(map[string]interface{}{"is_preferred": false, "updated_at": time.Now()}).Error
}

func (r *productSupplierRepository) FindPreferred(ctx context.Context, productIDs []uuid.UUID) ([]model.ProductSupplier, error) {
	var links []model.ProductSupplier
	if len(productIDs) == 0 {
		return links, nil
	}
	err := GetDB(ctx, r.db).Preload("Supplier").
		Where("product_id IN ? AND is_preferred = ?", productIDs, true).Find(&links).Error
	return links, err
}
