package service

import (
	"context"
	"testing"

	"erp/internal/apperror"
	"erp/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignSupplierKeepsOnePreferredLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.productSupplierService()
	p := env.seedProduct(t, "P-1", "10.00", 0)
	acme := env.seedSupplier(t, true)
	globex := &model.Supplier{Name: "Globex Parts", IsActive: true}
	require.NoError(t, env.suppliers.Create(ctx, globex))

	lead := 5
	first, err := svc.AssignSupplier(ctx, AssignSupplierRequest{
		ProductID: p.ID.String(), SupplierID: acme.ID.String(),
		SupplierPrice: decimal.RequireFromString("7.50"), SupplierSKU: "AC-1", IsPreferred: true, LeadTimeDays: &lead,
	})
	require.NoError(t, err)
	assert.True(t, first.IsPreferred)
	assert.Equal(t, "P-1", first.ProductSKU)
	assert.Equal(t, "Acme Supply", first.SupplierName)
	require.NotNil(t, first.LeadTimeDays)
	assert.Equal(t, 5, *first.LeadTimeDays)

	second, err := svc.AssignSupplier(ctx, AssignSupplierRequest{
		ProductID: p.ID.String(), SupplierID: globex.ID.String(),
		SupplierPrice: decimal.RequireFromString("6.00"), IsPreferred: true,
	})
	require.NoError(t, err)

	links, err := svc.ListSuppliersByProduct(ctx, p.ID.String())
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, second.ID, links[0].ID)
	assert.True(t, links[0].IsPreferred)
	assert.False(t, links[1].IsPreferred)

	preferred := true
	_, err = svc.UpdateLink(ctx, first.ID, UpdateProductSupplierRequest{IsPreferred: &preferred})
	require.NoError(t, err)
	got, err := svc.GetLink(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPreferred)

	products, err := svc.ListProductsBySupplier(ctx, globex.ID.String())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, p.ID.String(), products[0].ProductID)

	require.NoError(t, svc.DeleteLink(ctx, second.ID))
	_, err = svc.GetLink(ctx, second.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(svc.DeleteLink(ctx, second.ID)))
}

func TestAssignSupplierValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.productSupplierService()
	p := env.seedProduct(t, "P-1", "10.00", 0)
	supplier := env.seedSupplier(t, true)

	_, err := svc.AssignSupplier(ctx, AssignSupplierRequest{ProductID: p.ID.String(), SupplierID: supplier.ID.String(), SupplierPrice: decimal.NewFromInt(3)})
	require.NoError(t, err)

	zero := 0
	tests := []struct {
		name string
		req  AssignSupplierRequest
		kind apperror.Kind
	}{
		{"duplicate pair", AssignSupplierRequest{ProductID: p.ID.String(), SupplierID: supplier.ID.String()}, apperror.KindValidation},
		{"negative price", AssignSupplierRequest{ProductID: p.ID.String(), SupplierID: supplier.ID.String(), SupplierPrice: decimal.NewFromInt(-1)}, apperror.KindValidation},
		{"zero minimum order", AssignSupplierRequest{ProductID: p.ID.String(), SupplierID: supplier.ID.String(), MinimumOrderQuantity: &zero}, apperror.KindValidation},
		{"bad product id", AssignSupplierRequest{ProductID: "nope", SupplierID: supplier.ID.String()}, apperror.KindValidation},
		{"unknown product", AssignSupplierRequest{ProductID: uuid.NewString(), SupplierID: supplier.ID.String()}, apperror.KindNotFound},
		{"unknown supplier", AssignSupplierRequest{ProductID: p.ID.String(), SupplierID: uuid.NewString()}, apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AssignSupplier(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}

	links, err := svc.ListSuppliersByProduct(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Len(t, links, 1)
}
