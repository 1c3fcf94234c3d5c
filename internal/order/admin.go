package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"topup_service/internal/metrics"
	"topup_service/internal/model"
)

// ListOrders 返回当前会员自己的订单，按创建时间倒序。
func (s *Service) ListOrders(ctx context.Context, caller *Caller) ([]model.Order, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	var list []model.Order
	err := s.db.WithContext(ctx).Where("user_id = ?", caller.UserID).Order("created_at DESC, id DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrStorage, err)
	}
	return list, nil
}

// ListAllOrders 管理员查看全部订单。
func (s *Service) ListAllOrders(ctx context.Context, caller *Caller) ([]model.Order, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	var list []model.Order
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrStorage, err)
	}
	return list, nil
}

// UpdateOrderStatus 管理员手工修改履约状态，不触碰支付状态。
func (s *Service) UpdateOrderStatus(ctx context.Context, caller *Caller, orderID uint, status model.OrderStatus) (*model.Order, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	status = model.OrderStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if orderID == 0 || !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status", ErrValidation)
	}

	tx := s.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID).
		Updates(map[string]any{
			"order_status":   status,
			"updated_at":     s.now(),
			"status_version": gorm.Expr("status_version + 1"),
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: update order %d: %v", ErrStorage, orderID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, orderID)
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	metrics.StatusTransitionsTotal.WithLabelValues(o.PaymentStatus, string(o.OrderStatus)).Inc()
	s.cachePut(ctx, o)
	s.log.Info("order status set by admin", "order_id", orderID, "order_status", status, "admin", caller.Username)
	return o, nil
}

// CreateProductInput 新增价目请求体。
type CreateProductInput struct {
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Description string `json:"description"`
}

// ListProducts 返回价目表，按数量升序。
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := s.db.WithContext(ctx).Order("amount ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("%w: list products: %v", ErrStorage, err)
	}
	return list, nil
}

// CreateProduct 管理员新增价目；同一数量重复时返回校验错误。
func (s *Service) CreateProduct(ctx context.Context, caller *Caller, in CreateProductInput) (*model.Product, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Amount <= 0 || in.Price <= 0 || in.Quantity < 0 {
		return nil, fmt.Errorf("%w: name, positive amount and price are required", ErrValidation)
	}

	var existing model.Product
	err := s.db.WithContext(ctx).Where("amount = ?", in.Amount).First(&existing).Error
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: product for amount %d already exists", ErrValidation, in.Amount)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: lookup product: %v", ErrStorage, err)
	}

	p := &model.Product{Name: in.Name, Amount: in.Amount, Price: in.Price, Quantity: in.Quantity, Description: in.Description}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("%w: create product: %v", ErrStorage, err)
	}
	return p, nil
}

// UpdateProductInput 修改价目请求体；Amount 为 0 时保持原值。
type UpdateProductInput struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Description string `json:"description"`
}

// UpdateProduct 管理员修改价目。
func (s *Service) UpdateProduct(ctx context.Context, caller *Caller, in UpdateProductInput) (*model.Product, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == 0 || in.Name == "" || in.Price <= 0 || in.Quantity < 0 || in.Amount < 0 {
		return nil, fmt.Errorf("%w: id, name and positive price are required", ErrValidation)
	}

	db := s.db.WithContext(ctx)
	var p model.Product
	if err := db.First(&p, in.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, in.ID)
		}
		return nil, fmt.Errorf("%w: load product %d: %v", ErrStorage, in.ID, err)
	}
	if in.Amount > 0 && in.Amount != p.Amount {
		var n int64
		if err := db.Model(&model.Product{}).Where("amount = ? AND id <> ?", in.Amount, p.ID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("%w: lookup product: %v", ErrStorage, err)
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: product for amount %d already exists", ErrValidation, in.Amount)
		}
		p.Amount = in.Amount
	}
	p.Name, p.Price, p.Quantity, p.Description = in.Name, in.Price, in.Quantity, in.Description
	if err := db.Save(&p).Error; err != nil {
		return nil, fmt.Errorf("%w: update product %d: %v", ErrStorage, p.ID, err)
	}
	s.log.Info("product updated", "product_id", p.ID, "price", p.Price, "quantity", p.Quantity, "admin", caller.Username)
	return &p, nil
}

// SeedProducts 写入默认价目，已存在的数量跳过。
func SeedProducts(ctx context.Context, db *gorm.DB) error {
	products := model.DefaultProducts()
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}
