package shop

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"batchrpc/internal/handler"
	"batchrpc/internal/message"
)

// RegisterTypes registers the shop messages with the type registry
func RegisterTypes(types *message.TypeRegistry) error {
	return errors.Join(
		message.RegisterRequest[OrderRequest](types),
		message.RegisterRequest[StockRequest](types),
		message.RegisterRequest[CancelOrderRequest](types),
		message.RegisterRequest[AuditRequest](types),
		message.RegisterResponse[OrderResponse](types),
		message.RegisterResponse[StockResponse](types),
		message.RegisterResponse[CancelOrderResponse](types),
	)
}

// RegisterHandlers registers the shop handlers backed by inv
func RegisterHandlers(handlers *handler.Registry, inv *Inventory, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "shop").Logger()

	return errors.Join(
		handlers.RegisterHandler(handler.New(func(_ context.Context, req *OrderRequest) (*OrderResponse, error) {
			orderID, remaining, err := inv.Reserve(req.Customer, req.Item, req.Quantity)
			if err != nil {
				return nil, err
			}
			logger.Debug().Str("order", orderID).Str("item", req.Item).Int("quantity", req.Quantity).Msg("order placed")
			return &OrderResponse{OrderID: orderID, Remaining: remaining}, nil
		})),
		handlers.RegisterHandler(handler.New(func(_ context.Context, req *StockRequest) (*StockResponse, error) {
			available, err := inv.Stock(req.Item)
			if err != nil {
				return nil, err
			}
			return &StockResponse{Item: req.Item, Available: available}, nil
		})),
		handlers.RegisterHandler(handler.New(func(_ context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
			restocked, err := inv.Cancel(req.Customer, req.OrderID)
			if err != nil {
				return nil, err
			}
			return &CancelOrderResponse{Restocked: restocked}, nil
		})),
		handlers.RegisterHandler(handler.New(func(_ context.Context, req *AuditRequest) (*message.GenericResponse, error) {
			inv.Record(req.Event)
			return nil, nil
		})),
	)
}

// Register registers the shop types and handlers
func Register(types *message.TypeRegistry, handlers *handler.Registry, inv *Inventory, logger zerolog.Logger) error {
	if err := RegisterTypes(types); err != nil {
		return err
	}
	return RegisterHandlers(handlers, inv, logger)
}
