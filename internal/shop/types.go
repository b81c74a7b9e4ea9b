package shop

import "batchrpc/internal/message"

// OrderRequest places an order for Quantity units of Item
type OrderRequest struct {
	Customer string `json:"customer"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

func (*OrderRequest) RequestType() string { return "OrderRequest" }

// OrderResponse confirms a placed order
type OrderResponse struct {
	message.Base
	OrderID   string `json:"orderId"`
	Remaining int    `json:"remaining"`
}

func (*OrderResponse) ResponseType() string { return "OrderResponse" }

// StockRequest asks for the available quantity of Item
type StockRequest struct {
	Item string `json:"item"`
}

func (*StockRequest) RequestType() string { return "StockRequest" }

// StockResponse reports the available quantity of an item
type StockResponse struct {
	message.Base
	Item      string `json:"item"`
	Available int    `json:"available"`
}

func (*StockResponse) ResponseType() string { return "StockResponse" }

// CancelOrderRequest cancels a placed order and returns its units to stock
type CancelOrderRequest struct {
	Customer string `json:"customer"`
	OrderID  string `json:"orderId"`
}

func (*CancelOrderRequest) RequestType() string { return "CancelOrderRequest" }

// CancelOrderResponse confirms a cancellation
type CancelOrderResponse struct {
	message.Base
	Restocked int `json:"restocked"`
}

func (*CancelOrderResponse) ResponseType() string { return "CancelOrderResponse" }

// AuditRequest records an event without producing a response
type AuditRequest struct {
	Event string `json:"event"`
}

func (*AuditRequest) RequestType() string { return "AuditRequest" }
func (*AuditRequest) OneWay()             {}
