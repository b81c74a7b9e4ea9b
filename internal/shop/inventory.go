package shop

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"batchrpc/internal/processor"
)

type order struct {
	customer string
	item     string
	quantity int
}

// Inventory is an in-memory stock of items and the orders placed against it
type Inventory struct {
	stock   map[string]int
	orders  map[string]order
	blocked map[string]bool
	audit   []string
	nextID  int
	mu      sync.Mutex

	// txMu serializes batches so a failed batch can be rolled back
	txMu sync.Mutex
}

// NewInventory creates an inventory holding the given stock
func NewInventory(stock map[string]int) *Inventory {
	return &Inventory{
		stock:   maps.Clone(stock),
		orders:  make(map[string]order),
		blocked: make(map[string]bool),
	}
}

// Block denies all further orders from customer
func (inv *Inventory) Block(customer string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.blocked[customer] = true
}

// Stock returns the available quantity of item
func (inv *Inventory) Stock(item string) (int, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	qty, ok := inv.stock[item]
	if !ok {
		return 0, newError(CodeUnknownItem, "unknown item %q", item)
	}
	return qty, nil
}

// Reserve takes quantity units of item out of stock for customer
func (inv *Inventory) Reserve(customer, item string, quantity int) (orderID string, remaining int, err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.blocked[customer] {
		return "", 0, &AccessDenied{Customer: customer}
	}
	if quantity <= 0 {
		return "", 0, newError(CodeInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	available, ok := inv.stock[item]
	if !ok {
		return "", 0, newError(CodeUnknownItem, "unknown item %q", item)
	}
	if available < quantity {
		return "", 0, newError(CodeOutOfStock, "only %d of %q left", available, item)
	}

	inv.nextID++
	orderID = fmt.Sprintf("order-%d", inv.nextID)
	inv.stock[item] = available - quantity
	inv.orders[orderID] = order{customer: customer, item: item, quantity: quantity}
	return orderID, inv.stock[item], nil
}

// Cancel returns the units of an order to stock
func (inv *Inventory) Cancel(customer, orderID string) (int, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	o, ok := inv.orders[orderID]
	if !ok {
		return 0, newError(CodeNoSuchOrder, "no order %q", orderID)
	}
	if o.customer != customer {
		return 0, &AccessDenied{Customer: customer}
	}
	delete(inv.orders, orderID)
	inv.stock[o.item] += o.quantity
	return o.quantity, nil
}

// Record appends an audit event
func (inv *Inventory) Record(event string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.audit = append(inv.audit, event)
}

// AuditLog returns the recorded audit events
func (inv *Inventory) AuditLog() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]string(nil), inv.audit...)
}

// UnitOfWork returns a factory of batch transactions. A batch that ends with
// a fault leaves stock and orders as they were before it started.
func (inv *Inventory) UnitOfWork() processor.UnitOfWorkFactory {
	return func() processor.UnitOfWork {
		return &transaction{inv: inv}
	}
}

type transaction struct {
	inv    *Inventory
	stock  map[string]int
	orders map[string]order
	nextID int
}

func (tx *transaction) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.inv.txMu.Lock()

	tx.inv.mu.Lock()
	tx.stock = maps.Clone(tx.inv.stock)
	tx.orders = maps.Clone(tx.inv.orders)
	tx.nextID = tx.inv.nextID
	tx.inv.mu.Unlock()
	return nil
}

func (tx *transaction) End(err error) {
	defer tx.inv.txMu.Unlock()
	if err == nil {
		return
	}

	tx.inv.mu.Lock()
	tx.inv.stock = tx.stock
	tx.inv.orders = tx.orders
	tx.inv.nextID = tx.nextID
	tx.inv.mu.Unlock()
}

// DemoStock returns the stock the demo server starts with
func DemoStock() map[string]int {
	return map[string]int{
		"apple":  100,
		"pear":   50,
		"banana": 20,
	}
}
