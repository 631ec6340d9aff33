package usecase

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WSMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Notifier pushes balance updates to websocket subscribers. Delivery is best
// effort and never affects command-side correctness.
type Notifier struct {
	clients map[string]map[*websocket.Conn]bool
	mu      sync.Mutex
	logger  *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		clients: make(map[string]map[*websocket.Conn]bool),
		logger:  logger,
	}
}

func (n *Notifier) RegisterConnection(customerID string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.clients[customerID] == nil {
		n.clients[customerID] = make(map[*websocket.Conn]bool)
	}
	n.clients[customerID][conn] = true
}

func (n *Notifier) UnregisterConnection(customerID string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if conns, ok := n.clients[customerID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(n.clients, customerID)
		}
	}
}

func (n *Notifier) NotifyBalance(customerID string, balance decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()

	message := WSMessage{
		Type: "balance_update",
		Data: map[string]any{
			"customer_id": customerID,
			"balance":     balance,
		},
	}
	payload, _ := json.Marshal(message)

	for conn := range n.clients[customerID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			n.logger.Warn("failed to push balance update",
				zap.String("customer_id", customerID), zap.Error(err))
			conn.Close()
			delete(n.clients[customerID], conn)
		}
	}
}
