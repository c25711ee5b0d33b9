package httpx

import (
	"github.com/jcmexdev/orderium/internal/cart/domain"
	"github.com/jcmexdev/orderium/internal/notify/dispatcher"
)

type AddItemRequest struct {
	Product  domain.Product `json:"product"`
	Quantity *int           `json:"quantity,omitempty"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type ItemQuantityResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type NotificationStatusResponse struct {
	IsConnected            bool   `json:"isConnected"`
	Error                  string `json:"error,omitempty"`
	NotificationPermission string `json:"notificationPermission"`
	State                  string `json:"state"`
}

func mapStatus(s dispatcher.Status) NotificationStatusResponse {
	out := NotificationStatusResponse{
		IsConnected:            s.IsConnected,
		NotificationPermission: string(s.NotificationPermission),
		State:                  string(s.State),
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}

const defaultQueryKey = "orders"

type QueryVersionsResponse struct {
	Versions map[string]int64 `json:"versions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
