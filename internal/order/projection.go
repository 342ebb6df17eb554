package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type AddressResponse struct {
	City    string `json:"city"`
	Street  string `json:"street"`
	Zipcode string `json:"zipcode"`
}

type OrderItemResponse struct {
	ItemName   string   `json:"itemName"`
	OrderPrice int64    `json:"orderPrice"`
	Count      int      `json:"count"`
	Categories []string `json:"categories,omitempty"`
}

type OrderResponse struct {
	OrderID     uuid.UUID           `json:"orderId"`
	MemberName  string              `json:"memberName"`
	OrderDate   time.Time           `json:"orderDate"`
	OrderStatus OrderStatus         `json:"orderStatus"`
	Address     AddressResponse     `json:"address"`
	OrderItems  []OrderItemResponse `json:"orderItems"`
}

// SimpleOrderResponse is OrderResponse without the item collection.
type SimpleOrderResponse struct {
	OrderID     uuid.UUID       `json:"orderId"`
	MemberName  string          `json:"memberName"`
	OrderDate   time.Time       `json:"orderDate"`
	OrderStatus OrderStatus     `json:"orderStatus"`
	Address     AddressResponse `json:"address"`
}

// ToOrderResponse copies the exposed fields of o. The result shares no memory
// with o.
func ToOrderResponse(o *Order) OrderResponse {
	simple := ToSimpleOrderResponse(o)

	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, oi := range o.Items {
		items = append(items, ToOrderItemResponse(oi))
	}

	return OrderResponse{
		OrderID:     simple.OrderID,
		MemberName:  simple.MemberName,
		OrderDate:   simple.OrderDate,
		OrderStatus: simple.OrderStatus,
		Address:     simple.Address,
		OrderItems:  items,
	}
}

func ToSimpleOrderResponse(o *Order) SimpleOrderResponse {
	resp := SimpleOrderResponse{
		OrderID:     o.ID,
		OrderDate:   o.OrderDate,
		OrderStatus: o.Status,
	}
	if o.Member != nil {
		resp.MemberName = o.Member.Name
	}
	// The delivery keeps the address as it was when the order was placed.
	if o.Delivery != nil {
		resp.Address = AddressResponse{
			City:    o.Delivery.Address.City,
			Street:  o.Delivery.Address.Street,
			Zipcode: o.Delivery.Address.Zipcode,
		}
	}
	return resp
}

func ToOrderItemResponse(oi *OrderItem) OrderItemResponse {
	resp := OrderItemResponse{
		OrderPrice: oi.OrderPrice,
		Count:      oi.Count,
	}
	if oi.Item != nil {
		resp.ItemName = oi.Item.Name
		if len(oi.Item.Categories) > 0 {
			resp.Categories = make([]string, 0, len(oi.Item.Categories))
			for _, c := range oi.Item.Categories {
				resp.Categories = append(resp.Categories, c.Name)
			}
		}
	}
	return resp
}

func ToOrderResponses(orders []*Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out
}

func ToSimpleOrderResponses(orders []*Order) []SimpleOrderResponse {
	out := make([]SimpleOrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToSimpleOrderResponse(o))
	}
	return out
}
