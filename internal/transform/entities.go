package transform

import (
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/payload"
)

// Bronze entity kinds. These are the values of bronze_events.entity and the
// keys the tenant config declares under entities:.
const (
	KindTickets        = "tickets"
	KindOrders         = "orders"
	KindDispatchEvents = "dispatch_events"
	KindCustomers      = "customers"
	KindInvoices       = "invoices"
	KindHaulerPay      = "hauler_pay"
)

// Each entity field resolves through a fixed-priority alias list: the first
// non-null value among the known alternate field paths wins. Identity fields
// are required; a record without one is unusable downstream and is dropped
// by normalization. Everything else degrades to NULL (or a defined default)
// on parse failure.

// Ticket is a normalized scale ticket.
type Ticket struct {
	TicketID           string
	OrderID            *string
	CustomerID         *string
	LocationID         *string
	LaneID             *string
	ProductID          *string
	ProductName        *string
	UnitOfMeasure      *string
	TargetWeight       *float64
	NetWeight          *float64
	CheckInTS          *time.Time
	LoadedTS           *time.Time
	TicketTS           *time.Time
	DispatchAssignedTS *time.Time
	PodTS              *time.Time
	Status             string
	TruckID            *string
	HaulerID           *string
	UpdatedAt          *time.Time
}

func projectTicket(r payload.Record) (Ticket, bool) {
	id := r.StringAt("id", "ticketId")
	if id == nil {
		return Ticket{}, false
	}
	return Ticket{
		TicketID:           *id,
		OrderID:            r.StringAt("orderId", "order.id"),
		CustomerID:         r.StringAt("customerId", "customer.id"),
		LocationID:         r.StringAt("locationId", "yardId"),
		LaneID:             r.StringAt("laneId", "scaleLaneId"),
		ProductID:          r.StringAt("productId", "product.id"),
		ProductName:        r.StringAt("productName", "product.name"),
		UnitOfMeasure:      r.StringAt("unitOfMeasure", "uom"),
		TargetWeight:       r.FloatAt("targetWeight", "targetNetWeight"),
		NetWeight:          r.FloatAt("netWeight", "actualNetWeight"),
		CheckInTS:          r.TimeAt("checkInTimestamp", "inYard.checkInAt"),
		LoadedTS:           r.TimeAt("loadedTimestamp", "loadedAt"),
		TicketTS:           r.TimeAt("ticketTimestamp", "issuedAt"),
		DispatchAssignedTS: r.TimeAt("dispatchAssignedTimestamp", "dispatch.assignedAt"),
		PodTS:              r.TimeAt("podTimestamp", "proofOfDelivery.deliveredAt"),
		Status:             r.StringOr("UNKNOWN", "status"),
		TruckID:            r.StringAt("truckId", "truck.id"),
		HaulerID:           r.StringAt("haulerId", "hauler.id"),
		UpdatedAt:          r.TimeAt("lastUpdatedAt", "updatedAt"),
	}, true
}

// Order is a normalized dispatch order.
type Order struct {
	OrderID       string
	JobID         *string
	PhaseID       *string
	CustomerID    *string
	Status        string
	ScheduledDate *time.Time
	UpdatedAt     *time.Time
}

func projectOrder(r payload.Record) (Order, bool) {
	id := r.StringAt("id", "orderId")
	if id == nil {
		return Order{}, false
	}
	return Order{
		OrderID:       *id,
		JobID:         r.StringAt("jobId", "job.id"),
		PhaseID:       r.StringAt("phaseId", "phase.id"),
		CustomerID:    r.StringAt("customerId", "customer.id"),
		Status:        r.StringOr("UNKNOWN", "status"),
		ScheduledDate: r.DateAt("scheduledDate", "dispatchDate"),
		UpdatedAt:     r.TimeAt("lastUpdatedAt", "updatedAt"),
	}, true
}

// DispatchEvent is a normalized truck telemetry event.
type DispatchEvent struct {
	DispatchEventID string
	TicketID        *string
	TruckID         *string
	HaulerID        *string
	EventType       string
	EventTS         *time.Time
	Latitude        *float64
	Longitude       *float64
	UpdatedAt       *time.Time
}

func projectDispatchEvent(r payload.Record) (DispatchEvent, bool) {
	id := r.StringAt("id", "eventId")
	if id == nil {
		return DispatchEvent{}, false
	}
	return DispatchEvent{
		DispatchEventID: *id,
		TicketID:        r.StringAt("ticketId", "ticket.id"),
		TruckID:         r.StringAt("truckId", "truck.id"),
		HaulerID:        r.StringAt("haulerId", "hauler.id"),
		EventType:       r.StringOr("UNKNOWN", "eventType"),
		EventTS:         r.TimeAt("eventTimestamp", "createdAt"),
		Latitude:        r.FloatAt("latitude", "position.latitude"),
		Longitude:       r.FloatAt("longitude", "position.longitude"),
		UpdatedAt:       r.TimeAt("lastUpdatedAt", "updatedAt"),
	}, true
}

// Customer is a normalized customer master record.
type Customer struct {
	CustomerID      string
	CustomerName    *string
	CustomerSegment string
	Region          string
	UpdatedAt       *time.Time
}

func projectCustomer(r payload.Record) (Customer, bool) {
	id := r.StringAt("id", "customerId")
	if id == nil {
		return Customer{}, false
	}
	return Customer{
		CustomerID:      *id,
		CustomerName:    r.StringAt("name", "customerName"),
		CustomerSegment: r.StringOr("Unclassified", "segment"),
		Region:          r.StringOr("Unknown", "region"),
		UpdatedAt:       r.TimeAt("lastUpdatedAt", "updatedAt"),
	}, true
}

// Invoice is a normalized AR invoice.
type Invoice struct {
	InvoiceID     string
	CustomerID    *string
	InvoiceDate   *time.Time
	DueDate       *time.Time
	InvoiceAmount *float64
	OpenBalance   *float64
	Status        string
	UpdatedAt     *time.Time
}

func projectInvoice(r payload.Record) (Invoice, bool) {
	id := r.StringAt("id", "invoiceId")
	if id == nil {
		return Invoice{}, false
	}
	return Invoice{
		InvoiceID:     *id,
		CustomerID:    r.StringAt("customerId", "customer.id"),
		InvoiceDate:   r.DateAt("invoiceDate", "issuedDate"),
		DueDate:       r.DateAt("dueDate", "paymentDueDate"),
		InvoiceAmount: r.FloatAt("amount", "invoiceAmount"),
		OpenBalance:   r.FloatAt("openBalance", "balanceDue"),
		Status:        r.StringOr("UNKNOWN", "status"),
		UpdatedAt:     r.TimeAt("lastUpdatedAt", "updatedAt"),
	}, true
}

// HaulerPayItem is a normalized hauler settlement line.
type HaulerPayItem struct {
	PayItemID      string
	HaulerID       *string
	TicketID       *string
	ExpectedAmount *float64
	PaidAmount     *float64
	PayDate        *time.Time
	UpdatedAt      *time.Time
}

func projectHaulerPayItem(r payload.Record) (HaulerPayItem, bool) {
	id := r.StringAt("id", "payItemId")
	if id == nil {
		return HaulerPayItem{}, false
	}
	return HaulerPayItem{
		PayItemID:      *id,
		HaulerID:       r.StringAt("haulerId", "hauler.id"),
		TicketID:       r.StringAt("ticketId", "ticket.id"),
		ExpectedAmount: r.FloatAt("expectedAmount", "calculatedFreight"),
		PaidAmount:     r.FloatAt("paidAmount", "actualPaidAmount"),
		PayDate:        r.DateAt("payDate", "paidAt"),
		UpdatedAt:      r.TimeAt("lastUpdatedAt", "updatedAt"),
	}, true
}
