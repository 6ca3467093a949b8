// Package transform rebuilds the derived warehouse state from the bronze
// log: six normalized (silver) entity tables, then four daily aggregate
// (gold) tables. Both phases are idempotent full rebuilds with typed column
// derivations; identical bronze input always yields identical tables.
package transform

import (
	"sort"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/payload"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// NormalizedSet holds one rebuild's worth of normalized entities.
type NormalizedSet struct {
	Tickets        []Ticket
	Orders         []Order
	DispatchEvents []DispatchEvent
	Customers      []Customer
	Invoices       []Invoice
	HaulerPay      []HaulerPayItem
}

// latestByIdentity collapses duplicate bronze rows to one record per
// identity. Extraction is at-least-once, so the same logical record can
// land several times across retried windows; the winner is the row with
// the greatest record_updated_at, tie-broken by the latest pulled_at,
// then by scan order. Records without an identity are dropped.
//
// The result is sorted by identity so rebuilds are deterministic.
func latestByIdentity(events []warehouse.RawEvent, identity func(payload.Record) *string) []payload.Record {
	type candidate struct {
		event warehouse.RawEvent
	}
	best := make(map[string]candidate, len(events))

	for _, ev := range events {
		id := identity(ev.Record)
		if id == nil {
			continue
		}
		cur, seen := best[*id]
		if !seen || supersedes(ev, cur.event) {
			best[*id] = candidate{event: ev}
		}
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]payload.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, best[id].event.Record)
	}
	return records
}

// supersedes reports whether a replaces b as the surviving duplicate.
func supersedes(a, b warehouse.RawEvent) bool {
	switch {
	case a.RecordUpdatedAt != nil && b.RecordUpdatedAt == nil:
		return true
	case a.RecordUpdatedAt == nil && b.RecordUpdatedAt != nil:
		return false
	case a.RecordUpdatedAt != nil && b.RecordUpdatedAt != nil:
		if !a.RecordUpdatedAt.Equal(*b.RecordUpdatedAt) {
			return a.RecordUpdatedAt.After(*b.RecordUpdatedAt)
		}
	}
	return !a.PulledAt.Before(b.PulledAt)
}

func normalizeTickets(events []warehouse.RawEvent) []Ticket {
	records := latestByIdentity(events, func(r payload.Record) *string {
		return r.StringAt("id", "ticketId")
	})
	out := make([]Ticket, 0, len(records))
	for _, r := range records {
		if t, ok := projectTicket(r); ok {
			out = append(out, t)
		}
	}
	return out
}

func normalizeOrders(events []warehouse.RawEvent) []Order {
	records := latestByIdentity(events, func(r payload.Record) *string {
		return r.StringAt("id", "orderId")
	})
	out := make([]Order, 0, len(records))
	for _, r := range records {
		if o, ok := projectOrder(r); ok {
			out = append(out, o)
		}
	}
	return out
}

func normalizeDispatchEvents(events []warehouse.RawEvent) []DispatchEvent {
	records := latestByIdentity(events, func(r payload.Record) *string {
		return r.StringAt("id", "eventId")
	})
	out := make([]DispatchEvent, 0, len(records))
	for _, r := range records {
		if d, ok := projectDispatchEvent(r); ok {
			out = append(out, d)
		}
	}
	return out
}

func normalizeCustomers(events []warehouse.RawEvent) []Customer {
	records := latestByIdentity(events, func(r payload.Record) *string {
		return r.StringAt("id", "customerId")
	})
	out := make([]Customer, 0, len(records))
	for _, r := range records {
		if c, ok := projectCustomer(r); ok {
			out = append(out, c)
		}
	}
	return out
}

func normalizeInvoices(events []warehouse.RawEvent) []Invoice {
	records := latestByIdentity(events, func(r payload.Record) *string {
		return r.StringAt("id", "invoiceId")
	})
	out := make([]Invoice, 0, len(records))
	for _, r := range records {
		if inv, ok := projectInvoice(r); ok {
			out = append(out, inv)
		}
	}
	return out
}

func normalizeHaulerPay(events []warehouse.RawEvent) []HaulerPayItem {
	records := latestByIdentity(events, func(r payload.Record) *string {
		return r.StringAt("id", "payItemId")
	})
	out := make([]HaulerPayItem, 0, len(records))
	for _, r := range records {
		if p, ok := projectHaulerPayItem(r); ok {
			out = append(out, p)
		}
	}
	return out
}
