/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the caller's ledger with
	realistic data for demos. Each scenario resolves its parties by name
	and saves orders through the engine, so every posting is derived the
	same way as in production.

AVAILABLE SCENARIOS:

	walkthrough:  One order taken from quote to fully settled
	driver-paid:  Pickup person fronts the product cost, then is reimbursed
	mixed-book:   Several orders in different states plus a manual payment

HOW SCENARIOS WORK:
 1. Resolve parties by typed name (existing parties are reused)
 2. Save orders, updating some of them to walk through states
 3. Optionally record manual entries

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "walkthrough"}

NOTE:

	Scenarios add to the caller's existing data. Loading one twice creates
	its orders twice.

SEE ALSO:
  - handlers.go: Order and ledger endpoints
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tradebook/order-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, s *seeder) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "walkthrough",
			Name:        "Walkthrough",
			Description: "One order from quote to fully settled, every party nets to zero",
		},
		load: loadWalkthroughScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "driver-paid",
			Name:        "Driver Paid",
			Description: "Pickup person pays the vendor and is reimbursed later",
		},
		load: loadDriverPaidScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mixed-book",
			Name:        "Mixed Book",
			Description: "Open, delivered and canceled orders plus a manual payment",
		},
		load: loadMixedBookScenario,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario seeds the caller's ledger.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	sc, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	s := &seeder{engine: h.Engine, user: userFrom(r), parties: make(map[string]ledger.PartyID)}
	if err := sc.load(r.Context(), s); err != nil {
		writeEngineError(w, r, fmt.Errorf("load scenario %s: %w", sc.ID, err))
		return
	}
	writeJSON(w, http.StatusCreated, LoadScenarioResponse{
		Scenario: sc.ScenarioDTO,
		Parties:  len(s.parties),
		Orders:   s.orders,
	})
}

// =============================================================================
// SEEDER
// =============================================================================

type seeder struct {
	engine  *ledger.Engine
	user    ledger.UserID
	parties map[string]ledger.PartyID
	orders  int
}

func (s *seeder) party(ctx context.Context, name string, typ ledger.PartyType) (ledger.PartyID, error) {
	key := string(typ) + "/" + name
	if id, ok := s.parties[key]; ok {
		return id, nil
	}
	p, _, err := s.engine.ResolveParty(ctx, s.user, name, typ)
	if err != nil {
		return "", err
	}
	s.parties[key] = p.ID
	return p.ID, nil
}

// deal resolves the three mandatory parties of an order.
func (s *seeder) deal(ctx context.Context, product, customer, vendor string) (ledger.Order, error) {
	var o ledger.Order
	var err error
	if o.ProductID, err = s.party(ctx, product, ledger.PartyProduct); err != nil {
		return o, err
	}
	if o.CustomerID, err = s.party(ctx, customer, ledger.PartyCustomer); err != nil {
		return o, err
	}
	if o.VendorID, err = s.party(ctx, vendor, ledger.PartyVendor); err != nil {
		return o, err
	}
	return o, nil
}

func (s *seeder) save(ctx context.Context, o ledger.Order) (ledger.Order, error) {
	res, err := s.engine.SaveOrder(ctx, s.user, o)
	if err != nil {
		return ledger.Order{}, err
	}
	if res.Created {
		s.orders++
	}
	return res.Order, nil
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// LOADERS
// =============================================================================

// loadWalkthroughScenario creates a single order and walks it from an
// open quote to fully settled.
func loadWalkthroughScenario(ctx context.Context, s *seeder) error {
	o, err := s.deal(ctx, "Teak Chair", "Alice Traders", "Bharat Furnishings")
	if err != nil {
		return err
	}
	o.OriginalPrice = money("1000")
	o.SellingPrice = money("1500")
	if o, err = s.save(ctx, o); err != nil {
		return err
	}

	driver, err := s.party(ctx, "Ravi", ledger.PartyPickupPerson)
	if err != nil {
		return err
	}
	o.PickupPersonID = &driver
	o.PickupCharges = money("50")
	o.ShippingCharges = money("100")
	o.Status = ledger.StatusShipped
	if o, err = s.save(ctx, o); err != nil {
		return err
	}

	o.Status = ledger.StatusDelivered
	o.CustomerPaymentStatus = ledger.PaymentPaid
	o.VendorPaymentStatus = ledger.PaymentPaid
	o.PickupPaymentStatus = ledger.PaymentPaid
	_, err = s.save(ctx, o)
	return err
}

// loadDriverPaidScenario has the pickup person front the vendor price and
// leaves the reimbursement outstanding.
func loadDriverPaidScenario(ctx context.Context, s *seeder) error {
	o, err := s.deal(ctx, "Brass Lamp", "Chen Imports", "Delhi Metalworks")
	if err != nil {
		return err
	}
	driver, err := s.party(ctx, "Sunil", ledger.PartyPickupPerson)
	if err != nil {
		return err
	}
	o.PickupPersonID = &driver
	o.OriginalPrice = money("800")
	o.SellingPrice = money("1150")
	o.PickupCharges = money("40")
	o.PaidByDriver = true
	o.Status = ledger.StatusBooked
	_, err = s.save(ctx, o)
	return err
}

// loadMixedBookScenario fills a small book with orders in different states.
func loadMixedBookScenario(ctx context.Context, s *seeder) error {
	open, err := s.deal(ctx, "Silk Scarf", "Alice Traders", "Eastern Looms")
	if err != nil {
		return err
	}
	open.OriginalPrice = money("250")
	open.SellingPrice = money("400")
	open.ShippingCharges = money("30")
	if _, err := s.save(ctx, open); err != nil {
		return err
	}

	delivered, err := s.deal(ctx, "Copper Jug", "Farid & Sons", "Eastern Looms")
	if err != nil {
		return err
	}
	delivered.OriginalPrice = money("600")
	delivered.SellingPrice = money("720.50")
	delivered.Status = ledger.StatusDelivered
	delivered.VendorPaymentStatus = ledger.PaymentPaid
	if _, err := s.save(ctx, delivered); err != nil {
		return err
	}

	canceled, err := s.deal(ctx, "Clay Pot", "Farid & Sons", "Eastern Looms")
	if err != nil {
		return err
	}
	canceled.OriginalPrice = money("90")
	canceled.SellingPrice = money("150")
	canceled.Status = ledger.StatusCanceled
	if _, err := s.save(ctx, canceled); err != nil {
		return err
	}

	// Farid pays part of the delivered order outside of any order
	_, err = s.engine.RecordEntry(ctx, s.user, ledger.PostingDraft{
		PartyID: delivered.CustomerID,
		Amount:  money("-500"),
		Type:    ledger.TxPaymentIn,
		Notes:   "Partial cash payment",
	})
	return err
}
