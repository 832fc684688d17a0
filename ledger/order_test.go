package ledger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradebook/order-ledger/ledger"
)

func TestMargin_SubtractsAllCosts(t *testing.T) {
	o := withPickup(baseOrder(), "50", "100")

	assert.True(t, ledger.Margin(o).Equal(d("350")))
	assert.True(t, ledger.MarginPercentage(o).Equal(d("35")))
}

func TestMargin_CanBeNegative(t *testing.T) {
	o := baseOrder()
	o.SellingPrice = d("900")
	o.ShippingCharges = d("25.50")

	assert.True(t, ledger.Margin(o).Equal(d("-125.5")))
	assert.True(t, ledger.MarginPercentage(o).Equal(d("-12.55")))
}

func TestMarginPercentage_RoundsToTwoPlaces(t *testing.T) {
	o := baseOrder()
	o.OriginalPrice = d("3")
	o.SellingPrice = d("4")

	// 1/3 = 33.333...
	assert.Equal(t, "33.33", ledger.MarginPercentage(o).String())
}

func TestMarginPercentage_ZeroOriginalPrice(t *testing.T) {
	o := baseOrder()
	o.OriginalPrice = d("0")

	assert.True(t, ledger.MarginPercentage(o).IsZero())
}

func TestWithDefaults_FillsStatuses(t *testing.T) {
	empty := ledger.PartyID("")
	o := ledger.Order{PickupPersonID: &empty}.WithDefaults()

	assert.Equal(t, ledger.StatusPending, o.Status)
	assert.Equal(t, ledger.PaymentUdhar, o.VendorPaymentStatus)
	assert.Equal(t, ledger.PaymentUdhar, o.CustomerPaymentStatus)
	assert.Equal(t, ledger.PaymentUdhar, o.PickupPaymentStatus)
	assert.Nil(t, o.PickupPersonID)
	assert.False(t, o.HasPickup())
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	o := baseOrder()
	o.Status = ledger.StatusShipped
	o.CustomerPaymentStatus = ledger.PaymentPaid

	got := o.WithDefaults()
	assert.Equal(t, ledger.StatusShipped, got.Status)
	assert.Equal(t, ledger.PaymentPaid, got.CustomerPaymentStatus)
}

func TestDriverPaid_RequiresDistinctPickupPerson(t *testing.T) {
	o := baseOrder()
	o.PaidByDriver = true
	assert.False(t, o.DriverPaid(), "no pickup person")

	o.PickupPersonID = pid(vendorID)
	assert.False(t, o.DriverPaid(), "pickup person is the vendor")

	o.PickupPersonID = pid(pickupID)
	assert.True(t, o.DriverPaid())
}

func TestPartyIDs_IncludesPickupOnlyWhenAssigned(t *testing.T) {
	assert.Equal(t, []ledger.PartyID{customerID, vendorID}, baseOrder().PartyIDs())
	assert.Equal(t, []ledger.PartyID{customerID, vendorID, pickupID}, withPickup(baseOrder(), "0", "0").PartyIDs())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateOrder_Valid(t *testing.T) {
	assert.NoError(t, ledger.ValidateOrder(baseOrder()))
	assert.NoError(t, ledger.ValidateOrder(settled(withPickup(baseOrder(), "10", "20"))))
}

func TestValidateOrder_ReportsEveryField(t *testing.T) {
	// GIVEN: No product, a negative price and an unknown status
	o := baseOrder()
	o.ProductID = ""
	o.OriginalPrice = d("-1")
	o.Status = "Lost"

	// WHEN
	err := ledger.ValidateOrder(o)

	// THEN: One validation error listing all three
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInvalidOrder))
	assert.True(t, ledger.IsClientError(err))

	var verr *ledger.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "is required", fields["ProductID"])
	assert.Equal(t, "must be at least 0", fields["OriginalPrice"])
	assert.Contains(t, fields["Status"], "must be one of")
}

func TestValidateOrder_NegativeCharges(t *testing.T) {
	o := withPickup(baseOrder(), "-5", "-10")

	var verr *ledger.ValidationError
	require.True(t, errors.As(ledger.ValidateOrder(o), &verr))
	assert.Len(t, verr.Fields, 2)
}

func TestValidateOrder_UnknownPaymentStatus(t *testing.T) {
	o := baseOrder()
	o.VendorPaymentStatus = "Later"

	err := ledger.ValidateOrder(o)
	assert.ErrorIs(t, err, ledger.ErrInvalidOrder)
	assert.Contains(t, err.Error(), "VendorPaymentStatus")
}

func TestValidateEntry(t *testing.T) {
	assert.NoError(t, ledger.ValidateEntry(draft(customerID, "-100", ledger.TxPaymentIn, "")))

	err := ledger.ValidateEntry(ledger.PostingDraft{Type: "Gift"})
	assert.ErrorIs(t, err, ledger.ErrInvalidEntry)

	var verr *ledger.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
}

func TestValidateParty(t *testing.T) {
	assert.NoError(t, ledger.ValidateParty(ledger.Party{Name: "Alice", Type: ledger.PartyCustomer}))
	assert.ErrorIs(t, ledger.ValidateParty(ledger.Party{Name: "   ", Type: ledger.PartyCustomer}), ledger.ErrInvalidParty)
	assert.ErrorIs(t, ledger.ValidateParty(ledger.Party{Name: "Bob", Type: "Supplier"}), ledger.ErrInvalidParty)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "alice traders", ledger.NormalizeName("  Alice Traders "))
}

func TestErrorClassification(t *testing.T) {
	partyMissing := &ledger.PartyError{Role: "vendor", PartyID: "x", Err: ledger.ErrPartyNotFound}

	assert.True(t, ledger.IsClientError(partyMissing))
	assert.False(t, ledger.IsNotFound(partyMissing), "dangling reference is a bad request")
	assert.True(t, ledger.IsNotFound(ledger.ErrOrderNotFound))
	assert.True(t, ledger.IsConflict(ledger.ErrDerivedPosting))
	assert.True(t, ledger.IsConflict(ledger.ErrPartyInUse))
	assert.False(t, ledger.IsClientError(errors.New("disk full")))
}
