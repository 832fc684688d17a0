/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Loads each scenario through the API and checks the resulting book:
	parties resolved, orders saved, balances as the scenario describes.
	Every scenario must also reconcile cleanly.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) loadScenario(id string) LoadScenarioResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[LoadScenarioResponse](s.t, rec)
}

// balancesByName indexes the dashboard by party name.
func (s *testServer) balancesByName() map[string]string {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/balances", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	out := map[string]string{}
	for _, pb := range decode[BalancesResponse](s.t, rec).Parties {
		out[pb.Party.Name] = pb.Balance.String()
	}
	return out
}

func (s *testServer) assertReconciled() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/admin/reconcile", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	assert.True(s.t, decode[ReconcileResponse](s.t, rec).Clean)
}

func TestScenarios_List(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "walkthrough", list[0].ID)
}

func TestScenario_Walkthrough(t *testing.T) {
	// GIVEN: Empty book
	s := newTestServer(t)

	// WHEN: Loading the walkthrough
	resp := s.loadScenario("walkthrough")

	// THEN: One fully settled order, every party at zero
	assert.Equal(t, 4, resp.Parties)
	assert.Equal(t, 1, resp.Orders)
	for name, bal := range s.balancesByName() {
		assert.Equal(t, "0", bal, name)
	}

	rec := s.do(http.MethodGet, "/api/orders", nil)
	orders := decode[[]OrderDTO](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, "Delivered", orders[0].Status)
	assert.Len(t, orders[0].StatusHistory, 3)
	s.assertReconciled()
}

func TestScenario_DriverPaid(t *testing.T) {
	s := newTestServer(t)

	resp := s.loadScenario("driver-paid")

	// THEN: Vendor square, driver owed product cost plus pickup fee
	assert.Equal(t, 1, resp.Orders)
	bal := s.balancesByName()
	assert.Equal(t, "1150", bal["Chen Imports"])
	assert.Equal(t, "0", bal["Delhi Metalworks"])
	assert.Equal(t, "-840", bal["Sunil"])
	s.assertReconciled()
}

func TestScenario_MixedBook(t *testing.T) {
	s := newTestServer(t)

	resp := s.loadScenario("mixed-book")

	assert.Equal(t, 3, resp.Orders)
	assert.Equal(t, 6, resp.Parties)
	bal := s.balancesByName()
	assert.Equal(t, "400", bal["Alice Traders"])
	assert.Equal(t, "220.5", bal["Farid & Sons"])
	assert.Equal(t, "-280", bal["Eastern Looms"])
	s.assertReconciled()
}

func TestScenario_LoadTwiceReusesParties(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("driver-paid")
	s.loadScenario("driver-paid")

	rec := s.do(http.MethodGet, "/api/parties", nil)
	assert.Len(t, decode[[]PartyDTO](t, rec), 4)
	assert.Equal(t, "2300", s.balancesByName()["Chen Imports"])
}

func TestScenario_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
