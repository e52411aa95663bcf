package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	couriermocks "github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier/mocks"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/storage/memtracking"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/require"
)

func newMux(t *testing.T) (*runtime.ServeMux, *memtracking.Storage) {
	t.Helper()
	st := memtracking.New()
	reg := courier.NewRegistry().
		MustRegister(models.CourierShipmozo, &couriermocks.MockAdapter{}).
		MustRegister(models.CourierDelhivery, &couriermocks.MockAdapter{})

	mux := runtime.NewServeMux()
	require.NoError(t, New(st, reg).Register(mux))
	return mux, st
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, ListShipmentsResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body ListShipmentsResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListUserShipments(t *testing.T) {
	mux, st := newMux(t)
	ctx := context.Background()
	require.NoError(t, st.CreateShipment(ctx, &models.ShipmentRecord{Owner: "919000000001", AWB: "778899", Courier: models.CourierShipmozo, Fingerprint: "fp"}))
	require.NoError(t, st.CreateShipment(ctx, &models.ShipmentRecord{Owner: "919000000002", AWB: "111111", Courier: models.CourierDelhivery}))

	rec, body := get(t, mux, "/v1/users/919000000001/shipments")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body.Shipments, 1)
	require.Equal(t, "778899", body.Shipments[0].AWB)
	require.Equal(t, "shipmozo", body.Shipments[0].Courier)
	require.Equal(t, "fp", body.Shipments[0].Fingerprint)

	_, body = get(t, mux, "/v1/users/nobody/shipments")
	require.Empty(t, body.Shipments)
}

func TestListShipments_Paged(t *testing.T) {
	mux, st := newMux(t)
	ctx := context.Background()
	for _, awb := range []string{"100001", "100002", "100003"} {
		require.NoError(t, st.CreateShipment(ctx, &models.ShipmentRecord{Owner: "u", AWB: awb, Courier: models.CourierShipmozo}))
	}

	rec, body := get(t, mux, "/v1/shipments?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body.Shipments, 2)
	require.Equal(t, "u", body.NextAfterOwner)
	require.Equal(t, "100002", body.NextAfterAWB)

	_, body = get(t, mux, "/v1/shipments?limit=2&afterOwner=u&afterAwb=100002")
	require.Len(t, body.Shipments, 1)
	require.Empty(t, body.NextAfterAWB)

	rec, _ = get(t, mux, "/v1/shipments?limit=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCouriers(t *testing.T) {
	mux, _ := newMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/couriers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"couriers":["delhivery","shipmozo"]}`, rec.Body.String())
}
