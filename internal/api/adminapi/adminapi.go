// Package adminapi exposes read-only operator endpoints over tracked
// shipments on a grpc-gateway mux.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Repository interface {
	ListShipmentsByOwner(ctx context.Context, owner models.UserID) ([]*models.ShipmentRecord, error)
	ListShipments(ctx context.Context, after models.ShipmentCursor, limit int) ([]*models.ShipmentRecord, error)
}

type Couriers interface {
	Kinds() []models.CourierKind
}

type AdminAPI struct {
	repo     Repository
	couriers Couriers
}

func New(repo Repository, couriers Couriers) *AdminAPI {
	return &AdminAPI{repo: repo, couriers: couriers}
}

// Register mounts the endpoints on mux.
func (a *AdminAPI) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		path string
		h    runtime.HandlerFunc
	}{
		{"/v1/users/{user}/shipments", a.listUserShipments(mux)},
		{"/v1/shipments", a.listShipments(mux)},
		{"/v1/couriers", a.listCouriers},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(http.MethodGet, rt.path, rt.h); err != nil {
			return err
		}
	}
	return nil
}

type Shipment struct {
	Owner                  string    `json:"owner"`
	AWB                    string    `json:"awb"`
	Courier                string    `json:"courier"`
	Fingerprint            string    `json:"fingerprint"`
	OutForDeliveryNotified bool      `json:"outForDeliveryNotified"`
	Delivered              bool      `json:"delivered"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

type ListShipmentsResponse struct {
	Shipments []Shipment `json:"shipments"`
	// NextAfterOwner/NextAfterAWB continue a paged listing; empty at the end.
	NextAfterOwner string `json:"nextAfterOwner,omitempty"`
	NextAfterAWB   string `json:"nextAfterAwb,omitempty"`
}

func toShipments(recs []*models.ShipmentRecord) []Shipment {
	out := make([]Shipment, 0, len(recs))
	for _, r := range recs {
		out = append(out, Shipment{
			Owner:                  string(r.Owner),
			AWB:                    r.AWB,
			Courier:                string(r.Courier),
			Fingerprint:            string(r.Fingerprint),
			OutForDeliveryNotified: r.OutForDeliveryNotified,
			Delivered:              r.Delivered,
			CreatedAt:              r.CreatedAt,
			UpdatedAt:              r.UpdatedAt,
		})
	}
	return out
}

func (a *AdminAPI) listUserShipments(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		user := pathParams["user"]
		if user == "" {
			writeError(mux, w, r, status.Error(codes.InvalidArgument, "user is required"))
			return
		}
		recs, err := a.repo.ListShipmentsByOwner(r.Context(), models.UserID(user))
		if err != nil {
			writeError(mux, w, r, status.Error(codes.Internal, err.Error()))
			return
		}
		writeJSON(w, ListShipmentsResponse{Shipments: toShipments(recs)})
	}
}

func (a *AdminAPI) listShipments(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		q := r.URL.Query()
		limit := 100
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 1000 {
				writeError(mux, w, r, status.Error(codes.InvalidArgument, "limit must be in 1..1000"))
				return
			}
			limit = n
		}
		after := models.ShipmentCursor{Owner: models.UserID(q.Get("afterOwner")), AWB: q.Get("afterAwb")}

		recs, err := a.repo.ListShipments(r.Context(), after, limit)
		if err != nil {
			writeError(mux, w, r, status.Error(codes.Internal, err.Error()))
			return
		}
		resp := ListShipmentsResponse{Shipments: toShipments(recs)}
		if len(recs) == limit {
			last := recs[len(recs)-1]
			resp.NextAfterOwner, resp.NextAfterAWB = string(last.Owner), last.AWB
		}
		writeJSON(w, resp)
	}
}

func (a *AdminAPI) listCouriers(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	kinds := a.couriers.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	writeJSON(w, map[string]any{"couriers": out})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, err error) {
	runtime.HTTPError(r.Context(), mux, &runtime.JSONPb{}, w, r, err)
}
