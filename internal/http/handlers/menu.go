package handlers

import (
	"net/http"
	"time"

	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type menuItem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Category   string    `json:"category"`
	Available  bool      `json:"available"`
	TrackStock bool      `json:"trackStock"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PublicMenu lists what customers can order right now. Menu
// administration itself lives outside this service.
func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `
		select id, name, price, category, available, track_stock, created_at
		from menu_items where available order by category, name
	`)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer rows.Close()

	items := make([]menuItem, 0)
	for rows.Next() {
		var item menuItem
		var price pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.Name, &price, &item.Category, &item.Available,
			&item.TrackStock, &item.CreatedAt); err != nil {
			h.writeError(w, err)
			return
		}
		item.Price = numericFloat(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, items)
}
