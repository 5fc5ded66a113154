package handlers

import (
	"time"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/models"
)

const uploadsPrefix = "/uploads/"

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(msg string) Envelope   { return Envelope{Success: true, Message: msg} }
func fail(msg string) Envelope { return Envelope{Success: false, Message: msg} }

// StarResponse always carries all three fields, success or not.
type StarResponse struct {
	Success bool   `json:"success"`
	Starred bool   `json:"starred"`
	Message string `json:"message"`
}

type UserView struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

func userView(id domain.Identity) UserView {
	return UserView{ID: id.UserID, Email: id.Email, Role: string(id.Role), IsAdmin: id.IsAdmin()}
}

type AuthResponse struct {
	Envelope
	User      UserView   `json:"user"`
	Redirect  string     `json:"redirect,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type ProductView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url,omitempty"`
	PDFURL      string    `json:"pdf_url,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	Starred     bool      `json:"starred"`
	CreatedAt   time.Time `json:"created_at"`
}

func fileURL(key string) string {
	if key == "" {
		return ""
	}
	return uploadsPrefix + key
}

func productView(p models.Product, starred map[uint]bool) ProductView {
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		ImageURL:    fileURL(p.ImageKey),
		PDFURL:      fileURL(p.PDFKey),
		VideoURL:    fileURL(p.VideoKey),
		Starred:     starred[p.ID],
		CreatedAt:   p.CreatedAt,
	}
}

func productViews(products []models.Product, starred map[uint]bool) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p, starred))
	}
	return out
}

type ProductResponse struct {
	Envelope
	Product ProductView `json:"product"`
}

type ProductListResponse struct {
	Envelope
	Products   []ProductView `json:"products"`
	StarredIDs []uint        `json:"starred_ids,omitempty"`
}

type DashboardResponse struct {
	Envelope
	Products  []ProductView `json:"products"`
	Users     int64         `json:"users"`
	Favorites int64         `json:"favorites"`
}
