package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"          json:"id"`
	Email        string    `gorm:"uniqueIndex;size:254;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                          json:"-"`
	Role         string    `gorm:"size:16;not null;default:customer" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:100;not null"        json:"name"`
	Description string    `gorm:"size:1000"                json:"description"`
	Category    string    `gorm:"size:100;index"           json:"category"`
	Price       float64   `gorm:"not null;default:0"       json:"price"`
	ImageKey    string    `gorm:"size:255"                 json:"image_key,omitempty"`
	PDFKey      string    `gorm:"column:pdf_key;size:255"  json:"pdf_key,omitempty"`
	VideoKey    string    `gorm:"size:255"                 json:"video_key,omitempty"`
	CreatedBy   uint      `gorm:"index"                    json:"created_by"`
	CreatedAt   time.Time `gorm:"index"                    json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileKeys lists the storage keys this product references.
func (p *Product) FileKeys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{p.ImageKey, p.PDFKey, p.VideoKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type Favorite struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_pair"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_favorite_pair;index"`
	CreatedAt time.Time `gorm:"index"`

	User    User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Product Product `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Session struct {
	ID        uint   `gorm:"primaryKey"                    json:"id"`
	JTI       string `gorm:"uniqueIndex;size:36;not null"  json:"jti"`
	UserID    uint   `gorm:"index;not null"                json:"user_id"`
	ExpiresAt int64  `gorm:"not null"                      json:"expires_at"`
	Revoked   bool   `gorm:"not null;default:false"        json:"revoked"`
	CreatedAt time.Time
}
