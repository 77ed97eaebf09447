package types

import "time"

// Product represents a single second-hand item listed in the catalog.
// Every product is one-of-a-kind; there is no stock counter.
type Product struct {
	// ID is the unique identifier of the product.
	ID int `json:"id" db:"id"`

	// Name is the human-readable title of the item.
	Name string `json:"name" db:"name"`

	// Price is the asking price in the smallest currency unit. Always >= 1.
	Price int64 `json:"price" db:"price"`

	// Description is the free-form condition and detail text.
	Description string `json:"description" db:"description"`

	// Size is an optional size label (e.g. "42", "M"). Nil when not set.
	Size *string `json:"size" db:"size"`

	// CatalogImageURL references the blob shown in listings,
	// in the form /media/products/<name>.
	CatalogImageURL string `json:"catalogImageUrl" db:"catalog_image_url"`

	// Images are the detail images shown on the product page, oldest first.
	Images []ProductImage `json:"images,omitempty"`

	// CreatedAt is the timestamp at which the product was listed.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProductImage is a detail image attached to exactly one product.
type ProductImage struct {
	ID        int    `json:"id" db:"id"`
	ProductID int    `json:"productId" db:"product_id"`
	URL       string `json:"url" db:"url"`
}

// SizeValue returns the size label or an empty string.
func (p Product) SizeValue() string {
	if p.Size == nil {
		return ""
	}
	return *p.Size
}

// ImageURLs returns every blob reference owned by the product,
// catalog image first.
func (p Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images)+1)
	if p.CatalogImageURL != "" {
		urls = append(urls, p.CatalogImageURL)
	}
	for _, image := range p.Images {
		urls = append(urls, image.URL)
	}
	return urls
}
