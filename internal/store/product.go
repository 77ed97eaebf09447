package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ryshoes/storefront/types"
)

// ProductRepository handles persistence for products and their images.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, price, description, size, catalog_image_url, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (types.Product, error) {
	var product types.Product
	var size sql.NullString
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Description,
		&size,
		&product.CatalogImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}
	if size.Valid {
		value := size.String
		product.Size = &value
	}
	return product, nil
}

// List returns every product, newest first. Detail images are not loaded.
func (r *ProductRepository) List(ctx context.Context) ([]types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Get returns a product with its detail images.
func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Product{}, err
	}

	images, err := r.listImages(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	product.Images = images
	return product, nil
}

func (r *ProductRepository) listImages(ctx context.Context, productID int) ([]types.ProductImage, error) {
	const query = `SELECT id, product_id, url FROM product_images WHERE product_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]types.ProductImage, 0)
	for rows.Next() {
		var image types.ProductImage
		if err := rows.Scan(&image.ID, &image.ProductID, &image.URL); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// Create inserts the product and its detail images in one transaction.
func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Product{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO products (name, price, description, size, catalog_image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		product.Size,
		product.CatalogImageURL,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID); err != nil {
		return types.Product{}, err
	}

	urls := make([]string, 0, len(product.Images))
	for _, image := range product.Images {
		urls = append(urls, image.URL)
	}
	images, err := insertImages(ctx, tx, product.ID, urls)
	if err != nil {
		return types.Product{}, err
	}
	product.Images = images

	if err := tx.Commit(); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

// Update rewrites the product row and appends newImages in one transaction.
func (r *ProductRepository) Update(ctx context.Context, product types.Product, newImages []string) (types.Product, error) {
	product.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Product{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		UPDATE products
		SET name = $1,
			price = $2,
			description = $3,
			size = $4,
			catalog_image_url = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := tx.ExecContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		product.Size,
		product.CatalogImageURL,
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		return types.Product{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Product{}, err
	}
	if affected == 0 {
		return types.Product{}, ErrNotFound
	}

	if _, err := insertImages(ctx, tx, product.ID, newImages); err != nil {
		return types.Product{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Product{}, err
	}
	return r.Get(ctx, product.ID)
}

// Delete removes the product. Detail images go with it via ON DELETE CASCADE.
func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func insertImages(ctx context.Context, tx *sql.Tx, productID int, urls []string) ([]types.ProductImage, error) {
	const query = `INSERT INTO product_images (product_id, url) VALUES ($1, $2) RETURNING id`
	images := make([]types.ProductImage, 0, len(urls))
	for _, url := range urls {
		image := types.ProductImage{ProductID: productID, URL: url}
		if err := tx.QueryRowContext(ctx, query, productID, url).Scan(&image.ID); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, nil
}
