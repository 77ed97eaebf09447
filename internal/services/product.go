package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/metrics"
	"github.com/ryshoes/storefront/internal/mq"
	"github.com/ryshoes/storefront/types"
	"github.com/sirupsen/logrus"
)

const productBlobDir = "products"

// BlobStore persists uploaded images and hands back their references.
type BlobStore interface {
	Upload(ctx context.Context, dir, filename string, data []byte, contentType string) (string, error)
	DeleteURL(ctx context.Context, ref string) error
}

// EventPublisher sends domain events to the message broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, event mq.Event) (string, error)
}

// ProductInput is the admin product form. Price is kept raw so it can be
// coerced and reported like any other field.
type ProductInput struct {
	Name         string
	Price        string
	Description  string
	Size         string
	CatalogImage Upload
	DetailImages []Upload
}

type productFields struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Size        string `json:"size" validate:"max=32"`
}

var productMessages = map[string]string{
	"name":        "Name is required",
	"description": "Description is required",
	"size":        "Size must be at most 32 characters",
}

type validatedProduct struct {
	name         string
	price        int64
	description  string
	size         *string
	catalogImage *imageUpload
	detailImages []imageUpload
}

type imageUpload struct {
	Upload
	contentType string
}

// ProductService runs the admin product workflows: every mutation keeps
// blob storage, the database and the catalog cache in step.
type ProductService struct {
	repo      ProductRepository
	blobs     BlobStore
	catalog   *CatalogService
	publisher EventPublisher
}

func NewProductService(repo ProductRepository, blobs BlobStore, catalog *CatalogService, publisher EventPublisher) *ProductService {
	return &ProductService{
		repo:      repo,
		blobs:     blobs,
		catalog:   catalog,
		publisher: publisher,
	}
}

// List returns every product for the admin table, newest first.
func (s *ProductService) List(ctx context.Context) ([]types.Product, error) {
	return s.catalog.List(ctx)
}

// Create validates input, writes every image to blob storage and inserts
// the product with its detail images.
func (s *ProductService) Create(ctx context.Context, input ProductInput) (types.Product, error) {
	valid, err := validateProductInput(input, true)
	if err != nil {
		return types.Product{}, err
	}

	var written []string
	catalogURL, err := s.upload(ctx, *valid.catalogImage, &written)
	if err != nil {
		return types.Product{}, err
	}

	images := make([]types.ProductImage, 0, len(valid.detailImages))
	for _, image := range valid.detailImages {
		url, err := s.upload(ctx, image, &written)
		if err != nil {
			return types.Product{}, err
		}
		images = append(images, types.ProductImage{URL: url})
	}

	product, err := s.repo.Create(ctx, types.Product{
		Name:            valid.name,
		Price:           valid.price,
		Description:     valid.description,
		Size:            valid.size,
		CatalogImageURL: catalogURL,
		Images:          images,
	})
	if err != nil {
		s.removeBlobs(ctx, written)
		return types.Product{}, err
	}

	s.afterMutation(ctx, mq.EventProductCreated, "create", product.ID, product)
	return product, nil
}

// Update validates input, swaps the catalog image when a new one is given
// and appends any new detail images. A replaced catalog blob is removed only
// after the row update succeeds, not before the new image is written, so a
// failed update leaves the product pointing at a blob that still exists.
func (s *ProductService) Update(ctx context.Context, id int, input ProductInput) (types.Product, error) {
	if id < 1 {
		return types.Product{}, ErrNotFound
	}

	valid, err := validateProductInput(input, false)
	if err != nil {
		return types.Product{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Product{}, mapStoreError(err)
	}

	var written []string
	catalogURL := current.CatalogImageURL
	if valid.catalogImage != nil {
		catalogURL, err = s.upload(ctx, *valid.catalogImage, &written)
		if err != nil {
			return types.Product{}, err
		}
	}

	newImages := make([]string, 0, len(valid.detailImages))
	for _, image := range valid.detailImages {
		url, err := s.upload(ctx, image, &written)
		if err != nil {
			return types.Product{}, err
		}
		newImages = append(newImages, url)
	}

	updated, err := s.repo.Update(ctx, types.Product{
		ID:              id,
		Name:            valid.name,
		Price:           valid.price,
		Description:     valid.description,
		Size:            valid.size,
		CatalogImageURL: catalogURL,
	}, newImages)
	if err != nil {
		s.removeBlobs(ctx, written)
		return types.Product{}, mapStoreError(err)
	}

	if catalogURL != current.CatalogImageURL {
		s.removeBlobs(ctx, []string{current.CatalogImageURL})
	}

	s.afterMutation(ctx, mq.EventProductUpdated, "update", updated.ID, updated)
	return updated, nil
}

// Delete removes every blob of the product, best-effort, then the product
// row and its detail image rows.
func (s *ProductService) Delete(ctx context.Context, id int) error {
	if id < 1 {
		return ErrNotFound
	}

	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}

	s.removeBlobs(ctx, product.ImageURLs())

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}

	s.afterMutation(ctx, mq.EventProductDeleted, "delete", id, map[string]any{"id": id, "name": product.Name})
	return nil
}

// UploadImage stores a single image outside of any product and returns its
// public reference.
func (s *ProductService) UploadImage(ctx context.Context, file Upload) (string, error) {
	contentType, ok := detectImage(file)
	if !ok {
		verr := &ValidationError{}
		if file.Empty() {
			verr.Add("file", "No file provided")
		} else {
			verr.Add("file", "File must be an image")
		}
		return "", verr
	}
	var written []string
	return s.upload(ctx, imageUpload{Upload: file, contentType: contentType}, &written)
}

func (s *ProductService) upload(ctx context.Context, image imageUpload, written *[]string) (string, error) {
	url, err := s.blobs.Upload(ctx, productBlobDir, image.Filename, image.Data, image.contentType)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("filename", image.Filename).Error("image upload failed")
		s.removeBlobs(ctx, *written)
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	*written = append(*written, url)
	return url, nil
}

// removeBlobs deletes each reference and keeps going on failure.
func (s *ProductService) removeBlobs(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.blobs.DeleteURL(ctx, ref); err != nil {
			metrics.BlobCleanupFailures.Inc()
			logging.FromContext(ctx).WithError(err).WithField("blob", ref).Warn("blob cleanup failed")
		}
	}
}

func (s *ProductService) afterMutation(ctx context.Context, eventType, operation string, productID int, payload any) {
	s.catalog.Invalidate(ctx)
	metrics.ProductMutations.WithLabelValues(operation).Inc()

	entry := logging.FromContext(ctx).WithFields(logrus.Fields{
		"product_id": productID,
		"operation":  operation,
	})
	entry.Info("product mutated")

	if s.publisher == nil {
		return
	}
	event, err := mq.NewEvent(eventType, productID, payload)
	if err == nil {
		_, err = s.publisher.PublishEvent(ctx, mq.ChannelProducts, event)
	}
	if err != nil {
		entry.WithError(err).Warn("product event not published")
	}
}

func validateProductInput(input ProductInput, requireImages bool) (validatedProduct, error) {
	fields := productFields{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Size:        strings.TrimSpace(input.Size),
	}
	verr := validateStruct(fields, productMessages)

	price, err := strconv.ParseInt(strings.TrimSpace(input.Price), 10, 64)
	if err != nil || price < 1 {
		verr.Add("price", "Price must be a positive number")
	}

	valid := validatedProduct{
		name:        fields.Name,
		price:       price,
		description: fields.Description,
	}
	if fields.Size != "" {
		size := fields.Size
		valid.size = &size
	}

	switch {
	case !input.CatalogImage.Empty():
		contentType, ok := detectImage(input.CatalogImage)
		if !ok {
			verr.Add("catalogImage", "Catalog image must be an image file")
		} else {
			valid.catalogImage = &imageUpload{Upload: input.CatalogImage, contentType: contentType}
		}
	case requireImages:
		verr.Add("catalogImage", "Catalog image is required")
	}

	details := nonEmpty(input.DetailImages)
	if requireImages && len(details) == 0 {
		verr.Add("detailImages", "At least one detail image is required")
	}
	for _, detail := range details {
		contentType, ok := detectImage(detail)
		if !ok {
			verr.Add("detailImages", "Detail images must be image files")
			continue
		}
		valid.detailImages = append(valid.detailImages, imageUpload{Upload: detail, contentType: contentType})
	}

	if err := verr.OrNil(); err != nil {
		return validatedProduct{}, err
	}
	return valid, nil
}
