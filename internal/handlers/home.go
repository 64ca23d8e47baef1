package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/storefront/internal/catalog"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/guard"
	"github.com/nfrund/storefront/internal/imaging"
	"github.com/nfrund/storefront/internal/middleware"
	"github.com/nfrund/storefront/internal/view"
	"github.com/nfrund/storefront/internal/view/pages"
)

// CatalogHandler serves the catalog, product detail and seller screens.
type CatalogHandler struct {
	catalog       *catalog.Service
	maxImageBytes int64
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(svc *catalog.Service, maxImageBytes int64) *CatalogHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = imaging.DefaultMaxBytes
	}
	return &CatalogHandler{catalog: svc, maxImageBytes: maxImageBytes}
}

// HomeGet renders the published catalog (GET /home).
func (h *CatalogHandler) HomeGet(c echo.Context) error {
	ctx := c.Request().Context()
	data := pages.HomeData{UserName: defaultUserName}
	if vc, ok := middleware.VisitorFrom(c); ok {
		data.UserName = userName(vc.Session.CurrentUser())
	}

	products, err := h.catalog.ListPublished(ctx)
	if err != nil {
		middleware.FromContext(ctx).Error("Failed to load products", "error", err)
		flashes := view.GetFlashData(c)
		flashes.Error = append(flashes.Error, "The catalog could not be loaded. Please try again.")
		return renderWith(c, http.StatusOK, "Catalog", flashes, pages.Home(data))
	}
	data.Products = products
	return render(c, http.StatusOK, "Catalog", pages.Home(data))
}

// ProductGet renders one published product (GET /product/:id). Ids that
// are not numbers send the visitor back to the catalog.
func (h *CatalogHandler) ProductGet(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, guard.HomePath)
	}

	ctx := c.Request().Context()
	p, err := h.catalog.Get(ctx, id)
	if err != nil {
		middleware.FromContext(ctx).Error("Failed to load product", "product_id", id, "error", err)
		p = nil
	}
	status := http.StatusOK
	title := "Product not found"
	if p != nil {
		title = p.Name
	} else {
		status = http.StatusNotFound
	}
	return render(c, status, title, pages.ProductDetail(p))
}

// SellerGet renders the product form (GET /seller).
func (h *CatalogHandler) SellerGet(c echo.Context) error {
	return render(c, http.StatusOK, "Sell", pages.Seller(pages.SellerData{Types: domain.ProductTypes}))
}

// SellerPost creates a product from the multipart form (POST /seller).
// Invalid input re-renders the form with the submitted values.
func (h *CatalogHandler) SellerPost(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()
	log := middleware.FromContext(ctx)

	var form domain.NewProduct
	if err := c.Bind(&form); err != nil {
		return h.sellerError(c, form, "Please check the form and try again.")
	}

	upload, err := h.readUpload(c)
	if err != nil {
		return h.sellerError(c, form, imageMessage(h.maxImageBytes))
	}

	var sellerID string
	if u := vc.Session.CurrentUser(); u != nil {
		sellerID = u.ID
	}

	created, err := h.catalog.Create(ctx, form, sellerID, upload)
	switch {
	case errors.Is(err, domain.ErrInvalidProduct):
		return h.sellerError(c, form, validationMessage(err, productMessages))
	case errors.Is(err, domain.ErrInvalidImage):
		return h.sellerError(c, form, imageMessage(h.maxImageBytes))
	case err != nil:
		log.Error("Failed to create product", "error", err)
		return h.sellerError(c, form, "The product could not be saved. Please try again.")
	}

	msg := fmt.Sprintf("Product %q created.", created.Name)
	if !created.Published {
		msg += " It is saved as a draft."
	}
	view.SetFlashSuccess(c, msg)
	return c.Redirect(http.StatusSeeOther, guard.SellerPath)
}

func (h *CatalogHandler) sellerError(c echo.Context, form domain.NewProduct, msg string) error {
	flashes := view.FlashData{Error: []string{msg}}
	return renderWith(c, http.StatusUnprocessableEntity, "Sell", flashes,
		pages.Seller(pages.SellerData{Form: form, Types: domain.ProductTypes}))
}

// readUpload returns the optional image of the form. Reads stop one byte
// past the size limit so oversized files are rejected without buffering them.
func (h *CatalogHandler) readUpload(c echo.Context) (*imaging.Upload, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	return &imaging.Upload{Filename: fh.Filename, Data: data}, nil
}

func imageMessage(maxBytes int64) string {
	return fmt.Sprintf("The image must be a picture of at most %d MB.", maxBytes/(1024*1024))
}
