package pages

import (
	"fmt"
	"strconv"

	"github.com/nfrund/storefront/internal/domain"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// HomeData is the catalog screen.
type HomeData struct {
	UserName string
	Products []domain.Product
}

// Home renders the greeting and the grid of published products.
func Home(data HomeData) g.Node {
	return h.Section(
		h.H1(g.Textf("Welcome, %s", data.UserName)),
		g.If(len(data.Products) == 0, h.P(h.Class("empty"), g.Text("No products available yet."))),
		h.Div(h.Class("grid"),
			g.Map(data.Products, productCard),
		),
	)
}

func productCard(p domain.Product) g.Node {
	return h.Article(h.Class("product-card"),
		h.A(h.Href(productPath(p.ID)),
			productImage(p),
			h.H2(g.Text(p.Name)),
		),
		h.P(h.Class("product-type"), g.Text(p.Type)),
		h.P(h.Class("price"), g.Text(formatPrice(p.Price))),
	)
}

func productImage(p domain.Product) g.Node {
	if p.Image == nil || *p.Image == "" {
		return h.Div(h.Class("product-image placeholder"), g.Text("No image"))
	}
	return h.Img(h.Class("product-image"), h.Src(*p.Image), h.Alt(p.Name))
}

func productPath(id int64) string {
	return "/product/" + strconv.FormatInt(id, 10)
}

func formatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

// ProductDetail renders one product or the not-found state when p is nil.
func ProductDetail(p *domain.Product) g.Node {
	if p == nil {
		return NotFound("Product not found", "The product does not exist or is not published.")
	}
	level, label := p.Availability()
	return h.Article(h.Class("product-detail"),
		h.A(h.Href("/home"), g.Text("← Back to catalog")),
		productImage(*p),
		h.H1(g.Text(p.Name)),
		h.P(h.Class("product-type"), g.Text(p.Type)),
		h.P(h.Class("price"), g.Text(formatPrice(p.Price))),
		h.P(h.Class("availability availability-"+level), g.Text(label)),
		h.P(h.Class("description"), g.Text(p.Description)),
	)
}

// NotFound renders a message block for missing content.
func NotFound(title, message string) g.Node {
	return h.Section(h.Class("card not-found"),
		h.H1(g.Text(title)),
		h.P(g.Text(message)),
		h.A(h.Href("/home"), g.Text("Back to catalog")),
	)
}
