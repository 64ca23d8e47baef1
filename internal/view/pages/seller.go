package pages

import (
	"strconv"

	"github.com/nfrund/storefront/internal/domain"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// SellerData is the product creation screen.
type SellerData struct {
	Form  domain.NewProduct
	Types []string
}

// Seller renders the product form. The image is sent as multipart data.
func Seller(data SellerData) g.Node {
	f := data.Form
	return h.Section(h.Class("card seller"),
		h.H1(g.Text("New product")),
		h.Form(h.Method("post"), h.Action("/seller"), h.EncType("multipart/form-data"),
			field("name", "Name", h.Input(h.Type("text"), h.ID("name"), h.Name("name"), h.Value(f.Name), h.Required(), g.Attr("minlength", "3"))),
			field("type", "Type", h.Select(h.ID("type"), h.Name("type"), h.Required(),
				h.Option(h.Value(""), g.Text("Choose a type")),
				g.Map(data.Types, func(t string) g.Node {
					return h.Option(h.Value(t), g.If(t == f.Type, h.Selected()), g.Text(t))
				}),
			)),
			field("quantity", "Quantity", h.Input(h.Type("number"), h.ID("quantity"), h.Name("quantity"), h.Min("0"), h.Value(strconv.Itoa(f.Quantity)))),
			field("price", "Price", h.Input(h.Type("number"), h.ID("price"), h.Name("price"), h.Min("0"), h.Step("0.01"), h.Value(strconv.FormatFloat(f.Price, 'f', -1, 64)))),
			field("description", "Description", h.Textarea(h.ID("description"), h.Name("description"), h.Required(), g.Attr("minlength", "10"), g.Text(f.Description))),
			field("image", "Image", h.Input(h.Type("file"), h.ID("image"), h.Name("image"), h.Accept("image/*"))),
			h.Div(h.Class("field checkbox"),
				h.Input(h.Type("checkbox"), h.ID("published"), h.Name("published"), h.Value("true"), g.If(f.Published, h.Checked())),
				h.Label(h.For("published"), g.Text("Publish now")),
			),
			h.Button(h.Type("submit"), g.Text("Create product")),
		),
	)
}
