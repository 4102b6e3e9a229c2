package shopify

import (
	"encoding/json"

	"github.com/utafrali/shopify-product-bridge/internal/domain"
)

// productSetMutation creates the product, its variants, stock levels and
// media in one synchronous call.
const productSetMutation = `mutation productSet($input: ProductSetInput!, $synchronous: Boolean!) {
  productSet(input: $input, synchronous: $synchronous) {
    product {
      id
      title
      handle
      status
      descriptionHtml
      createdAt
      options { id name values }
      variants(first: 250) {
        nodes {
          id
          title
          price
          inventoryQuantity
          inventoryItem { id tracked }
        }
      }
      media(first: 250) {
        nodes { id alt mediaContentType status }
      }
    }
    userErrors { field message code }
  }
}`

// variantOptionName is the single option every variant is keyed by. The
// variation title ("Red / Small") is its value.
const variantOptionName = "Title"

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   *productSetData `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type productSetData struct {
	ProductSet *productSetPayload `json:"productSet"`
}

type productSetPayload struct {
	Product    json.RawMessage `json:"product"`
	UserErrors []userError     `json:"userErrors"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

type productSetInput struct {
	Title           string            `json:"title"`
	DescriptionHTML *string           `json:"descriptionHtml,omitempty"`
	ProductOptions  []optionSetInput  `json:"productOptions"`
	Variants        []variantSetInput `json:"variants"`
	Files           []fileSetInput    `json:"files,omitempty"`
}

type optionSetInput struct {
	Name   string             `json:"name"`
	Values []optionValueInput `json:"values"`
}

type optionValueInput struct {
	Name string `json:"name"`
}

type variantSetInput struct {
	OptionValues        []variantOptionValue     `json:"optionValues"`
	Price               string                   `json:"price"`
	InventoryItem       *inventoryItemInput      `json:"inventoryItem,omitempty"`
	InventoryQuantities []inventoryQuantityInput `json:"inventoryQuantities,omitempty"`
	File                *fileSetInput            `json:"file,omitempty"`
}

type variantOptionValue struct {
	OptionName string `json:"optionName"`
	Name       string `json:"name"`
}

type inventoryItemInput struct {
	Tracked bool `json:"tracked"`
}

type inventoryQuantityInput struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
}

type fileSetInput struct {
	OriginalSource string `json:"originalSource"`
	ContentType    string `json:"contentType"`
}

func imageFile(src string) fileSetInput {
	return fileSetInput{OriginalSource: src, ContentType: "IMAGE"}
}

// buildProductSetInput maps a validated request onto the productSet input.
// Stock levels are only set when locationGID is known.
func buildProductSetInput(p domain.ProductCreationRequest, locationGID string) productSetInput {
	in := productSetInput{
		Title:           p.Title,
		DescriptionHTML: p.Description,
		Variants:        make([]variantSetInput, 0, len(p.Variations)),
	}

	option := optionSetInput{Name: variantOptionName}
	seen := make(map[string]struct{}, len(p.Variations))

	for _, v := range p.Variations {
		if _, ok := seen[v.Title]; !ok {
			seen[v.Title] = struct{}{}
			option.Values = append(option.Values, optionValueInput{Name: v.Title})
		}

		variant := variantSetInput{
			OptionValues: []variantOptionValue{{OptionName: variantOptionName, Name: v.Title}},
			Price:        v.Price.StringFixed(2),
		}
		if v.InventoryQuantity != nil {
			variant.InventoryItem = &inventoryItemInput{Tracked: true}
			if locationGID != "" {
				variant.InventoryQuantities = []inventoryQuantityInput{{
					LocationID: locationGID,
					Name:       "available",
					Quantity:   *v.InventoryQuantity,
				}}
			}
		}
		if len(v.Images) > 0 {
			f := imageFile(v.Images[0].Src)
			variant.File = &f
		}
		in.Variants = append(in.Variants, variant)
	}
	in.ProductOptions = []optionSetInput{option}

	for _, src := range p.ImageSources() {
		in.Files = append(in.Files, imageFile(src))
	}
	return in
}
