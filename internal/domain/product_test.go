package domain

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreationResult_Outcome(t *testing.T) {
	tests := []struct {
		name   string
		result CreationResult
		want   string
	}{
		{name: "created", result: Created(json.RawMessage(`{"id":"gid://shopify/Product/1"}`)), want: OutcomeCreated},
		{name: "rejected", result: Rejected(map[string]any{"title": []string{"taken"}}), want: OutcomeRejected},
		{name: "rejected with empty map", result: Rejected(nil), want: OutcomeRejected},
		{name: "failed", result: Failed("timeout"), want: OutcomeFailed},
		{name: "zero value", result: CreationResult{}, want: OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Outcome())
		})
	}
}

func TestCredentialsFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderShopDomain, "  demo.myshopify.com ")
	h.Set(HeaderAccessToken, "shpat_123")

	creds := CredentialsFromHeaders(h.Get)
	assert.Equal(t, "demo.myshopify.com", creds.ShopDomain)
	assert.True(t, creds.Complete())

	h.Set(HeaderAccessToken, "   ")
	assert.False(t, CredentialsFromHeaders(h.Get).Complete())
}

func TestProductCreationRequest_ImageSources(t *testing.T) {
	req := ProductCreationRequest{
		Variations: []Variation{
			{Images: []Image{{Src: "https://cdn.example.com/a.png"}, {Src: "https://cdn.example.com/b.png"}}},
			{Images: []Image{{Src: "https://cdn.example.com/a.png"}}},
			{},
		},
	}

	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}, req.ImageSources())
	assert.False(t, req.HasInventory())

	qty := int64(3)
	req.Variations[2].InventoryQuantity = &qty
	assert.True(t, req.HasInventory())
}
