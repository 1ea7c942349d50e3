// Package details derives display metadata (title, brand, description,
// feature list) for catalog products.
package details

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/rng"
)

const (
	streamTag    = "details"
	featureCount = 4
)

// DetailedProduct is a catalog entry decorated with display metadata.
type DetailedProduct struct {
	domain.Product
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	Features    []string `json:"features"`
}

type template struct {
	brands     []string
	adjectives []string
	features   []string
}

var templates = map[string]template{
	"Electronics": {
		brands:     []string{"TechPro", "DigiMax", "SmartLife", "ElectraVolt", "NexGen"},
		adjectives: []string{"Advanced", "Ultra", "Pro", "Smart", "Wireless"},
		features:   []string{"Long battery life", "Fast charging", "Bluetooth connectivity", "LCD display", "Voice control"},
	},
	"Home & Garden": {
		brands:     []string{"HomeStyle", "GardenPro", "CozyLiving", "DomesticPlus", "GreenNest"},
		adjectives: []string{"Premium", "Deluxe", "Essential", "Modern", "Classic"},
		features:   []string{"Weather resistant", "Heat resistant", "Easy assembly", "Easy to clean", "Space saving"},
	},
	"Clothing": {
		brands:     []string{"UrbanWear", "StyleFit", "ComfortPlus", "TrendyThreads", "ClassicWear"},
		adjectives: []string{"Comfortable", "Stylish", "Premium", "Casual", "Lightweight"},
		features:   []string{"Machine washable", "Breathable fabric", "Wrinkle resistant", "Stretch fit", "Quick dry"},
	},
}

var defaultTemplate = template{
	brands:     []string{"ValueBrand", "QualityFirst", "TrustMark", "PrimePick", "BestChoice"},
	adjectives: []string{"Quality", "Premium", "Essential", "Classic", "Professional"},
	features:   []string{"High quality materials", "Durable construction", "Easy to use", "Great value", "Long lasting"},
}

// Generate decorates every product with deterministic mock details. Each
// product draws from its own seed-derived stream, so growing the catalog
// keeps existing details stable. Categories without a dedicated template
// fall back to a generic one.
func Generate(products []domain.Product, seed int64) []DetailedProduct {
	ctx := rng.New(seed)
	out := make([]DetailedProduct, len(products))
	for i, p := range products {
		r := ctx.Stream(streamTag, p.ProductID)
		tpl, ok := templates[p.Category]
		if !ok {
			tpl = defaultTemplate
		}

		brand := tpl.brands[r.IntN(len(tpl.brands))]
		adjective := tpl.adjectives[r.IntN(len(tpl.adjectives))]
		features := sample(r, tpl.features, featureCount)

		out[i] = DetailedProduct{
			Product:     p,
			Title:       fmt.Sprintf("%s %s %s Item", brand, adjective, p.Category),
			Description: fmt.Sprintf("Quality %s product for everyday use. %s. %s.", strings.ToLower(p.Category), features[0], features[1]),
			Brand:       brand,
			Features:    features,
		}
	}
	return out
}

// sample draws k items without replacement, order-significant.
func sample(r *rand.Rand, items []string, k int) []string {
	if k > len(items) {
		k = len(items)
	}
	pool := slices.Clone(items)
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
