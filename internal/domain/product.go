package domain

import "github.com/shopspring/decimal"

// Product is one catalog entry. Products are immutable once generated;
// sales records denormalize Name and Category at generation time.
type Product struct {
	ProductID string          `json:"product_id"` // "PROD%04d", 1-based
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"` // unit price, two fractional digits
}

// Identifier formats assigned at generation time.
const (
	ProductIDFormat     = "PROD%04d"
	TransactionIDFormat = "TXN%06d"
)

// Categories is the fixed catalog category set. Generation draws uniformly
// from it.
var Categories = []string{
	"Electronics",
	"Clothing",
	"Home & Garden",
	"Books",
	"Sports & Outdoors",
	"Toys & Games",
	"Food & Beverage",
	"Health & Beauty",
}

// PriceRange bounds the unit-price draw for a category in whole currency
// units, both ends inclusive.
type PriceRange struct {
	Min int64
	Max int64
}

// PriceRanges maps each category to its price bounds.
var PriceRanges = map[string]PriceRange{
	"Electronics":       {Min: 50, Max: 1500},
	"Clothing":          {Min: 15, Max: 200},
	"Home & Garden":     {Min: 20, Max: 500},
	"Books":             {Min: 10, Max: 60},
	"Sports & Outdoors": {Min: 15, Max: 300},
	"Toys & Games":      {Min: 10, Max: 100},
	"Food & Beverage":   {Min: 5, Max: 50},
	"Health & Beauty":   {Min: 8, Max: 80},
}

// ProductNames is the name pool per category.
var ProductNames = map[string][]string{
	"Electronics":       {"Laptop", "Smartphone", "Tablet", "Headphones", "Monitor", "Keyboard", "Mouse", "Webcam"},
	"Clothing":          {"T-Shirt", "Jeans", "Jacket", "Sweater", "Dress", "Shorts", "Hoodie", "Socks"},
	"Home & Garden":     {"Chair", "Table", "Lamp", "Rug", "Curtains", "Vase", "Mirror", "Clock"},
	"Books":             {"Novel", "Textbook", "Cookbook", "Biography", "Comic", "Magazine", "Journal", "Guide"},
	"Sports & Outdoors": {"Ball", "Bike", "Tent", "Backpack", "Yoga Mat", "Weights", "Running Shoes", "Water Bottle"},
	"Toys & Games":      {"Board Game", "Puzzle", "Action Figure", "Doll", "Building Blocks", "Card Game", "Stuffed Animal", "Remote Car"},
	"Food & Beverage":   {"Coffee", "Tea", "Snacks", "Chocolate", "Juice", "Cookies", "Nuts", "Energy Bar"},
	"Health & Beauty":   {"Shampoo", "Lotion", "Soap", "Toothpaste", "Perfume", "Makeup", "Vitamins", "Sunscreen"},
}
