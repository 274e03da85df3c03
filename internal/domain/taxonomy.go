package domain

import "strings"

// Category names of the fixed taxonomy.
const (
	CategoryGroceries       = "groceries"
	CategoryFood            = "food"
	CategoryEntertainment   = "entertainment"
	CategoryUtilities       = "utilities"
	CategoryTransport       = "transport"
	CategoryTravel          = "travel"
	CategoryHealth          = "health"
	CategoryRentAndMortgage = "rent_and_mortgage"
	CategoryEducation       = "education"
	CategoryFinance         = "finance"
	CategoryPersonal        = "personal"
	CategoryShopping        = "shopping"
	CategorySavings         = "savings"
	CategoryBusiness        = "business"
	CategoryGifts           = "gifts"
	CategorySubscriptions   = "subscriptions"
	CategoryCash            = "cash"
	CategoryPets            = "pets"
	CategoryOther           = "other"
)

// CategoryDef is one taxonomy entry with the hint shown to the categorization oracle.
type CategoryDef struct {
	Name string `json:"name"`
	Hint string `json:"hint"`
}

// Taxonomy is the immutable category configuration injected into pipeline components.
// Build it with NewTaxonomy; the zero value has no categories.
type Taxonomy struct {
	defs        []CategoryDef
	known       map[string]bool
	experiences map[string]bool
	fallback    string
}

// NewTaxonomy builds a taxonomy. experiences lists the discretionary categories;
// fallback is the category unknown oracle output is mapped to.
func NewTaxonomy(defs []CategoryDef, experiences []string, fallback string) Taxonomy {
	t := Taxonomy{
		defs:        append([]CategoryDef(nil), defs...),
		known:       make(map[string]bool, len(defs)),
		experiences: make(map[string]bool, len(experiences)),
		fallback:    fallback,
	}
	for _, d := range defs {
		t.known[d.Name] = true
	}
	for _, e := range experiences {
		t.experiences[e] = true
	}
	return t
}

// DefaultTaxonomy returns the 19-category taxonomy with the fixed experiences partition.
func DefaultTaxonomy() Taxonomy {
	return NewTaxonomy([]CategoryDef{
		{CategoryGroceries, "supermarkets, food markets, grocery-delivery services"},
		{CategoryFood, "dine-out, fast food, restaurants"},
		{CategoryEntertainment, "streaming services, cinemas, concerts"},
		{CategoryUtilities, "electricity, water, internet, phone"},
		{CategoryTransport, "fuel, tolls, public transit, ride-hailing"},
		{CategoryTravel, "hotels, flights, car rentals, travel agencies"},
		{CategoryHealth, "pharmacies, hospitals, clinics, health insurance"},
		{CategoryRentAndMortgage, "rent, mortgage payments, property taxes"},
		{CategoryEducation, "tuition, courses, books, educational services"},
		{CategoryFinance, "banks, loans, investments, insurance"},
		{CategoryPersonal, "clothing, beauty, hair, personal care"},
		{CategoryShopping, "online stores, retail, e-commerce"},
		{CategorySavings, "savings accounts, retirement"},
		{CategoryBusiness, "business expenses, office supplies, services"},
		{CategoryGifts, "gifts, donations, charity"},
		{CategorySubscriptions, "monthly or yearly subscriptions"},
		{CategoryCash, "ATM withdrawals, cash deposits"},
		{CategoryPets, "pet care, veterinary services, pet supplies"},
		{CategoryOther, "anything not covered above"},
	}, []string{
		CategoryFood, CategoryEntertainment, CategoryTravel, CategoryPersonal,
		CategoryShopping, CategoryGifts, CategorySubscriptions, CategoryPets,
	}, CategoryOther)
}

// Categories returns the taxonomy entries in declaration order.
func (t Taxonomy) Categories() []CategoryDef {
	return append([]CategoryDef(nil), t.defs...)
}

// Names returns the category names in declaration order.
func (t Taxonomy) Names() []string {
	names := make([]string, 0, len(t.defs))
	for _, d := range t.defs {
		names = append(names, d.Name)
	}
	return names
}

// Contains reports whether name is a category of the taxonomy.
func (t Taxonomy) Contains(name string) bool {
	return t.known[name]
}

// IsExperience reports whether a category belongs to the experiences side of the split.
func (t Taxonomy) IsExperience(name string) bool {
	return t.experiences[name]
}

// Fallback returns the category used for unrecognized oracle output.
func (t Taxonomy) Fallback() string {
	return t.fallback
}

// Resolve maps raw oracle output onto the taxonomy.
// The second return value is false when the fallback had to be used.
func (t Taxonomy) Resolve(raw string) (string, bool) {
	name := NormalizeCategory(raw)
	if t.known[name] {
		return name, true
	}
	return t.fallback, false
}

// NormalizeCategory lower-cases and trims a category and folds separators to "_",
// so "Rent and Mortgage" and "rent-and-mortgage" both become "rent_and_mortgage".
func NormalizeCategory(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}
