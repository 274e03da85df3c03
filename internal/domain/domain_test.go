package domain

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"groceries", "groceries"},
		{"  Groceries  ", "groceries"},
		{"Rent and Mortgage", "rent_and_mortgage"},
		{"rent-and-mortgage", "rent_and_mortgage"},
		{"RENT_AND_MORTGAGE", "rent_and_mortgage"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.input))
		})
	}
}

func TestTaxonomy_Resolve(t *testing.T) {
	tax := DefaultTaxonomy()

	got, ok := tax.Resolve("Transport")
	assert.True(t, ok)
	assert.Equal(t, CategoryTransport, got)

	got, ok = tax.Resolve("crypto")
	assert.False(t, ok)
	assert.Equal(t, CategoryOther, got)
}

func TestDefaultTaxonomy(t *testing.T) {
	tax := DefaultTaxonomy()
	assert.Len(t, tax.Names(), 19)
	assert.Equal(t, CategoryGroceries, tax.Names()[0])
	assert.Equal(t, CategoryOther, tax.Fallback())

	experiences := 0
	for _, n := range tax.Names() {
		if tax.IsExperience(n) {
			experiences++
		}
	}
	assert.Equal(t, 8, experiences)
	assert.True(t, tax.IsExperience(CategoryPets))
	assert.False(t, tax.IsExperience(CategoryGroceries))

	// Callers cannot mutate the shared definitions.
	defs := tax.Categories()
	defs[0].Name = "mutated"
	assert.Equal(t, CategoryGroceries, tax.Categories()[0].Name)
}

func TestDefaultPersonas(t *testing.T) {
	table := DefaultPersonas()
	require.Equal(t, PersonaCount, table.Len())

	p, ok := table.Get(3)
	require.True(t, ok)
	assert.Equal(t, "The Cautious Saver", p.Name)
	assert.Equal(t, "Penny_the_Penguin", p.CharacterAlias)

	_, ok = table.Get(0)
	assert.False(t, ok)
	_, ok = table.Get(9)
	assert.False(t, ok)

	for i, p := range table.All() {
		assert.Equal(t, i+1, p.ID)
	}
}

func TestNewPersonaTable(t *testing.T) {
	all := DefaultPersonas().All()

	shuffled := append([]PersonaProfile{all[7]}, all[:7]...)
	table, err := NewPersonaTable(shuffled)
	require.NoError(t, err)
	p, _ := table.Get(8)
	assert.Equal(t, "Explorer_Ellie", p.CharacterAlias)

	_, err = NewPersonaTable(all[:7])
	assert.Error(t, err)

	dup := append([]PersonaProfile(nil), all...)
	dup[1].ID = 1
	_, err = NewPersonaTable(dup)
	assert.Error(t, err)
}

func TestTransaction_Validate(t *testing.T) {
	valid := func() Transaction {
		return Transaction{
			Date:        civil.Date{Year: 2024, Month: 2, Day: 29},
			Merchant:    "Shell",
			Amount:      decimal.RequireFromString("-40.10"),
			AccountName: "Main",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Transaction) {}},
		{name: "zero date", mutate: func(tx *Transaction) { tx.Date = civil.Date{} }, wantErr: true},
		{name: "impossible date", mutate: func(tx *Transaction) { tx.Date = civil.Date{Year: 2023, Month: 2, Day: 29} }, wantErr: true},
		{name: "blank merchant", mutate: func(tx *Transaction) { tx.Merchant = " " }, wantErr: true},
		{name: "blank account", mutate: func(tx *Transaction) { tx.AccountName = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedInput))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTransaction_MonthAndOutflow(t *testing.T) {
	tx := Transaction{Date: civil.Date{Year: 2024, Month: 3, Day: 7}, Amount: decimal.NewFromInt(-5)}
	assert.Equal(t, "2024-03", tx.Month())
	assert.True(t, tx.IsOutflow())

	tx.Amount = decimal.NewFromInt(5)
	assert.False(t, tx.IsOutflow())
}

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Card payment to SHELL #123.", "card payment to shell 123"},
		{"  Café Noir!  ", "café noir"},
		{"under_score stays", "under_score stays"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDescription(tt.in))
		})
	}
}

func TestParseDateAndAmount(t *testing.T) {
	d, err := ParseDate("2024-03-01T10:22:00Z")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, d)

	_, err = ParseDate("01/03/2024")
	assert.True(t, errors.Is(err, ErrMalformedInput))

	a, err := ParseAmount(" -12.50 ")
	require.NoError(t, err)
	assert.True(t, a.Equal(decimal.RequireFromString("-12.5")))

	_, err = ParseAmount("twelve")
	assert.True(t, errors.Is(err, ErrMalformedInput))
}
