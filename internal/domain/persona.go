package domain

import "fmt"

// PersonaCount is the number of fixed persona archetypes.
const PersonaCount = 8

// PersonaProfile is one of the fixed behavioral archetypes.
type PersonaProfile struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	CharacterAlias string `json:"character_alias"`
	Description    string `json:"description"`
}

// PersonaTable is the immutable persona reference data, indexed by id 1..PersonaCount.
type PersonaTable struct {
	profiles []PersonaProfile
}

// NewPersonaTable builds a table. Profiles must carry ids 1..PersonaCount exactly once.
func NewPersonaTable(profiles []PersonaProfile) (PersonaTable, error) {
	if len(profiles) != PersonaCount {
		return PersonaTable{}, fmt.Errorf("NewPersonaTable: got %d profiles, want %d", len(profiles), PersonaCount)
	}
	ordered := make([]PersonaProfile, PersonaCount)
	for _, p := range profiles {
		if p.ID < 1 || p.ID > PersonaCount {
			return PersonaTable{}, fmt.Errorf("NewPersonaTable: persona id %d out of range", p.ID)
		}
		if ordered[p.ID-1].ID != 0 {
			return PersonaTable{}, fmt.Errorf("NewPersonaTable: duplicate persona id %d", p.ID)
		}
		ordered[p.ID-1] = p
	}
	return PersonaTable{profiles: ordered}, nil
}

// DefaultPersonas returns the eight built-in personas.
func DefaultPersonas() PersonaTable {
	return PersonaTable{profiles: []PersonaProfile{
		{1, "The Budgeting Maestro", "Maestro_Moolah",
			"Meticulously plans every expense, tracks budgets diligently, and always knows where every cent goes."},
		{2, "The Spontaneous Spender", "Flashy_Fin",
			"Lives in the moment, often making impulsive purchases for instant gratification."},
		{3, "The Cautious Saver", "Penny_the_Penguin",
			"Prioritizes saving over spending, often setting aside funds for future security."},
		{4, "The Investment Enthusiast", "Bullish_Benny",
			"Always looking for opportunities to grow wealth through various investments."},
		{5, "The Deal Hunter", "Bargain_Buzzy",
			"Always on the lookout for discounts, coupons, and the best deals."},
		{6, "The Minimalist", "Zen_Zeke",
			"Prefers simplicity, avoids unnecessary expenses, and values experiences over possessions."},
		{7, "The Generous Giver", "Charity_Charlie",
			"Frequently donates to causes, helps friends in need, and values sharing wealth."},
		{8, "The Financial Adventurer", "Explorer_Ellie",
			"Explores new financial tools, apps, and unconventional methods to manage money."},
	}}
}

// Get returns the persona with the given id.
func (t PersonaTable) Get(id int) (PersonaProfile, bool) {
	if id < 1 || id > len(t.profiles) {
		return PersonaProfile{}, false
	}
	return t.profiles[id-1], true
}

// All returns the personas ordered by id.
func (t PersonaTable) All() []PersonaProfile {
	return append([]PersonaProfile(nil), t.profiles...)
}

// Len returns the number of personas in the table.
func (t PersonaTable) Len() int {
	return len(t.profiles)
}
