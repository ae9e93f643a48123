package ai

import "testing"

func TestDefaultModelsAreCataloged(t *testing.T) {
	for _, p := range Providers() {
		name, ok := DefaultModel(p)
		if !ok {
			t.Fatalf("provider %s has no default model", p)
		}
		mi, ok := LookupModel(name)
		if !ok || mi.Provider != p {
			t.Fatalf("default model %s for %s missing from catalog", name, p)
		}
	}
}

func TestCatalogFilterAndOrder(t *testing.T) {
	all := Catalog("")
	for i := 1; i < len(all); i++ {
		a, b := all[i-1], all[i]
		if a.Provider > b.Provider || (a.Provider == b.Provider && a.Name > b.Name) {
			t.Fatalf("catalog not sorted at %d: %s/%s then %s/%s", i, a.Provider, a.Name, b.Provider, b.Name)
		}
	}
	for _, m := range Catalog(ProviderOllama) {
		if m.Provider != ProviderOllama {
			t.Fatalf("filter leaked %s", m.Name)
		}
	}
}

func TestEstimateCostUSD(t *testing.T) {
	cost, ok := EstimateCostUSD("openai/gpt-4o", 1000, 1000)
	if !ok || cost <= 0 {
		t.Fatalf("expected positive cost, got %v %v", cost, ok)
	}
	if _, ok := EstimateCostUSD("unknown/model", 1, 1); ok {
		t.Fatalf("unknown model should not be priced")
	}
}
