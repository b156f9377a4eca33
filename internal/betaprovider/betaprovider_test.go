package betaprovider

import "testing"

func TestStatic_ReturnsOkFalseForUnknownSymbol(t *testing.T) {
	p := Static{"AAA": 1.2}

	if _, ok := p.Beta("BBB"); ok {
		t.Fatal("expected ok=false for a symbol with no configured beta")
	}
}

func TestStatic_ReturnsConfiguredBeta(t *testing.T) {
	p := Static{"AAA": 1.2}

	beta, ok := p.Beta("AAA")
	if !ok {
		t.Fatal("expected ok=true for a configured symbol")
	}
	if beta != 1.2 {
		t.Fatalf("got beta %v, want 1.2", beta)
	}
}

var _ Provider = Static(nil)
