package parser

import (
	"os"
	"testing"

	"reqtrace/internal/annotation"
)

func TestGoParser_Placements(t *testing.T) {
	src := `// Payments module
// @req FR:billing/payments
package billing

// @req FR:billing/invoice.create
// CreateInvoice makes an invoice.
func CreateInvoice() {}

// @req FR:billing/invoice.model
type Invoice struct{}
`
	p := NewGoParser()
	res, err := p.Parse("billing.go", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Tags) != 3 {
		t.Fatalf("expected 3 tags, got %d: %v", len(res.Tags), res.Tags)
	}

	if res.Tags[0].Placement != annotation.PlacementModule || res.Tags[0].Line != 2 {
		t.Errorf("module tag wrong: %+v", res.Tags[0])
	}
	if res.Tags[1].Symbol != "CreateInvoice" || res.Tags[1].Placement != annotation.PlacementDefinition {
		t.Errorf("func tag wrong: %+v", res.Tags[1])
	}
	if res.Tags[2].Symbol != "Invoice" {
		t.Errorf("type tag wrong: %+v", res.Tags[2])
	}
}

// The Go rendition of the auth fixture must carry the same tags as the
// Python original.
func TestGoParser_AuthFixture(t *testing.T) {
	content, err := os.ReadFile("../fixture/auth/auth.go")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	p := NewGoParser()
	res, err := p.Parse("internal/fixture/auth/auth.go", content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	type key struct {
		id        string
		symbol    string
		placement annotation.Placement
	}
	got := make(map[key]bool)
	for _, tag := range res.Tags {
		got[key{tag.ReqID, tag.Symbol, tag.Placement}] = true
	}

	want := []key{
		{"FR:sample-feature/auth.login", "", annotation.PlacementModule},
		{"FR:sample-feature/auth.logout", "", annotation.PlacementModule},
		{"FR:sample-feature/auth.login", "Login", annotation.PlacementDefinition},
		{"FR:sample-feature/auth.logout", "Logout", annotation.PlacementDefinition},
		{"FR:sample-feature/auth.session.expiry", "CheckSessionExpiry", annotation.PlacementDefinition},
	}
	for _, k := range want {
		if !got[k] {
			t.Errorf("missing tag %+v in %v", k, res.Tags)
		}
	}
	if len(res.Tags) != len(want) {
		t.Errorf("expected %d tags, got %d: %v", len(want), len(res.Tags), res.Tags)
	}
}

func TestGoParser_SyntaxErrorIsError(t *testing.T) {
	p := NewGoParser()
	if _, err := p.Parse("broken.go", []byte("package {")); err == nil {
		t.Error("expected parse error")
	}
}
